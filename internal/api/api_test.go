package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reverie-ai/reverie/internal/chatlog"
	"github.com/reverie-ai/reverie/internal/genai"
	"github.com/reverie-ai/reverie/internal/model"
	"github.com/reverie-ai/reverie/internal/prompt"
	"github.com/reverie-ai/reverie/internal/services"
	"github.com/reverie-ai/reverie/internal/store"
	"github.com/reverie-ai/reverie/internal/store/sqlite"
)

type env struct {
	server *httptest.Server
	store  store.Store
	mock   *genai.Mock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, sqlite.EnsureSchema(db))
	t.Cleanup(func() { _ = db.Close() })
	st := sqlite.New(db)

	mock := genai.NewMock()
	mock.Fallback = `{"message": "see you in 1h"}`
	gen := genai.NewAdapter(mock, zerolog.Nop())
	logs := chatlog.NewAssembler(st, gen)
	prompts := prompt.NewRenderer()

	router := NewRouter(Handlers{
		Users:      services.NewUserService(st),
		Characters: services.NewCharacterService(st),
		Threads:    services.NewThreadService(st),
		Responses:  services.NewResponseService(st, gen, logs, prompts, zerolog.Nop()),
		Posts:      services.NewPostService(st),
		IsHealthy:  func() bool { return true },
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &env{server: srv, store: st, mock: mock}
}

func (e *env) postJSON(t *testing.T, path string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func (e *env) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *env) createUser(t *testing.T, username string) model.User {
	resp := e.postJSON(t, "/api/users", map[string]string{"username": username})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[model.User](t, resp)
}

func (e *env) createCharacter(t *testing.T, name, path string) model.Character {
	resp := e.postJSON(t, "/api/characters", map[string]interface{}{"name": name, "path": path})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[model.Character](t, resp)
}

func (e *env) createThread(t *testing.T, userID, characterID string) model.Thread {
	resp := e.postJSON(t, "/api/threads", map[string]string{"userId": userID, "characterId": characterID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[model.Thread](t, resp)
}

func TestUserLifecycle(t *testing.T) {
	e := newEnv(t)

	u := e.createUser(t, "sam")
	assert.NotEmpty(t, u.UserID)
	assert.Equal(t, "sam", u.Username)

	resp := e.get(t, "/api/users/"+u.UserID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[model.User](t, resp)
	assert.Equal(t, u.UserID, got.UserID)

	resp = e.get(t, "/api/users/nope")
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUserValidation(t *testing.T) {
	e := newEnv(t)
	resp := e.postJSON(t, "/api/users", map[string]string{"username": "Not Valid!"})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCharacterLifecycle(t *testing.T) {
	e := newEnv(t)

	ch := e.createCharacter(t, "Mira", "mira")
	assert.NotEmpty(t, ch.CharacterID)

	resp := e.get(t, "/api/characters")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]model.Character](t, resp)
	require.Len(t, list, 1)

	resp = e.get(t, "/api/characters?path=mira")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	byPath := decode[[]model.Character](t, resp)
	require.Len(t, byPath, 1)
	assert.Equal(t, ch.CharacterID, byPath[0].CharacterID)

	req, err := http.NewRequest(http.MethodDelete, e.server.URL+"/api/characters/"+ch.CharacterID, nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = del.Body.Close() }()
	assert.Equal(t, http.StatusNoContent, del.StatusCode)
}

func TestCharacterImgGenRequiresModel(t *testing.T) {
	e := newEnv(t)
	resp := e.postJSON(t, "/api/characters", map[string]interface{}{"name": "Mira", "path": "mira", "imgGen": true})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatFlow(t *testing.T) {
	e := newEnv(t)
	u := e.createUser(t, "sam")
	ch := e.createCharacter(t, "Mira", "mira")
	th := e.createThread(t, u.UserID, ch.CharacterID)

	// Posting a message is accepted immediately; the reply arrives async.
	resp := e.postJSON(t, fmt.Sprintf("/api/threads/%s/messages", th.ThreadID), map[string]string{"content": "Hi"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	posted := decode[model.Message](t, resp)
	assert.Equal(t, model.RoleUser, posted.Role)

	require.Eventually(t, func() bool {
		resp := e.get(t, fmt.Sprintf("/api/threads/%s/messages", th.ThreadID))
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return false
		}
		msgs := decode[[]model.Message](t, resp)
		return len(msgs) == 2
	}, 2*time.Second, 20*time.Millisecond, "reply was never scheduled")

	// The scheduled reply can be forced to the present.
	resp = e.postJSON(t, fmt.Sprintf("/api/threads/%s/respond", th.ThreadID), map[string]string{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reply := decode[model.Message](t, resp)
	assert.Equal(t, model.RoleAssistant, reply.Role)
	assert.Equal(t, "see you in 1h", reply.Content)

	// Cascading delete rewinds the conversation.
	req, err := http.NewRequest(http.MethodDelete,
		fmt.Sprintf("%s/api/threads/%s/messages/%s", e.server.URL, th.ThreadID, posted.MessageID), nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, del.StatusCode)
	counts := decode[map[string]int64](t, del)
	assert.Equal(t, int64(2), counts["deleted"])
}

func TestThreadCreationIsIdempotentPerPair(t *testing.T) {
	e := newEnv(t)
	u := e.createUser(t, "sam")
	ch := e.createCharacter(t, "Mira", "mira")

	th1 := e.createThread(t, u.UserID, ch.CharacterID)
	th2 := e.createThread(t, u.UserID, ch.CharacterID)
	assert.Equal(t, th1.ThreadID, th2.ThreadID)
}

func TestPostSocialSurface(t *testing.T) {
	e := newEnv(t)
	u := e.createUser(t, "sam")
	ch := e.createCharacter(t, "Mira", "mira")

	p, err := e.store.Posts().Create(context.Background(), &model.Post{CharacterID: ch.CharacterID, Description: "hello world"})
	require.NoError(t, err)

	resp := e.postJSON(t, "/api/posts/"+p.PostID+"/comments", map[string]string{"userId": u.UserID, "content": "nice"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp = e.postJSON(t, "/api/posts/"+p.PostID+"/likes", map[string]string{"userId": u.UserID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp = e.get(t, "/api/posts/"+p.PostID+"/comments")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	comments := decode[[]model.Comment](t, resp)
	require.Len(t, comments, 1)
	assert.Equal(t, "nice", comments[0].Content)

	resp = e.get(t, "/api/characters/"+ch.CharacterID+"/posts")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	posts := decode[[]model.Post](t, resp)
	require.Len(t, posts, 1)
}

func TestHealthEndpoint(t *testing.T) {
	e := newEnv(t)
	resp := e.get(t, "/api/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]interface{}](t, resp)
	assert.Equal(t, "healthy", body["status"])
}
