package imagegen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/reverie-ai/reverie/internal/model"
	"github.com/reverie-ai/reverie/internal/store"
	"github.com/reverie-ai/reverie/internal/store/sqlite"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := sqlite.EnsureSchema(db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return sqlite.New(db)
}

func seedImagePost(t *testing.T, st store.Store) (*model.Character, *model.Post) {
	t.Helper()
	ctx := context.Background()
	ch, err := st.Characters().Create(ctx, &model.Character{Name: "Mira", Path: "mira", ImgGen: true, ImageModel: "deliberate"})
	if err != nil {
		t.Fatalf("create character: %v", err)
	}
	p, err := st.Posts().Create(ctx, &model.Post{CharacterID: ch.CharacterID, Description: "beach", ImagePost: true, Prompt: "a beach", Caption: "sunny"})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	return ch, p
}

// newProvider serves the async submit/status flow plus the finished image.
func newProvider(t *testing.T, pollsUntilDone int32, faulted bool) *httptest.Server {
	t.Helper()
	var polls int32
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/generate/async", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "job-1"})
	})
	mux.HandleFunc("/api/v2/generate/status/job-1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		n := atomic.AddInt32(&polls, 1)
		if faulted {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"faulted": true})
			return
		}
		if n < pollsUntilDone {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"waiting": 1})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"done":        true,
			"generations": []map[string]string{{"img": srv.URL + "/images/job-1.png"}},
		})
	})
	mux.HandleFunc("/images/job-1.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("png-bytes"))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestPipeline(t *testing.T, st store.Store, srv *httptest.Server, blobRoot string) *Pipeline {
	t.Helper()
	p := NewPipeline(NewHTTPBackend(srv.URL, "test-key"), NewFSBlob(blobRoot), st.Posts(), zerolog.Nop())
	p.Interval = 10 * time.Millisecond
	return p
}

func TestPipelineCompletesImagePost(t *testing.T) {
	st := newTestStore(t)
	ch, post := seedImagePost(t, st)
	srv := newProvider(t, 3, false)
	blobRoot := t.TempDir()
	p := newTestPipeline(t, st, srv, blobRoot)

	if err := p.Run(context.Background(), post, ch); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := st.Posts().Get(context.Background(), post.PostID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	wantPath := "posts/" + post.PostID + ".png"
	if got.ImagePath == nil || *got.ImagePath != wantPath {
		t.Fatalf("image path = %v, want %q", got.ImagePath, wantPath)
	}

	data, err := os.ReadFile(filepath.Join(blobRoot, wantPath))
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("blob contents = %q", data)
	}
}

func TestPipelineFaultedJobFails(t *testing.T) {
	st := newTestStore(t)
	ch, post := seedImagePost(t, st)
	srv := newProvider(t, 0, true)
	p := newTestPipeline(t, st, srv, t.TempDir())

	err := p.Run(context.Background(), post, ch)
	if !errors.Is(err, model.ErrDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}

	got, err := st.Posts().Get(context.Background(), post.PostID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.ImagePath != nil {
		t.Error("failed job must not set an image path")
	}
	if got.ImagePost {
		t.Error("failed job must downgrade the post to a text post")
	}
}

func TestPipelinePollCeiling(t *testing.T) {
	st := newTestStore(t)
	ch, post := seedImagePost(t, st)
	srv := newProvider(t, 1000, false)
	p := newTestPipeline(t, st, srv, t.TempDir())
	p.MaxPolls = 3

	err := p.Run(context.Background(), post, ch)
	if !errors.Is(err, model.ErrDependency) {
		t.Fatalf("expected dependency error after poll ceiling, got %v", err)
	}
	got, err := st.Posts().Get(context.Background(), post.PostID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.ImagePost {
		t.Error("exhausted job must downgrade the post to a text post")
	}
}

func TestPipelineRejectsIncompleteCharacter(t *testing.T) {
	st := newTestStore(t)
	_, post := seedImagePost(t, st)
	srv := newProvider(t, 1, false)
	p := newTestPipeline(t, st, srv, t.TempDir())

	err := p.Run(context.Background(), post, &model.Character{CharacterID: "x"})
	if !errors.Is(err, model.ErrInvariant) {
		t.Fatalf("expected invariant error, got %v", err)
	}
}
