package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/reverie-ai/reverie/internal/chatlog"
	"github.com/reverie-ai/reverie/internal/genai"
	"github.com/reverie-ai/reverie/internal/model"
	"github.com/reverie-ai/reverie/internal/prompt"
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

type responseFixture struct {
	st   store.Store
	mock *genai.Mock
	svc  *ResponseService
	th   *model.Thread
}

func newResponseFixture(t *testing.T, replies ...string) *responseFixture {
	t.Helper()
	ctx := context.Background()
	st := newTestStore(t)

	u, err := st.Users().Create(ctx, &model.User{Username: "sam"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	ch, err := st.Characters().Create(ctx, &model.Character{Name: "Mira", Path: "mira", Personality: "curious"})
	if err != nil {
		t.Fatalf("create character: %v", err)
	}
	th, err := st.Threads().Create(ctx, &model.Thread{UserID: u.UserID, CharacterID: ch.CharacterID})
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}

	mock := genai.NewMock(replies...)
	gen := genai.NewAdapter(mock, zerolog.Nop())
	svc := NewResponseService(st, gen, chatlog.NewAssembler(st, gen), prompt.NewRenderer(), zerolog.Nop())
	return &responseFixture{st: st, mock: mock, svc: svc, th: th}
}

func (f *responseFixture) postUser(t *testing.T, content string) *model.Message {
	t.Helper()
	m, err := f.st.Messages().Create(context.Background(), &model.Message{
		ThreadID: f.th.ThreadID, Role: model.RoleUser, Content: content,
	})
	if err != nil {
		t.Fatalf("create user message: %v", err)
	}
	return m
}

func TestTriggerSchedulesOneReply(t *testing.T) {
	f := newResponseFixture(t, "2h", `{"message": "hey sam!"}`)
	ctx := context.Background()
	f.postUser(t, "Hi")

	msg, err := f.svc.Trigger(ctx, f.th.ThreadID, nil)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if msg.Role != model.RoleAssistant || msg.Content != "hey sam!" {
		t.Errorf("scheduled message = %+v", msg)
	}

	all, err := f.st.Messages().ListByThread(ctx, f.th.ThreadID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(all))
	}

	sched, err := f.st.Messages().ListScheduled(ctx, f.th.ThreadID)
	if err != nil {
		t.Fatalf("list scheduled: %v", err)
	}
	if len(sched) != 1 || sched[0].MessageID != msg.MessageID {
		t.Fatalf("scheduled = %+v", sched)
	}
	// The delay answer "2h" puts the reply roughly two hours out.
	if until := time.Until(sched[0].Timestamp); until < 90*time.Minute || until > 150*time.Minute {
		t.Errorf("scheduled %v from now, want ~2h", until)
	}
}

func TestTriggerReplacesExistingScheduled(t *testing.T) {
	f := newResponseFixture(t,
		"1h", `{"message": "first"}`,
		"2h", `{"message": "second"}`,
	)
	ctx := context.Background()
	f.postUser(t, "Hi")

	if _, err := f.svc.Trigger(ctx, f.th.ThreadID, nil); err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	if _, err := f.svc.Trigger(ctx, f.th.ThreadID, nil); err != nil {
		t.Fatalf("second trigger: %v", err)
	}

	sched, err := f.st.Messages().ListScheduled(ctx, f.th.ThreadID)
	if err != nil {
		t.Fatalf("list scheduled: %v", err)
	}
	if len(sched) != 1 {
		t.Fatalf("expected exactly 1 scheduled message, got %d", len(sched))
	}
	if sched[0].Content != "second" {
		t.Errorf("scheduled content = %q, want the regenerated reply", sched[0].Content)
	}
}

func TestRespondNowPromotesWithoutRegenerating(t *testing.T) {
	f := newResponseFixture(t, "3h", `{"message": "patience"}`)
	ctx := context.Background()
	f.postUser(t, "Hi")

	if _, err := f.svc.Trigger(ctx, f.th.ThreadID, nil); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	callsBefore := len(f.mock.Calls())

	msg, err := f.svc.RespondNow(ctx, f.th.ThreadID)
	if err != nil {
		t.Fatalf("respond now: %v", err)
	}
	if msg.Content != "patience" {
		t.Errorf("promote changed content: %q", msg.Content)
	}
	if len(f.mock.Calls()) != callsBefore {
		t.Error("promotion must not call the generation backend")
	}

	sched, err := f.st.Messages().ListScheduled(ctx, f.th.ThreadID)
	if err != nil {
		t.Fatalf("list scheduled: %v", err)
	}
	if len(sched) != 0 {
		t.Fatalf("expected no scheduled messages after promote, got %d", len(sched))
	}
}

func TestRespondNowWithNothingScheduledRunsFullCycle(t *testing.T) {
	f := newResponseFixture(t, `{"message": "one"}`, `{"message": "two"}`)
	ctx := context.Background()
	f.postUser(t, "Hi")

	for _, want := range []string{"one", "two"} {
		msg, err := f.svc.RespondNow(ctx, f.th.ThreadID)
		if err != nil {
			t.Fatalf("respond now: %v", err)
		}
		if msg.Content != want {
			t.Errorf("content = %q, want %q", msg.Content, want)
		}
	}

	all, err := f.st.Messages().ListByThread(ctx, f.th.ThreadID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected user message plus two replies, got %d messages", len(all))
	}
}

func TestPostUserMessageKicksOffCycle(t *testing.T) {
	f := newResponseFixture(t, "5m", `{"message": "hello there"}`)
	ctx := context.Background()

	msg, err := f.svc.PostUserMessage(ctx, f.th.ThreadID, "Hi")
	if err != nil {
		t.Fatalf("post user message: %v", err)
	}
	if msg.Role != model.RoleUser || msg.Content != "Hi" {
		t.Errorf("stored message = %+v", msg)
	}

	waitTrue(t, func() bool {
		all, err := f.st.Messages().ListByThread(ctx, f.th.ThreadID)
		return err == nil && len(all) == 2
	})
}

func TestPostUserMessageRejectsBlank(t *testing.T) {
	f := newResponseFixture(t)
	if _, err := f.svc.PostUserMessage(context.Background(), f.th.ThreadID, "   "); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteFromCascades(t *testing.T) {
	f := newResponseFixture(t)
	ctx := context.Background()

	mk := func(content string, before time.Duration) *model.Message {
		m, err := f.st.Messages().CreateScheduled(ctx, &model.Message{
			ThreadID: f.th.ThreadID, Role: model.RoleUser, Content: content,
		}, -before)
		if err != nil {
			t.Fatalf("create %s: %v", content, err)
		}
		return m
	}
	m1 := mk("one", 3*time.Hour)
	m2 := mk("two", 2*time.Hour)
	mk("three", time.Hour)

	n, err := f.svc.DeleteFrom(ctx, f.th.ThreadID, m2.MessageID)
	if err != nil {
		t.Fatalf("delete from: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}

	rest, err := f.st.Messages().ListByThread(ctx, f.th.ThreadID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rest) != 1 || rest[0].MessageID != m1.MessageID {
		t.Fatalf("remaining = %+v", rest)
	}
}

func TestMalformedEnvelopeIsRegenerated(t *testing.T) {
	f := newResponseFixture(t,
		"1m",
		"not json at all",
		`{"wrong": "field"}`,
		`{"message": "finally"}`,
	)
	f.postUser(t, "Hi")

	msg, err := f.svc.Trigger(context.Background(), f.th.ThreadID, nil)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if msg.Content != "finally" {
		t.Errorf("content = %q", msg.Content)
	}
	// One delay call plus three content attempts.
	if got := len(f.mock.Calls()); got != 4 {
		t.Errorf("backend calls = %d, want 4", got)
	}
}

func TestMalformedEnvelopeExhaustsAttempts(t *testing.T) {
	f := newResponseFixture(t,
		"1m",
		"bad", "bad", "bad", "bad", "bad",
	)
	f.postUser(t, "Hi")

	_, err := f.svc.Trigger(context.Background(), f.th.ThreadID, nil)
	if !errors.Is(err, model.ErrMalformedOutput) {
		t.Fatalf("expected malformed-output error, got %v", err)
	}
	// 1 delay call + 5 content attempts; the sixth content attempt must not happen.
	if got := len(f.mock.Calls()); got != 6 {
		t.Errorf("backend calls = %d, want 6", got)
	}

	all, err := f.st.Messages().ListByThread(context.Background(), f.th.ThreadID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("failed cycle must not persist a reply; got %d messages", len(all))
	}
}

func TestBackendFailureIsNotRetried(t *testing.T) {
	f := newResponseFixture(t)
	f.mock.Err = errors.New("backend down")
	f.postUser(t, "Hi")

	_, err := f.svc.Trigger(context.Background(), f.th.ThreadID, nil)
	if !errors.Is(err, model.ErrDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestConcurrentTriggersKeepAtMostOneScheduled(t *testing.T) {
	f := newResponseFixture(t)
	f.mock.Fallback = `{"message": "see you in 2h"}`
	ctx := context.Background()
	f.postUser(t, "Hi")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Trigger(ctx, f.th.ThreadID, nil); err != nil {
				t.Errorf("trigger: %v", err)
			}
		}()
	}
	wg.Wait()

	sched, err := f.st.Messages().ListScheduled(ctx, f.th.ThreadID)
	if err != nil {
		t.Fatalf("list scheduled: %v", err)
	}
	if len(sched) != 1 {
		t.Fatalf("expected exactly 1 scheduled message, got %d", len(sched))
	}
}

func waitTrue(t *testing.T, pred func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pred() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestTokenBudgetLimitsHistory(t *testing.T) {
	f := newResponseFixture(t, `{"message": "short memory"}`)
	ctx := context.Background()
	for i, content := range []string{"m1", "m2", "m3", "m4", "m5"} {
		if _, err := f.st.Messages().CreateScheduled(ctx, &model.Message{
			ThreadID: f.th.ThreadID, Role: model.RoleUser, Content: content,
		}, -time.Duration(5-i)*time.Hour); err != nil {
			t.Fatalf("backdate message: %v", err)
		}
	}

	// Each converted message is 3 words under the mock's word counter; a
	// budget of 6 keeps only the newest two.
	f.svc.SetTokenBudget(6)
	zero := time.Duration(0)
	if _, err := f.svc.Trigger(ctx, f.th.ThreadID, &zero); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	calls := f.mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 generation call, got %d", len(calls))
	}
	// System prompt, the two kept messages, the reply request.
	if len(calls[0]) != 4 {
		t.Fatalf("history length = %d, want 4: %+v", len(calls[0]), calls[0])
	}
	if !strings.HasSuffix(calls[0][1].Content, "m4") || !strings.HasSuffix(calls[0][2].Content, "m5") {
		t.Errorf("kept history = %+v, want the newest two messages", calls[0][1:3])
	}
}
