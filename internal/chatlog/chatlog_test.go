package chatlog

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/reverie-ai/reverie/internal/genai"
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

type fixture struct {
	st store.Store
	u  *model.User
	ch *model.Character
	th *model.Thread
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := newTestStore(t)
	u, err := st.Users().Create(ctx, &model.User{Username: "sam"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	ch, err := st.Characters().Create(ctx, &model.Character{Name: "Mira", Path: "mira"})
	if err != nil {
		t.Fatalf("create character: %v", err)
	}
	th, err := st.Threads().Create(ctx, &model.Thread{UserID: u.UserID, CharacterID: ch.CharacterID})
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	return &fixture{st: st, u: u, ch: ch, th: th}
}

// backdate inserts a message stamped delay before the store's current time.
func (f *fixture) backdate(t *testing.T, role, content string, before time.Duration) *model.Message {
	t.Helper()
	m, err := f.st.Messages().CreateScheduled(context.Background(), &model.Message{
		ThreadID: f.th.ThreadID, Role: role, Content: content,
	}, -before)
	if err != nil {
		t.Fatalf("backdate message: %v", err)
	}
	return m
}

func TestForThreadOrderingAndConversion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.backdate(t, model.RoleUser, "hello", 3*time.Hour)
	f.backdate(t, model.RoleAssistant, "hi sam", 2*time.Hour)
	f.backdate(t, model.RoleUser, "how are you", time.Hour)

	a := NewAssembler(f.st, genai.NewMock())
	got, err := a.ForThread(ctx, f.th, f.ch, Options{IncludeMessages: true})
	if err != nil {
		t.Fatalf("ForThread: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	wantSuffix := []string{"hello", "hi sam", "how are you"}
	wantRoles := []string{model.RoleUser, model.RoleAssistant, model.RoleUser}
	for i, m := range got {
		if !strings.HasSuffix(m.Content, wantSuffix[i]) {
			t.Errorf("entry %d content %q, want suffix %q", i, m.Content, wantSuffix[i])
		}
		if !strings.HasPrefix(m.Content, "[") {
			t.Errorf("entry %d missing timestamp stamp: %q", i, m.Content)
		}
		if m.Role != wantRoles[i] {
			t.Errorf("entry %d role %q, want %q", i, m.Role, wantRoles[i])
		}
	}
}

func TestForCharacterIncludesEventsAndPosts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.st.Events().Create(ctx, &model.Event{CharacterID: f.ch.CharacterID, Kind: model.EventKindThought, Content: "wondering"}); err != nil {
		t.Fatalf("create event: %v", err)
	}
	if _, err := f.st.Events().Create(ctx, &model.Event{CharacterID: f.ch.CharacterID, Kind: model.EventKindEvent, Content: "went for a walk"}); err != nil {
		t.Fatalf("create event: %v", err)
	}
	if _, err := f.st.Posts().Create(ctx, &model.Post{CharacterID: f.ch.CharacterID, Description: "sunset pics", ImagePost: true, Caption: "golden hour"}); err != nil {
		t.Fatalf("create post: %v", err)
	}
	textPost, err := f.st.Posts().Create(ctx, &model.Post{CharacterID: f.ch.CharacterID, Description: "thinking out loud"})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if _, err := f.st.Posts().CreateComment(ctx, &model.Comment{PostID: textPost.PostID, UserID: f.u.UserID, Content: "love this"}); err != nil {
		t.Fatalf("create comment: %v", err)
	}

	a := NewAssembler(f.st, genai.NewMock())
	got, err := a.ForCharacter(ctx, f.ch, Options{IncludeEvents: true, IncludePosts: true})
	if err != nil {
		t.Fatalf("ForCharacter: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(got))
	}
	joined := ""
	for _, m := range got {
		joined += m.Content + "\n"
	}
	for _, want := range []string{
		"Mira thought: wondering",
		"Mira did the following: went for a walk",
		"Mira made an image post: sunset pics (caption: golden hour)",
		"Mira posted: thinking out loud",
		"sam commented on Mira's post: love this",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("log missing %q:\n%s", want, joined)
		}
	}
	for _, m := range got {
		if strings.Contains(m.Content, "commented on") {
			if m.Role != genai.RoleUser {
				t.Errorf("comment entry role = %q, want user", m.Role)
			}
		} else if m.Role != genai.RoleAssistant {
			t.Errorf("event/post entry role = %q, want assistant", m.Role)
		}
	}
}

func TestTruncationKeepsSuffix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Each converted message is "[date time] mN" = 3 words under the mock's
	// word-count tokenizer.
	names := []string{"m1", "m2", "m3", "m4", "m5"}
	for i, n := range names {
		f.backdate(t, model.RoleUser, n, time.Duration(len(names)-i)*time.Hour)
	}

	a := NewAssembler(f.st, genai.NewMock())
	full, err := a.ForThread(ctx, f.th, f.ch, Options{IncludeMessages: true})
	if err != nil {
		t.Fatalf("ForThread: %v", err)
	}
	if len(full) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(full))
	}

	// Budget of 9 words fits exactly the last three messages.
	got, err := a.ForThread(ctx, f.th, f.ch, Options{IncludeMessages: true, TokenBudget: 9})
	if err != nil {
		t.Fatalf("ForThread truncated: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries after truncation, got %d", len(got))
	}
	for i, m := range got {
		if m.Content != full[len(full)-3+i].Content {
			t.Errorf("truncated log is not a suffix: entry %d = %q", i, m.Content)
		}
	}
}

func TestZeroBudgetDisablesTruncation(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 4; i++ {
		f.backdate(t, model.RoleUser, "msg", time.Duration(4-i)*time.Minute)
	}
	a := NewAssembler(f.st, genai.NewMock())
	got, err := a.ForThread(context.Background(), f.th, f.ch, Options{IncludeMessages: true})
	if err != nil {
		t.Fatalf("ForThread: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected all 4 entries, got %d", len(got))
	}
}
