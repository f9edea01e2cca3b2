package scheduler

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/reverie-ai/reverie/internal/chatlog"
	"github.com/reverie-ai/reverie/internal/genai"
	"github.com/reverie-ai/reverie/internal/model"
	"github.com/reverie-ai/reverie/internal/prompt"
	"github.com/reverie-ai/reverie/internal/services"
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

func newTickFixture(t *testing.T) (store.Store, *Service, *model.Character) {
	t.Helper()
	st := newTestStore(t)
	ch, err := st.Characters().Create(context.Background(), &model.Character{Name: "Mira", Path: "mira"})
	if err != nil {
		t.Fatalf("create character: %v", err)
	}

	gen := genai.NewAdapter(genai.NewMock(), zerolog.Nop())
	events := services.NewEventService(st, gen, chatlog.NewAssembler(st, gen), prompt.NewRenderer(), nil, zerolog.Nop())
	svc := New(st, events, "@every 1m", zerolog.Nop())
	return st, svc, ch
}

func TestTickWinningDrawsFireAllCycles(t *testing.T) {
	st, svc, ch := newTickFixture(t)
	svc.SetRand(func() float64 { return 0.0 })
	ctx := context.Background()

	svc.Tick(ctx)

	events, err := st.Events().ListByCharacter(ctx, ch.CharacterID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	var thoughts, activities int
	for _, ev := range events {
		switch ev.Kind {
		case model.EventKindThought:
			thoughts++
		case model.EventKindEvent:
			activities++
		}
	}
	if thoughts != 1 || activities != 1 {
		t.Errorf("thoughts=%d activities=%d, want 1 each", thoughts, activities)
	}

	posts, err := st.Posts().ListByCharacter(ctx, ch.CharacterID)
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(posts) != 1 {
		t.Errorf("posts = %d, want 1", len(posts))
	}
}

func TestTickLosingDrawsFireNothing(t *testing.T) {
	st, svc, ch := newTickFixture(t)
	svc.SetRand(func() float64 { return 1.0 })
	ctx := context.Background()

	svc.Tick(ctx)

	events, err := st.Events().ListByCharacter(ctx, ch.CharacterID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events = %d, want 0", len(events))
	}
	posts, err := st.Posts().ListByCharacter(ctx, ch.CharacterID)
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("posts = %d, want 0", len(posts))
	}
}

func TestTickCoversEveryCharacter(t *testing.T) {
	st, svc, _ := newTickFixture(t)
	ctx := context.Background()
	ch2, err := st.Characters().Create(ctx, &model.Character{Name: "Juno", Path: "juno"})
	if err != nil {
		t.Fatalf("create character: %v", err)
	}
	svc.SetRand(func() float64 { return 0.0 })

	svc.Tick(ctx)

	events, err := st.Events().ListByCharacter(ctx, ch2.CharacterID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("second character events = %d, want 2", len(events))
	}
}

func TestDefaultThresholds(t *testing.T) {
	th := DefaultThresholds()
	if th.Thought != 1.0/30 || th.Event != 1.0/30 || th.Post != 1.0/60 {
		t.Errorf("unexpected defaults: %+v", th)
	}
}
