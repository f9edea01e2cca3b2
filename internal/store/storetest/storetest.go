// Package storetest is a driver-independent compliance suite for
// store.Store implementations. Adapter packages call Run from their own
// tests so every driver honors the same contract, in particular the
// database-clock semantics of scheduled messages.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/reverie-ai/reverie/internal/model"
	"github.com/reverie-ai/reverie/internal/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run exercises the full Store contract against stores produced by open.
func Run(t *testing.T, open Factory) {
	t.Run("UsersRoundTrip", func(t *testing.T) { testUsersRoundTrip(t, open(t)) })
	t.Run("CharactersPathLookupAndDelete", func(t *testing.T) { testCharactersPathLookupAndDelete(t, open(t)) })
	t.Run("ThreadsUniquePairLookup", func(t *testing.T) { testThreadsUniquePairLookup(t, open(t)) })
	t.Run("ScheduledMessageLifecycle", func(t *testing.T) { testScheduledMessageLifecycle(t, open(t)) })
	t.Run("DeleteScheduledCount", func(t *testing.T) { testDeleteScheduledCount(t, open(t)) })
	t.Run("DeleteFromCascades", func(t *testing.T) { testDeleteFromCascades(t, open(t)) })
	t.Run("ListByCharacterSpansThreads", func(t *testing.T) { testListByCharacterSpansThreads(t, open(t)) })
	t.Run("PostsImageLifecycleAndSocial", func(t *testing.T) { testPostsImageLifecycleAndSocial(t, open(t)) })
	t.Run("EventsRoundTrip", func(t *testing.T) { testEventsRoundTrip(t, open(t)) })
	t.Run("HealthPing", func(t *testing.T) { testHealthPing(t, open(t)) })
}

func seedThread(t *testing.T, st store.Store) (*model.User, *model.Character, *model.Thread) {
	t.Helper()
	ctx := context.Background()
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
	return u, ch, th
}

func testUsersRoundTrip(t *testing.T, st store.Store) {
	ctx := context.Background()

	u, err := st.Users().Create(ctx, &model.User{Username: "sam"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.UserID == "" || u.CreationTime.IsZero() {
		t.Fatalf("create did not fill server fields: %+v", u)
	}

	got, err := st.Users().Get(ctx, u.UserID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Username != "sam" {
		t.Errorf("username = %q", got.Username)
	}

	byName, err := st.Users().GetByUsername(ctx, "sam")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if byName.UserID != u.UserID {
		t.Errorf("lookup mismatch: %s vs %s", byName.UserID, u.UserID)
	}

	if _, err := st.Users().Get(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func testCharactersPathLookupAndDelete(t *testing.T, st store.Store) {
	ctx := context.Background()

	ch, err := st.Characters().Create(ctx, &model.Character{
		Name: "Mira", Path: "mira", Personality: "curious", ImgGen: true, ImageModel: "deliberate",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	byPath, err := st.Characters().GetByPath(ctx, "mira")
	if err != nil {
		t.Fatalf("get by path: %v", err)
	}
	if byPath.CharacterID != ch.CharacterID || !byPath.ImgGen || byPath.ImageModel != "deliberate" {
		t.Errorf("path lookup mismatch: %+v", byPath)
	}

	list, err := st.Characters().List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 character, got %d", len(list))
	}

	if err := st.Characters().Delete(ctx, ch.CharacterID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.Characters().Get(ctx, ch.CharacterID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected not-found after delete, got %v", err)
	}
}

func testThreadsUniquePairLookup(t *testing.T, st store.Store) {
	u, ch, th := seedThread(t, st)
	ctx := context.Background()

	got, err := st.Threads().GetByUserCharacter(ctx, u.UserID, ch.CharacterID)
	if err != nil {
		t.Fatalf("get by pair: %v", err)
	}
	if got.ThreadID != th.ThreadID {
		t.Errorf("thread mismatch")
	}

	list, err := st.Threads().ListByUser(ctx, u.UserID)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 thread, got %d", len(list))
	}
}

func testScheduledMessageLifecycle(t *testing.T, st store.Store) {
	_, _, th := seedThread(t, st)
	ctx := context.Background()

	past, err := st.Messages().Create(ctx, &model.Message{ThreadID: th.ThreadID, Role: model.RoleUser, Content: "hi"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if past.Timestamp.IsZero() {
		t.Fatal("create did not stamp the message")
	}

	future, err := st.Messages().CreateScheduled(ctx, &model.Message{ThreadID: th.ThreadID, Role: model.RoleAssistant, Content: "later"}, 2*time.Hour)
	if err != nil {
		t.Fatalf("create scheduled: %v", err)
	}
	if !future.Timestamp.After(past.Timestamp) {
		t.Errorf("scheduled timestamp %v not after %v", future.Timestamp, past.Timestamp)
	}

	sched, err := st.Messages().ListScheduled(ctx, th.ThreadID)
	if err != nil {
		t.Fatalf("list scheduled: %v", err)
	}
	if len(sched) != 1 || sched[0].MessageID != future.MessageID {
		t.Fatalf("scheduled = %+v", sched)
	}

	// Promote moves the timestamp to now without touching content.
	promoted, err := st.Messages().Promote(ctx, future.MessageID)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if promoted.Content != "later" {
		t.Errorf("promote changed content: %q", promoted.Content)
	}
	if promoted.Timestamp.After(time.Now().Add(time.Minute)) {
		t.Errorf("promoted timestamp still in the future: %v", promoted.Timestamp)
	}

	sched, err = st.Messages().ListScheduled(ctx, th.ThreadID)
	if err != nil {
		t.Fatalf("list scheduled: %v", err)
	}
	if len(sched) != 0 {
		t.Fatalf("expected no scheduled messages after promote, got %d", len(sched))
	}
}

func testDeleteScheduledCount(t *testing.T, st store.Store) {
	_, _, th := seedThread(t, st)
	ctx := context.Background()

	if _, err := st.Messages().CreateScheduled(ctx, &model.Message{ThreadID: th.ThreadID, Role: model.RoleAssistant, Content: "a"}, time.Hour); err != nil {
		t.Fatalf("create scheduled: %v", err)
	}
	n, err := st.Messages().DeleteScheduled(ctx, th.ThreadID)
	if err != nil {
		t.Fatalf("delete scheduled: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
	n, err = st.Messages().DeleteScheduled(ctx, th.ThreadID)
	if err != nil {
		t.Fatalf("delete scheduled again: %v", err)
	}
	if n != 0 {
		t.Errorf("deleted %d on empty thread, want 0", n)
	}
}

func testDeleteFromCascades(t *testing.T, st store.Store) {
	_, _, th := seedThread(t, st)
	ctx := context.Background()

	mk := func(content string, before time.Duration) *model.Message {
		m, err := st.Messages().CreateScheduled(ctx, &model.Message{ThreadID: th.ThreadID, Role: model.RoleUser, Content: content}, -before)
		if err != nil {
			t.Fatalf("create %s: %v", content, err)
		}
		return m
	}
	m1 := mk("one", 3*time.Hour)
	m2 := mk("two", 2*time.Hour)
	mk("three", time.Hour)

	n, err := st.Messages().DeleteFrom(ctx, th.ThreadID, m2.MessageID)
	if err != nil {
		t.Fatalf("delete from: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}

	rest, err := st.Messages().ListByThread(ctx, th.ThreadID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rest) != 1 || rest[0].MessageID != m1.MessageID {
		t.Fatalf("remaining = %+v", rest)
	}

	if _, err := st.Messages().DeleteFrom(ctx, th.ThreadID, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected not-found for unknown message, got %v", err)
	}
}

func testListByCharacterSpansThreads(t *testing.T, st store.Store) {
	_, ch, th1 := seedThread(t, st)
	ctx := context.Background()

	u2, err := st.Users().Create(ctx, &model.User{Username: "kay"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	th2, err := st.Threads().Create(ctx, &model.Thread{UserID: u2.UserID, CharacterID: ch.CharacterID})
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}

	if _, err := st.Messages().Create(ctx, &model.Message{ThreadID: th1.ThreadID, Role: model.RoleUser, Content: "a"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := st.Messages().Create(ctx, &model.Message{ThreadID: th2.ThreadID, Role: model.RoleUser, Content: "b"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	msgs, err := st.Messages().ListByCharacter(ctx, ch.CharacterID)
	if err != nil {
		t.Fatalf("list by character: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages across threads, got %d", len(msgs))
	}
}

func testPostsImageLifecycleAndSocial(t *testing.T, st store.Store) {
	u, ch, _ := seedThread(t, st)
	ctx := context.Background()

	p, err := st.Posts().Create(ctx, &model.Post{CharacterID: ch.CharacterID, Description: "sunset", ImagePost: true, Prompt: "a sunset", Caption: "golden"})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if p.ImagePath != nil {
		t.Fatal("fresh post must not carry an image path")
	}

	if err := st.Posts().SetImagePath(ctx, p.PostID, "posts/x.png"); err != nil {
		t.Fatalf("set image path: %v", err)
	}
	got, err := st.Posts().Get(ctx, p.PostID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.ImagePath == nil || *got.ImagePath != "posts/x.png" {
		t.Fatalf("image path = %v", got.ImagePath)
	}

	if err := st.Posts().ClearImage(ctx, p.PostID); err != nil {
		t.Fatalf("clear image: %v", err)
	}
	got, err = st.Posts().Get(ctx, p.PostID)
	if err != nil {
		t.Fatalf("get post after clear: %v", err)
	}
	if got.ImagePost || got.ImagePath != nil {
		t.Fatalf("clear image left image fields set: %+v", got)
	}
	if err := st.Posts().ClearImage(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected not-found for unknown post, got %v", err)
	}

	c, err := st.Posts().CreateComment(ctx, &model.Comment{PostID: p.PostID, UserID: u.UserID, Content: "nice"})
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	comments, err := st.Posts().ListComments(ctx, p.PostID)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 1 || comments[0].CommentID != c.CommentID {
		t.Fatalf("comments = %+v", comments)
	}

	if _, err := st.Posts().CreateLike(ctx, &model.Like{PostID: p.PostID, UserID: u.UserID}); err != nil {
		t.Fatalf("create like: %v", err)
	}
	likes, err := st.Posts().ListLikes(ctx, p.PostID)
	if err != nil {
		t.Fatalf("list likes: %v", err)
	}
	if len(likes) != 1 {
		t.Fatalf("likes = %+v", likes)
	}
}

func testEventsRoundTrip(t *testing.T, st store.Store) {
	_, ch, _ := seedThread(t, st)
	ctx := context.Background()

	ev, err := st.Events().Create(ctx, &model.Event{CharacterID: ch.CharacterID, Kind: model.EventKindThought, Content: "musing"})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	list, err := st.Events().ListByCharacter(ctx, ch.CharacterID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(list) != 1 || list[0].EventID != ev.EventID {
		t.Fatalf("events = %+v", list)
	}
	if err := st.Events().Delete(ctx, ev.EventID); err != nil {
		t.Fatalf("delete event: %v", err)
	}
	if err := st.Events().Delete(ctx, ev.EventID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected not-found on double delete, got %v", err)
	}
}

func testHealthPing(t *testing.T, st store.Store) {
	if err := st.HealthPing(context.Background()); err != nil {
		t.Fatalf("health ping: %v", err)
	}
}
