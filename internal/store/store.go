package store

import (
	"context"
	"time"

	"github.com/reverie-ai/reverie/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (e.g., sqlite, postgres).
//
// All timestamp comparisons ("scheduled" selection, promotion, cascading
// deletes) are evaluated against the database's own clock so that state
// derived from timestamps survives process restarts and clock skew.
type Store interface {
	Users() Users
	Characters() Characters
	Threads() Threads
	Messages() Messages
	Events() Events
	Posts() Posts
	// HealthPing verifies database connectivity.
	HealthPing(ctx context.Context) error
}

type Users interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	Get(ctx context.Context, userID string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

type Characters interface {
	Create(ctx context.Context, c *model.Character) (*model.Character, error)
	Get(ctx context.Context, characterID string) (*model.Character, error)
	GetByPath(ctx context.Context, path string) (*model.Character, error)
	List(ctx context.Context) ([]*model.Character, error)
	Delete(ctx context.Context, characterID string) error
}

type Threads interface {
	Create(ctx context.Context, t *model.Thread) (*model.Thread, error)
	Get(ctx context.Context, threadID string) (*model.Thread, error)
	GetByUserCharacter(ctx context.Context, userID, characterID string) (*model.Thread, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Thread, error)
}

type Messages interface {
	// Create inserts a message stamped with the store's current time.
	Create(ctx context.Context, m *model.Message) (*model.Message, error)
	// CreateScheduled inserts a message stamped delay into the future,
	// relative to the store's current time.
	CreateScheduled(ctx context.Context, m *model.Message, delay time.Duration) (*model.Message, error)
	Get(ctx context.Context, messageID string) (*model.Message, error)
	// ListByThread returns all messages in ascending timestamp order.
	ListByThread(ctx context.Context, threadID string) ([]*model.Message, error)
	// ListByCharacter returns every message across the character's threads
	// in ascending timestamp order.
	ListByCharacter(ctx context.Context, characterID string) ([]*model.Message, error)
	// ListScheduled returns messages whose timestamp is strictly after the
	// store's current time, earliest first.
	ListScheduled(ctx context.Context, threadID string) ([]*model.Message, error)
	// DeleteScheduled removes every scheduled message in the thread and
	// reports how many rows were deleted.
	DeleteScheduled(ctx context.Context, threadID string) (int64, error)
	// Promote patches a message's timestamp to the store's current time
	// without touching its content.
	Promote(ctx context.Context, messageID string) (*model.Message, error)
	// DeleteFrom removes the message and every message in the same thread
	// with a strictly later timestamp.
	DeleteFrom(ctx context.Context, threadID, messageID string) (int64, error)
}

type Events interface {
	Create(ctx context.Context, e *model.Event) (*model.Event, error)
	ListByCharacter(ctx context.Context, characterID string) ([]*model.Event, error)
	Delete(ctx context.Context, eventID string) error
}

type Posts interface {
	Create(ctx context.Context, p *model.Post) (*model.Post, error)
	Get(ctx context.Context, postID string) (*model.Post, error)
	ListByCharacter(ctx context.Context, characterID string) ([]*model.Post, error)
	// SetImagePath records the stored image location once the image
	// pipeline has completed.
	SetImagePath(ctx context.Context, postID, imagePath string) error
	// ClearImage downgrades a post to a text post after a terminal image
	// pipeline failure.
	ClearImage(ctx context.Context, postID string) error
	CreateComment(ctx context.Context, c *model.Comment) (*model.Comment, error)
	ListComments(ctx context.Context, postID string) ([]*model.Comment, error)
	CreateLike(ctx context.Context, l *model.Like) (*model.Like, error)
	ListLikes(ctx context.Context, postID string) ([]*model.Like, error)
}
