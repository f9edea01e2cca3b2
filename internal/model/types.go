package model

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Event kinds.
const (
	EventKindThought = "thought"
	EventKindEvent   = "event"
)

// User represents an account in the system.
type User struct {
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	CreationTime time.Time `json:"creationTime"`
}

// Character is a persistent agent persona. The free-text persona fields are
// opaque to the core; only prompt assembly reads them.
type Character struct {
	CharacterID  string    `json:"characterId"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Personality  string    `json:"personality,omitempty"`
	Appearance   string    `json:"appearance,omitempty"`
	Scenario     string    `json:"scenario,omitempty"`
	ImgGen       bool      `json:"imgGen"`
	ImageModel   string    `json:"imageModel,omitempty"`
	CreationTime time.Time `json:"creationTime"`
}

// Thread is a conversation between one user and one character.
type Thread struct {
	ThreadID     string    `json:"threadId"`
	UserID       string    `json:"userId"`
	CharacterID  string    `json:"characterId"`
	CreationTime time.Time `json:"creationTime"`
}

// Message belongs to exactly one thread. A message whose timestamp lies in
// the future is "scheduled": a reply that has not been delivered yet.
type Message struct {
	MessageID string    `json:"messageId"`
	ThreadID  string    `json:"threadId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Scheduled reports whether the message timestamp is strictly after now.
func (m *Message) Scheduled(now time.Time) bool { return m.Timestamp.After(now) }

// Event is an autonomous character record (thought or activity). Events are
// never scheduled; the timestamp is always the insertion time.
type Event struct {
	EventID     string    `json:"eventId"`
	CharacterID string    `json:"characterId"`
	Kind        string    `json:"kind"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
}

// Post is a character's social-media post. Image fields are written in a
// second pass once the image pipeline completes.
type Post struct {
	PostID      string    `json:"postId"`
	CharacterID string    `json:"characterId"`
	Description string    `json:"description"`
	ImagePost   bool      `json:"imagePost"`
	Prompt      string    `json:"prompt,omitempty"`
	Caption     string    `json:"caption,omitempty"`
	ImagePath   *string   `json:"imagePath,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Comment on a post. Append-only.
type Comment struct {
	CommentID string    `json:"commentId"`
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Like on a post. Append-only.
type Like struct {
	LikeID    string    `json:"likeId"`
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}
