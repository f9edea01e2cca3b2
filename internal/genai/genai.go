// Package genai is the single seam between the core and the text-generation
// model.
package genai

import "context"

// Message roles used on the generation wire.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry of a generation conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Backend is a concrete text-generation implementation (remote model or
// test double). It has no side effects beyond the remote call.
type Backend interface {
	Generate(ctx context.Context, messages []Message) (Message, error)
	CountTokens(messages []Message) (int, error)
}
