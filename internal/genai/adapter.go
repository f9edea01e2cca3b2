package genai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/reverie-ai/reverie/internal/model"
)

// Adapter wraps a Backend behind the call contract the core relies on. It
// validates inputs before the remote call and maps backend failures onto the
// dependency-failure taxonomy.
type Adapter struct {
	backend Backend
	log     zerolog.Logger
}

func NewAdapter(b Backend, log zerolog.Logger) *Adapter {
	return &Adapter{backend: b, log: log}
}

// Generate sends the system prompt plus history to the backend and returns
// the model's reply. The last history entry must not be an assistant turn;
// that is a caller bug and fails fast without a remote call.
func (a *Adapter) Generate(ctx context.Context, systemPrompt string, history []Message) (Message, error) {
	if len(history) > 0 && history[len(history)-1].Role == RoleAssistant {
		return Message{}, fmt.Errorf("%w: history ends with an assistant turn", model.ErrInvariant)
	}
	msgs := make([]Message, 0, len(history)+1)
	msgs = append(msgs, Message{Role: RoleSystem, Content: systemPrompt})
	msgs = append(msgs, history...)

	out, err := a.backend.Generate(ctx, msgs)
	if err != nil {
		return Message{}, fmt.Errorf("%w: generate: %v", model.ErrDependency, err)
	}
	a.log.Debug().Int("history", len(history)).Int("reply_len", len(out.Content)).Msg("generation complete")
	return out, nil
}

// CountTokens reports the backend's encoded size of entries. Used by chatlog
// truncation.
func (a *Adapter) CountTokens(messages []Message) (int, error) {
	n, err := a.backend.CountTokens(messages)
	if err != nil {
		return 0, fmt.Errorf("%w: count tokens: %v", model.ErrDependency, err)
	}
	return n, nil
}
