package genai

import (
	"context"
	"strings"
	"sync"
)

// Mock is a deterministic Backend for tests. Replies are served from a
// scripted queue; once the queue is exhausted it returns Fallback. Token
// counts are whitespace-separated word counts, which makes truncation tests
// reproducible by hand.
type Mock struct {
	mu       sync.Mutex
	queue    []string
	calls    [][]Message
	Fallback string
	Err      error
}

func NewMock(replies ...string) *Mock {
	return &Mock{queue: replies, Fallback: "ok"}
}

func (m *Mock) Generate(_ context.Context, messages []Message) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return Message{}, m.Err
	}
	cp := make([]Message, len(messages))
	copy(cp, messages)
	m.calls = append(m.calls, cp)

	content := m.Fallback
	if len(m.queue) > 0 {
		content = m.queue[0]
		m.queue = m.queue[1:]
	}
	return Message{Role: RoleAssistant, Content: content}, nil
}

func (m *Mock) CountTokens(messages []Message) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	total := 0
	for _, msg := range messages {
		total += len(strings.Fields(msg.Content))
	}
	return total, nil
}

// Enqueue appends further scripted replies.
func (m *Mock) Enqueue(replies ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, replies...)
}

// Calls returns a copy of every message list passed to Generate.
func (m *Mock) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]Message, len(m.calls))
	copy(out, m.calls)
	return out
}
