// Package chatlog merges a character's messages, events and posts into one
// time-ordered content log suitable for feeding to the generation model.
package chatlog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/reverie-ai/reverie/internal/genai"
	"github.com/reverie-ai/reverie/internal/model"
	"github.com/reverie-ai/reverie/internal/store"
)

// TokenCounter reports the encoded size of a candidate log. The generation
// adapter satisfies this.
type TokenCounter interface {
	CountTokens(messages []genai.Message) (int, error)
}

// Options selects content classes and an optional token budget.
// A zero TokenBudget disables truncation.
type Options struct {
	IncludeMessages bool
	IncludeEvents   bool
	IncludePosts    bool
	TokenBudget     int
}

// Assembler builds content logs from the store.
type Assembler struct {
	store  store.Store
	tokens TokenCounter
}

func NewAssembler(s store.Store, tokens TokenCounter) *Assembler {
	return &Assembler{store: s, tokens: tokens}
}

// entry pairs a wire message with the timestamp used for ordering.
type entry struct {
	ts  time.Time
	msg genai.Message
}

// ForThread assembles the log for a single thread: that thread's messages
// plus, when requested, the character's events and posts.
func (a *Assembler) ForThread(ctx context.Context, th *model.Thread, ch *model.Character, opts Options) ([]genai.Message, error) {
	var entries []entry
	if opts.IncludeMessages {
		msgs, err := a.store.Messages().ListByThread(ctx, th.ThreadID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, convertMessages(msgs)...)
	}
	return a.finish(ctx, ch, entries, opts)
}

// ForCharacter assembles the full character content log across all threads.
func (a *Assembler) ForCharacter(ctx context.Context, ch *model.Character, opts Options) ([]genai.Message, error) {
	var entries []entry
	if opts.IncludeMessages {
		msgs, err := a.store.Messages().ListByCharacter(ctx, ch.CharacterID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, convertMessages(msgs)...)
	}
	return a.finish(ctx, ch, entries, opts)
}

func (a *Assembler) finish(ctx context.Context, ch *model.Character, entries []entry, opts Options) ([]genai.Message, error) {
	if opts.IncludeEvents {
		evs, err := a.store.Events().ListByCharacter(ctx, ch.CharacterID)
		if err != nil {
			return nil, err
		}
		for _, ev := range evs {
			entries = append(entries, convertEvent(ch, ev))
		}
	}
	if opts.IncludePosts {
		ps, err := a.store.Posts().ListByCharacter(ctx, ch.CharacterID)
		if err != nil {
			return nil, err
		}
		names := map[string]string{}
		for _, p := range ps {
			entries = append(entries, convertPost(ch, p))
			cms, err := a.store.Posts().ListComments(ctx, p.PostID)
			if err != nil {
				return nil, err
			}
			for _, cm := range cms {
				entries = append(entries, a.convertComment(ctx, ch, cm, names))
			}
		}
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ts.Before(entries[j].ts) })

	out := make([]genai.Message, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.msg)
	}
	if opts.TokenBudget > 0 {
		return a.truncate(out, opts.TokenBudget)
	}
	return out, nil
}

// truncate drops the oldest entry until the encoded total fits the budget.
// The result is always a suffix of the sorted log.
func (a *Assembler) truncate(entries []genai.Message, budget int) ([]genai.Message, error) {
	for len(entries) > 0 {
		n, err := a.tokens.CountTokens(entries)
		if err != nil {
			return nil, fmt.Errorf("token count during truncation: %w", err)
		}
		if n <= budget {
			break
		}
		entries = entries[1:]
	}
	return entries, nil
}

func stamp(ts time.Time) string { return ts.UTC().Format("2006-01-02 15:04") }

// convertMessages keeps the role and stamps the content. Messages missing a
// timestamp, content, role or thread linkage are skipped rather than fed to
// the model half-formed.
func convertMessages(msgs []*model.Message) []entry {
	var out []entry
	for _, m := range msgs {
		if m.Timestamp.IsZero() || m.Content == "" || m.Role == "" || m.ThreadID == "" {
			continue
		}
		out = append(out, entry{
			ts:  m.Timestamp,
			msg: genai.Message{Role: m.Role, Content: fmt.Sprintf("[%s] %s", stamp(m.Timestamp), m.Content)},
		})
	}
	return out
}

// convertEvent renders the event from the character's perspective; the
// phrasing differentiates thoughts from activities.
func convertEvent(ch *model.Character, ev *model.Event) entry {
	var content string
	switch ev.Kind {
	case model.EventKindThought:
		content = fmt.Sprintf("[%s] %s thought: %s", stamp(ev.Timestamp), ch.Name, ev.Content)
	default:
		content = fmt.Sprintf("[%s] %s did the following: %s", stamp(ev.Timestamp), ch.Name, ev.Content)
	}
	return entry{ts: ev.Timestamp, msg: genai.Message{Role: genai.RoleAssistant, Content: content}}
}

// convertComment renders a user's comment on the character's post. Usernames
// are resolved once per user; an unresolvable user degrades to "someone".
func (a *Assembler) convertComment(ctx context.Context, ch *model.Character, cm *model.Comment, names map[string]string) entry {
	name, ok := names[cm.UserID]
	if !ok {
		name = "someone"
		if u, err := a.store.Users().Get(ctx, cm.UserID); err == nil {
			name = u.Username
		}
		names[cm.UserID] = name
	}
	content := fmt.Sprintf("[%s] %s commented on %s's post: %s", stamp(cm.Timestamp), name, ch.Name, cm.Content)
	return entry{ts: cm.Timestamp, msg: genai.Message{Role: genai.RoleUser, Content: content}}
}

// convertPost differentiates image and text posts; the caption is only
// meaningful for image posts.
func convertPost(ch *model.Character, p *model.Post) entry {
	var content string
	if p.ImagePost {
		content = fmt.Sprintf("[%s] %s made an image post: %s (caption: %s)", stamp(p.Timestamp), ch.Name, p.Description, p.Caption)
	} else {
		content = fmt.Sprintf("[%s] %s posted: %s", stamp(p.Timestamp), ch.Name, p.Description)
	}
	return entry{ts: p.Timestamp, msg: genai.Message{Role: genai.RoleAssistant, Content: content}}
}
