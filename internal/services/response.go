package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/reverie-ai/reverie/internal/chatlog"
	"github.com/reverie-ai/reverie/internal/genai"
	"github.com/reverie-ai/reverie/internal/model"
	"github.com/reverie-ai/reverie/internal/prompt"
	"github.com/reverie-ai/reverie/internal/store"
	"github.com/reverie-ai/reverie/internal/timeparse"
)

// DefaultContentAttempts bounds how often a malformed reply envelope is
// regenerated before the last parse error surfaces.
const DefaultContentAttempts = 5

// DefaultTokenBudget is the chatlog truncation budget fed to the model.
const DefaultTokenBudget = 3000

// ResponseService is the per-thread response cycle. It decides when a
// character speaks next, persists that decision as a scheduled message, and
// reconciles it against user actions.
//
// Thread state is derived entirely from stored timestamps: a thread with no
// future-stamped message is idle, a thread with one is scheduled. The
// service never caches state in memory, so correctness survives restarts.
type ResponseService struct {
	store    store.Store
	gen      *genai.Adapter
	logs     *chatlog.Assembler
	prompts  *prompt.Renderer
	log      zerolog.Logger
	budget   int
	attempts int
	locks    keyedMutex
}

func NewResponseService(s store.Store, gen *genai.Adapter, logs *chatlog.Assembler, prompts *prompt.Renderer, log zerolog.Logger) *ResponseService {
	return &ResponseService{
		store:    s,
		gen:      gen,
		logs:     logs,
		prompts:  prompts,
		log:      log,
		budget:   DefaultTokenBudget,
		attempts: DefaultContentAttempts,
	}
}

// SetTokenBudget overrides the chatlog truncation budget.
func (s *ResponseService) SetTokenBudget(n int) { s.budget = n }

// Trigger runs one response cycle for the thread. Any currently scheduled
// message is deleted first, which is what enforces the at-most-one-scheduled
// invariant. When override is nil the delay is asked from the model;
// otherwise the given delay is used directly.
func (s *ResponseService) Trigger(ctx context.Context, threadID string, override *time.Duration) (*model.Message, error) {
	unlock := s.locks.Lock(threadID)
	defer unlock()
	return s.run(ctx, threadID, override)
}

// RespondNow implements the manual "get response now" action: an existing
// scheduled message is promoted to the present without regenerating its
// content; with nothing scheduled, a full cycle runs with zero delay.
func (s *ResponseService) RespondNow(ctx context.Context, threadID string) (*model.Message, error) {
	unlock := s.locks.Lock(threadID)
	defer unlock()

	scheduled, err := s.store.Messages().ListScheduled(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if len(scheduled) > 0 {
		return s.store.Messages().Promote(ctx, scheduled[0].MessageID)
	}
	zero := time.Duration(0)
	return s.run(ctx, threadID, &zero)
}

// PostUserMessage inserts the user's message at now and kicks off a response
// cycle on a background task. The cycle is detached from the request
// context: once started it runs to completion or failure.
func (s *ResponseService) PostUserMessage(ctx context.Context, threadID, content string) (*model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: message content is required", model.ErrValidation)
	}
	if _, err := s.store.Threads().Get(ctx, threadID); err != nil {
		return nil, err
	}
	msg, err := s.store.Messages().Create(ctx, &model.Message{ThreadID: threadID, Role: model.RoleUser, Content: content})
	if err != nil {
		return nil, err
	}
	go func() {
		if _, err := s.Trigger(context.Background(), threadID, nil); err != nil {
			s.log.Error().Err(err).Str("thread_id", threadID).Msg("background response cycle failed")
		}
	}()
	return msg, nil
}

// DeleteFrom removes the message and everything after it in the thread. The
// cascade is what lets a user rewind a conversation; any pending scheduled
// message is always the latest row, so it is cleared implicitly.
func (s *ResponseService) DeleteFrom(ctx context.Context, threadID, messageID string) (int64, error) {
	unlock := s.locks.Lock(threadID)
	defer unlock()
	return s.store.Messages().DeleteFrom(ctx, threadID, messageID)
}

// run executes one cycle. The caller must hold the thread lock.
func (s *ResponseService) run(ctx context.Context, threadID string, override *time.Duration) (*model.Message, error) {
	th, err := s.store.Threads().Get(ctx, threadID)
	if err != nil {
		return nil, err
	}
	ch, err := s.store.Characters().Get(ctx, th.CharacterID)
	if err != nil {
		return nil, err
	}
	user, err := s.store.Users().Get(ctx, th.UserID)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Messages().DeleteScheduled(ctx, threadID); err != nil {
		return nil, err
	}

	pctx := prompt.CharacterContext(ch, user.Username)
	system, err := s.prompts.Render(prompt.KeySystem, pctx)
	if err != nil {
		return nil, err
	}

	var delay time.Duration
	if override != nil {
		delay = *override
	} else {
		delay, err = s.computeDelay(ctx, th, ch, system, pctx)
		if err != nil {
			return nil, err
		}
	}

	content, err := s.generateContent(ctx, th, ch, system, pctx)
	if err != nil {
		return nil, err
	}

	msg, err := s.store.Messages().CreateScheduled(ctx, &model.Message{
		ThreadID: threadID,
		Role:     model.RoleAssistant,
		Content:  content,
	}, delay)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("thread_id", threadID).
		Dur("delay", delay).
		Str("message_id", msg.MessageID).
		Msg("response scheduled")
	return msg, nil
}

// computeDelay asks the model how long the character waits before its next
// message. The reply is free prose; the permissive time parser never fails,
// so a chatty answer degrades to a zero delay instead of stalling the cycle.
func (s *ResponseService) computeDelay(ctx context.Context, th *model.Thread, ch *model.Character, system string, pctx map[string]string) (time.Duration, error) {
	history, err := s.logs.ForThread(ctx, th, ch, chatlog.Options{IncludeMessages: true, TokenBudget: s.budget})
	if err != nil {
		return 0, err
	}
	question, err := s.prompts.Render(prompt.KeyDelay, pctx)
	if err != nil {
		return 0, err
	}
	history = append(history, genai.Message{Role: genai.RoleUser, Content: question})
	reply, err := s.gen.Generate(ctx, system, history)
	if err != nil {
		return 0, err
	}
	return timeparse.Parse(reply.Content), nil
}

// generateContent asks the model for the reply itself. The answer must be a
// JSON envelope carrying a message field; malformed envelopes are regenerated
// up to the attempt ceiling, any other failure is permanent.
func (s *ResponseService) generateContent(ctx context.Context, th *model.Thread, ch *model.Character, system string, pctx map[string]string) (string, error) {
	history, err := s.logs.ForThread(ctx, th, ch, chatlog.Options{IncludeMessages: true, TokenBudget: s.budget})
	if err != nil {
		return "", err
	}
	request, err := s.prompts.Render(prompt.KeyReply, pctx)
	if err != nil {
		return "", err
	}
	history = append(history, genai.Message{Role: genai.RoleUser, Content: request})

	attempt := 0
	op := func() (string, error) {
		attempt++
		out, err := s.gen.Generate(ctx, system, history)
		if err != nil {
			return "", backoff.Permanent(err)
		}
		content, err := parseReplyEnvelope(out.Content)
		if err != nil {
			s.log.Warn().Err(err).Int("attempt", attempt).Str("thread_id", th.ThreadID).Msg("malformed reply envelope, regenerating")
			return "", err
		}
		return content, nil
	}
	return backoff.RetryWithData(op, backoff.WithMaxRetries(backoff.NewConstantBackOff(0), uint64(s.attempts-1)))
}

type replyEnvelope struct {
	Message string `json:"message"`
}

// parseReplyEnvelope extracts the message field from the model's JSON reply.
// Commentary around the envelope is tolerated by slicing the outermost
// braces before decoding.
func parseReplyEnvelope(raw string) (string, error) {
	candidate := raw
	if i, j := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); i >= 0 && j > i {
		candidate = raw[i : j+1]
	}
	var env replyEnvelope
	if err := json.Unmarshal([]byte(candidate), &env); err != nil {
		return "", fmt.Errorf("%w: reply envelope: %v", model.ErrMalformedOutput, err)
	}
	if env.Message == "" {
		return "", fmt.Errorf("%w: reply envelope missing message field", model.ErrMalformedOutput)
	}
	return env.Message, nil
}
