package services

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/reverie-ai/reverie/internal/chatlog"
	"github.com/reverie-ai/reverie/internal/genai"
	"github.com/reverie-ai/reverie/internal/model"
	"github.com/reverie-ai/reverie/internal/prompt"
	"github.com/reverie-ai/reverie/internal/store"
)

// imageOdds is the probability that a post by an image-capable character is
// an image post; even with img_gen set, two thirds fall back to text.
const imageOdds = 1.0 / 3

// ImageRunner receives completed image posts for asynchronous rendering.
// The image pipeline satisfies this; tests inject fakes.
type ImageRunner interface {
	Run(ctx context.Context, post *model.Post, ch *model.Character) error
}

// EventService is the autonomous event cycle: unscheduled thought/activity
// events and social posts, generated with a single adapter call each and
// written immediately.
type EventService struct {
	store   store.Store
	gen     *genai.Adapter
	logs    *chatlog.Assembler
	prompts *prompt.Renderer
	images  ImageRunner
	rand    func() float64
	log     zerolog.Logger
	budget  int
}

func NewEventService(s store.Store, gen *genai.Adapter, logs *chatlog.Assembler, prompts *prompt.Renderer, images ImageRunner, log zerolog.Logger) *EventService {
	return &EventService{
		store:   s,
		gen:     gen,
		logs:    logs,
		prompts: prompts,
		images:  images,
		rand:    rand.Float64,
		log:     log,
		budget:  DefaultTokenBudget,
	}
}

// SetRand replaces the random source. Tests use this to force the image
// coin.
func (s *EventService) SetRand(f func() float64) { s.rand = f }

// SetTokenBudget overrides the chatlog truncation budget.
func (s *EventService) SetTokenBudget(n int) { s.budget = n }

// GenerateEvent produces one thought or activity event for the character.
// No delay step, no retry: a single adapter call, inserted at now.
func (s *EventService) GenerateEvent(ctx context.Context, characterID, kind string) (*model.Event, error) {
	if kind != model.EventKindThought && kind != model.EventKindEvent {
		return nil, fmt.Errorf("%w: unknown event kind %q", model.ErrValidation, kind)
	}
	ch, err := s.store.Characters().Get(ctx, characterID)
	if err != nil {
		return nil, err
	}

	promptKey := prompt.KeyThought
	if kind == model.EventKindEvent {
		promptKey = prompt.KeyEvent
	}
	content, err := s.generateFor(ctx, ch, promptKey, nil)
	if err != nil {
		return nil, err
	}

	ev, err := s.store.Events().Create(ctx, &model.Event{CharacterID: characterID, Kind: kind, Content: content})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("character_id", characterID).Str("kind", kind).Str("event_id", ev.EventID).Msg("event generated")
	return ev, nil
}

// GeneratePost produces one social post. A single uniform draw decides
// image vs text; image posts additionally get a generation prompt and a
// caption before being handed to the image pipeline.
func (s *EventService) GeneratePost(ctx context.Context, characterID string) (*model.Post, error) {
	ch, err := s.store.Characters().Get(ctx, characterID)
	if err != nil {
		return nil, err
	}

	imagePost := ch.ImgGen && s.rand() < imageOdds

	description, err := s.generateFor(ctx, ch, prompt.KeyPostText, nil)
	if err != nil {
		return nil, err
	}
	post := &model.Post{CharacterID: characterID, Description: description, ImagePost: imagePost}

	if imagePost {
		if ch.ImageModel == "" {
			return nil, fmt.Errorf("%w: character %s has img_gen without an image model", model.ErrInvariant, characterID)
		}
		imgPrompt, err := s.generateFor(ctx, ch, prompt.KeyImagePrompt, map[string]string{"description": description})
		if err != nil {
			return nil, err
		}
		caption, err := s.generateFor(ctx, ch, prompt.KeyCaption, map[string]string{"photo_description": imgPrompt})
		if err != nil {
			return nil, err
		}
		post.Prompt = imgPrompt
		post.Caption = caption
	}

	created, err := s.store.Posts().Create(ctx, post)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("character_id", characterID).Str("post_id", created.PostID).Bool("image", imagePost).Msg("post generated")

	if imagePost && s.images != nil {
		go func() {
			if err := s.images.Run(context.Background(), created, ch); err != nil {
				s.log.Error().Err(err).Str("post_id", created.PostID).Msg("image pipeline failed")
			}
		}()
	}
	return created, nil
}

// generateFor assembles the full character content log, appends the synthetic
// request and returns the model's raw reply.
func (s *EventService) generateFor(ctx context.Context, ch *model.Character, promptKey string, extra map[string]string) (string, error) {
	pctx := prompt.CharacterContext(ch, "")
	for k, v := range extra {
		pctx[k] = v
	}
	system, err := s.prompts.Render(prompt.KeySystem, pctx)
	if err != nil {
		return "", err
	}
	history, err := s.logs.ForCharacter(ctx, ch, chatlog.Options{
		IncludeMessages: true,
		IncludeEvents:   true,
		IncludePosts:    true,
		TokenBudget:     s.budget,
	})
	if err != nil {
		return "", err
	}
	request, err := s.prompts.Render(promptKey, pctx)
	if err != nil {
		return "", err
	}
	history = append(history, genai.Message{Role: genai.RoleUser, Content: request})
	out, err := s.gen.Generate(ctx, system, history)
	if err != nil {
		return "", err
	}
	return out.Content, nil
}
