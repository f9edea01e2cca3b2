package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/reverie-ai/reverie/internal/model"
	"github.com/reverie-ai/reverie/internal/store"
)

// ThreadService orchestrates thread use cases.
type ThreadService struct {
	store store.Store
}

func NewThreadService(s store.Store) *ThreadService { return &ThreadService{store: s} }

// Create returns the existing thread for the (user, character) pairing when
// one exists; otherwise it validates both sides and creates a new thread.
func (s *ThreadService) Create(ctx context.Context, userID, characterID string) (*model.Thread, error) {
	if existing, err := s.store.Threads().GetByUserCharacter(ctx, userID, characterID); err == nil {
		return existing, nil
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	if _, err := s.store.Users().Get(ctx, userID); err != nil {
		return nil, fmt.Errorf("%w: unknown user %s", model.ErrValidation, userID)
	}
	if _, err := s.store.Characters().Get(ctx, characterID); err != nil {
		return nil, fmt.Errorf("%w: unknown character %s", model.ErrValidation, characterID)
	}
	return s.store.Threads().Create(ctx, &model.Thread{UserID: userID, CharacterID: characterID})
}

func (s *ThreadService) Get(ctx context.Context, threadID string) (*model.Thread, error) {
	return s.store.Threads().Get(ctx, threadID)
}

func (s *ThreadService) ListByUser(ctx context.Context, userID string) ([]*model.Thread, error) {
	return s.store.Threads().ListByUser(ctx, userID)
}

func (s *ThreadService) ListMessages(ctx context.Context, threadID string) ([]*model.Message, error) {
	if _, err := s.store.Threads().Get(ctx, threadID); err != nil {
		return nil, err
	}
	return s.store.Messages().ListByThread(ctx, threadID)
}
