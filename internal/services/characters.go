package services

import (
	"context"
	"fmt"
	"regexp"

	"github.com/reverie-ai/reverie/internal/model"
	"github.com/reverie-ai/reverie/internal/store"
)

// pathRx keeps character paths url-safe.
var pathRx = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]{0,63}$`)

// CharacterService orchestrates character use cases. Characters are
// read-only to the response and event cycles; mutation happens only here.
type CharacterService struct {
	store store.Store
}

func NewCharacterService(s store.Store) *CharacterService { return &CharacterService{store: s} }

func (s *CharacterService) Create(ctx context.Context, c *model.Character) (*model.Character, error) {
	if c.Name == "" {
		return nil, fmt.Errorf("%w: character name is required", model.ErrValidation)
	}
	if !pathRx.MatchString(c.Path) {
		return nil, fmt.Errorf("%w: character path must be url-safe (lowercase letters, digits, hyphen)", model.ErrValidation)
	}
	if c.ImgGen && c.ImageModel == "" {
		return nil, fmt.Errorf("%w: img_gen requires an image model", model.ErrValidation)
	}
	return s.store.Characters().Create(ctx, c)
}

func (s *CharacterService) Get(ctx context.Context, characterID string) (*model.Character, error) {
	return s.store.Characters().Get(ctx, characterID)
}

func (s *CharacterService) GetByPath(ctx context.Context, path string) (*model.Character, error) {
	return s.store.Characters().GetByPath(ctx, path)
}

func (s *CharacterService) List(ctx context.Context) ([]*model.Character, error) {
	return s.store.Characters().List(ctx)
}

func (s *CharacterService) Delete(ctx context.Context, characterID string) error {
	return s.store.Characters().Delete(ctx, characterID)
}

func (s *CharacterService) ListEvents(ctx context.Context, characterID string) ([]*model.Event, error) {
	return s.store.Events().ListByCharacter(ctx, characterID)
}

func (s *CharacterService) DeleteEvent(ctx context.Context, eventID string) error {
	return s.store.Events().Delete(ctx, eventID)
}

func (s *CharacterService) ListPosts(ctx context.Context, characterID string) ([]*model.Post, error) {
	return s.store.Posts().ListByCharacter(ctx, characterID)
}
