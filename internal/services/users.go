package services

import (
	"context"
	"fmt"
	"regexp"

	"github.com/reverie-ai/reverie/internal/model"
	"github.com/reverie-ai/reverie/internal/store"
)

var usernameRx = regexp.MustCompile(`^[a-z0-9_]{1,32}$`)

// UserService orchestrates account use cases.
type UserService struct {
	store store.Store
}

func NewUserService(s store.Store) *UserService { return &UserService{store: s} }

func (s *UserService) Create(ctx context.Context, u *model.User) (*model.User, error) {
	if !usernameRx.MatchString(u.Username) {
		return nil, fmt.Errorf("%w: username must be lowercase letters, digits or underscore (1-32 chars)", model.ErrValidation)
	}
	return s.store.Users().Create(ctx, u)
}

func (s *UserService) Get(ctx context.Context, userID string) (*model.User, error) {
	return s.store.Users().Get(ctx, userID)
}
