package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/reverie-ai/reverie/internal/model"
	"github.com/reverie-ai/reverie/internal/store"
)

// PostService orchestrates the social surface around character posts.
// Posts themselves are generated autonomously; users only read, comment
// and like.
type PostService struct {
	store store.Store
}

func NewPostService(s store.Store) *PostService { return &PostService{store: s} }

func (s *PostService) Get(ctx context.Context, postID string) (*model.Post, error) {
	return s.store.Posts().Get(ctx, postID)
}

func (s *PostService) Comment(ctx context.Context, postID, userID, content string) (*model.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: comment content is required", model.ErrValidation)
	}
	if _, err := s.store.Posts().Get(ctx, postID); err != nil {
		return nil, err
	}
	if _, err := s.store.Users().Get(ctx, userID); err != nil {
		return nil, fmt.Errorf("%w: unknown user %s", model.ErrValidation, userID)
	}
	return s.store.Posts().CreateComment(ctx, &model.Comment{PostID: postID, UserID: userID, Content: content})
}

func (s *PostService) ListComments(ctx context.Context, postID string) ([]*model.Comment, error) {
	if _, err := s.store.Posts().Get(ctx, postID); err != nil {
		return nil, err
	}
	return s.store.Posts().ListComments(ctx, postID)
}

func (s *PostService) Like(ctx context.Context, postID, userID string) (*model.Like, error) {
	if _, err := s.store.Posts().Get(ctx, postID); err != nil {
		return nil, err
	}
	if _, err := s.store.Users().Get(ctx, userID); err != nil {
		return nil, fmt.Errorf("%w: unknown user %s", model.ErrValidation, userID)
	}
	return s.store.Posts().CreateLike(ctx, &model.Like{PostID: postID, UserID: userID})
}

func (s *PostService) ListLikes(ctx context.Context, postID string) ([]*model.Like, error) {
	if _, err := s.store.Posts().Get(ctx, postID); err != nil {
		return nil, err
	}
	return s.store.Posts().ListLikes(ctx, postID)
}
