package service

import (
	"context"

	"artvault/internal/cache"
	"artvault/internal/models"
	"artvault/internal/observability"
	"artvault/internal/repository"
)

// ReactionService flips likes and saves through one toggle path and serves
// the liked and saved lists derived from the same memberships.
type ReactionService struct {
	reactions repository.ReactionRepository
	postRepo  repository.PostRepository
}

func NewReactionService(reactions repository.ReactionRepository, postRepo repository.PostRepository) *ReactionService {
	return &ReactionService{reactions: reactions, postRepo: postRepo}
}

func (s *ReactionService) ToggleLike(ctx context.Context, userID, postID uint) (*models.ToggleResult, error) {
	return s.Toggle(ctx, models.ReactionLike, userID, postID)
}

func (s *ReactionService) ToggleSave(ctx context.Context, userID, postID uint) (*models.ToggleResult, error) {
	return s.Toggle(ctx, models.ReactionSave, userID, postID)
}

// Toggle adds the membership when absent and removes it when present, moving
// the post counter with it atomically.
func (s *ReactionService) Toggle(ctx context.Context, kind models.ReactionKind, userID, postID uint) (*models.ToggleResult, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	res, err := s.reactions.Toggle(ctx, kind, userID, postID)
	if err != nil {
		return nil, err
	}
	observability.RecordToggle(string(kind), res.Active)
	cache.InvalidatePost(ctx, postID)
	return res, nil
}

func (s *ReactionService) ListLiked(ctx context.Context, userID uint, in ListPostsInput) ([]*models.Post, error) {
	return s.postRepo.ListLiked(ctx, userID, in.page())
}

func (s *ReactionService) ListSaved(ctx context.Context, userID uint, in ListPostsInput) ([]*models.Post, error) {
	return s.postRepo.ListSaved(ctx, userID, in.page())
}
