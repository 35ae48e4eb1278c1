package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"artvault/internal/cache"
	"artvault/internal/models"
	"artvault/internal/repository"
)

const maxCommentLen = 2000

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	isAdmin     func(ctx context.Context, userID uint) (bool, error)
}

type CreateCommentInput struct {
	UserID  uint
	PostID  uint
	Content string
}

type UpdateCommentInput struct {
	UserID    uint
	PostID    uint
	CommentID uint
	Content   string
}

type DeleteCommentInput struct {
	UserID    uint
	PostID    uint
	CommentID uint
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		isAdmin:     isAdmin,
	}
}

func validateCommentContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", models.NewValidationError("Content is required")
	}
	if utf8.RuneCountInString(content) > maxCommentLen {
		return "", models.NewValidationError(fmt.Sprintf("Comment too long (max %d characters)", maxCommentLen))
	}
	return content, nil
}

func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	content, err := validateCommentContent(in.Content)
	if err != nil {
		return nil, err
	}
	comment := &models.Comment{
		Content: content,
		UserID:  in.UserID,
		PostID:  in.PostID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	cache.InvalidatePost(ctx, in.PostID)
	return s.commentRepo.GetByID(ctx, comment.ID)
}

func (s *CommentService) ListComments(ctx context.Context, postID uint, page repository.Page) ([]*models.Comment, error) {
	return s.commentRepo.ListByPost(ctx, postID, page.Normalize())
}

// commentOnPost loads a comment and checks it belongs to postID.
func (s *CommentService) commentOnPost(ctx context.Context, postID, commentID uint) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if postID != 0 && comment.PostID != postID {
		return nil, models.NewNotFoundError("Comment", commentID)
	}
	return comment, nil
}

func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	comment, err := s.commentOnPost(ctx, in.PostID, in.CommentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != in.UserID {
		return nil, models.NewForbiddenError("You can only update your own comments")
	}
	content, err := validateCommentContent(in.Content)
	if err != nil {
		return nil, err
	}

	comment.Content = content
	if err := s.commentRepo.Update(ctx, comment); err != nil {
		return nil, err
	}
	return s.commentRepo.GetByID(ctx, comment.ID)
}

// DeleteComment allows the comment author, the post author, or an admin.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) (*models.Comment, error) {
	comment, err := s.commentOnPost(ctx, in.PostID, in.CommentID)
	if err != nil {
		return nil, err
	}

	if comment.UserID != in.UserID {
		post, err := s.postRepo.GetByID(ctx, comment.PostID, 0)
		if err != nil {
			return nil, err
		}
		if post.UserID != in.UserID {
			if err := requireAdmin(ctx, s.isAdmin, in.UserID, "You can only delete your own comments"); err != nil {
				return nil, err
			}
		}
	}

	if err := s.commentRepo.Delete(ctx, comment); err != nil {
		return nil, err
	}
	cache.InvalidatePost(ctx, comment.PostID)
	return comment, nil
}
