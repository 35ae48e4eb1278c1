package repository

import (
	"context"

	"artvault/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requirePost(tx, comment.PostID); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", comment.PostID).
			UpdateColumn("comments_count", gorm.Expr("comments_count + 1")).Error
	})
	if err != nil {
		return translate(err, "Post", comment.PostID)
	}
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.withAuthor(r.db.WithContext(ctx)).First(&comment, id).Error; err != nil {
		return nil, translate(err, "Comment", id)
	}
	return &comment, nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uint, page Page) ([]*models.Comment, error) {
	db := r.db.WithContext(ctx)
	if err := requirePost(db, postID); err != nil {
		return nil, translate(err, "Post", postID)
	}

	page = page.Normalize()
	var comments []*models.Comment
	err := r.withAuthor(db).
		Where("post_id = ?", postID).
		Order("created_at desc").
		Order("id desc").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&comments).Error
	if err != nil {
		return nil, translate(err, "Comment", nil)
	}
	return comments, nil
}

func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	res := r.db.WithContext(ctx).Model(&models.Comment{ID: comment.ID}).Update("content", comment.Content)
	if res.Error == nil && res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", comment.ID)
	}
	return translate(res.Error, "Comment", comment.ID)
}

// Delete soft-deletes the comment and decrements the post counter.
func (r *commentRepository) Delete(ctx context.Context, comment *models.Comment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ?", comment.PostID).Delete(&models.Comment{}, comment.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Comment", comment.ID)
		}
		return tx.Model(&models.Post{}).Where("id = ?", comment.PostID).
			UpdateColumn("comments_count", gorm.Expr("CASE WHEN comments_count > 0 THEN comments_count - 1 ELSE 0 END")).Error
	})
	return translate(err, "Comment", comment.ID)
}

func (r *commentRepository) withAuthor(db *gorm.DB) *gorm.DB {
	return db.Preload("User", func(tx *gorm.DB) *gorm.DB {
		return tx.Select("id", "username", "display_name", "profile_image")
	})
}

// requirePost fails with NOT_FOUND when the post is missing or deleted.
func requirePost(db *gorm.DB, postID uint) error {
	var count int64
	if err := db.Model(&models.Post{}).Where("id = ?", postID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return models.NewNotFoundError("Post", postID)
	}
	return nil
}
