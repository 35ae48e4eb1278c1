package repository

import (
	"context"
	"fmt"

	"artvault/internal/database"
	"artvault/internal/models"
	"artvault/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type reactionRepository struct {
	db *gorm.DB
}

// NewReactionRepository creates the SQL toggle implementation for likes and saves.
func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

func membership(kind models.ReactionKind, userID, postID uint) interface{} {
	if kind == models.ReactionSave {
		return &models.Save{UserID: userID, PostID: postID}
	}
	return &models.Like{UserID: userID, PostID: postID}
}

// Toggle flips the user's membership and adjusts the post counter in one
// transaction. On PostgreSQL the post row is locked first, so concurrent
// toggles on the same post serialize.
func (r *reactionRepository) Toggle(ctx context.Context, kind models.ReactionKind, userID, postID uint) (*models.ToggleResult, error) {
	if !kind.Valid() {
		return nil, models.NewValidationError(fmt.Sprintf("unknown reaction kind %q", kind))
	}

	ctx, span := observability.StartStoreSpan(ctx, r.db.Dialector.Name(), "toggle_"+string(kind), kind.Table())
	column := kind.CounterColumn()
	result := &models.ToggleResult{PostID: postID, Kind: kind}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lookup := tx.Select("id")
		if database.IsPostgres(tx) {
			lookup = lookup.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var post models.Post
		if err := lookup.First(&post, postID).Error; err != nil {
			return err
		}

		removed := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(membership(kind, 0, 0))
		if removed.Error != nil {
			return removed.Error
		}

		counter := tx.Model(&models.Post{}).Where("id = ?", postID)
		if removed.RowsAffected > 0 {
			if err := counter.UpdateColumn(column, gorm.Expr("CASE WHEN "+column+" > 0 THEN "+column+" - 1 ELSE 0 END")).Error; err != nil {
				return err
			}
			result.Active = false
		} else {
			if err := tx.Create(membership(kind, userID, postID)).Error; err != nil {
				return err
			}
			if err := counter.UpdateColumn(column, gorm.Expr(column+" + 1")).Error; err != nil {
				return err
			}
			result.Active = true
		}

		return tx.Model(&models.Post{}).Select(column).Where("id = ?", postID).Scan(&result.Count).Error
	})

	err = translate(err, "Post", postID)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}
