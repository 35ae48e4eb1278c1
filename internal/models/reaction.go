package models

import "time"

// ReactionKind selects which membership a toggle applies to.
type ReactionKind string

const (
	ReactionLike ReactionKind = "like"
	ReactionSave ReactionKind = "save"
)

// Valid reports whether k is a known kind.
func (k ReactionKind) Valid() bool {
	return k == ReactionLike || k == ReactionSave
}

// Table is the membership table for the kind.
func (k ReactionKind) Table() string {
	if k == ReactionSave {
		return "saves"
	}
	return "likes"
}

// CounterColumn is the posts column that counts memberships of the kind.
func (k ReactionKind) CounterColumn() string {
	if k == ReactionSave {
		return "saves_count"
	}
	return "likes_count"
}

// Like records that a user liked a post.
type Like struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	PostID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Save records that a user saved a post to their collection.
type Save struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	PostID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ToggleResult is the state after a like or save toggle.
type ToggleResult struct {
	PostID uint         `json:"post_id"`
	Kind   ReactionKind `json:"kind"`
	Active bool         `json:"active"`
	Count  int          `json:"count"`
}
