// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account that can post, like, save, and comment.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"uniqueIndex;not null" json:"username"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email,omitempty"`
	Password     string         `gorm:"not null" json:"-"`
	DisplayName  string         `json:"display_name"`
	Bio          string         `json:"bio"`
	ProfileImage string         `json:"profile_image"`
	Website      string         `json:"website"`
	IsAdmin      bool           `gorm:"default:false" json:"is_admin"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// UserSummary is the public author card embedded in posts and comments.
type UserSummary struct {
	ID           uint   `json:"id"`
	Username     string `json:"username"`
	DisplayName  string `json:"display_name,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
}

// Summary returns the public author card for u.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:           u.ID,
		Username:     u.Username,
		DisplayName:  u.DisplayName,
		ProfileImage: u.ProfileImage,
	}
}

// PublicName is the name shown as an artist credit.
func (u *User) PublicName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Public returns a copy of u without private fields.
func (u *User) Public() *User {
	cp := *u
	cp.Email = ""
	return &cp
}
