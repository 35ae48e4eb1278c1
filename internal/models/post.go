package models

import (
	"time"

	"gorm.io/gorm"
)

// Post is an artwork submission.
type Post struct {
	ID          uint     `gorm:"primaryKey" json:"id"`
	Title       string   `gorm:"not null" json:"title"`
	Description string   `gorm:"type:text;not null" json:"description"`
	ImageURL    string   `gorm:"not null" json:"image_url"`
	ImageKey    string   `json:"image_key,omitempty"`
	Artist      string   `gorm:"index;not null" json:"artist"`
	Hashtags    []string `gorm:"type:text;serializer:json" json:"hashtags"`
	UserID      uint     `gorm:"not null;index" json:"user_id"`
	User        User     `gorm:"foreignKey:UserID" json:"user"`

	LikesCount    int `gorm:"not null;default:0" json:"likes_count"`
	SavesCount    int `gorm:"not null;default:0" json:"saves_count"`
	CommentsCount int `gorm:"not null;default:0" json:"comments_count"`

	HasExhibition bool        `gorm:"not null;default:false" json:"has_exhibition"`
	Exhibition    *Exhibition `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"exhibition"`

	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	City      string   `json:"city,omitempty"`

	// Liked and Saved are computed per viewer at query time.
	Liked bool `gorm:"->;-:migration" json:"liked"`
	Saved bool `gorm:"->;-:migration" json:"saved"`

	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// HasCoordinates reports whether the post carries a geotag.
func (p *Post) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}
