package models

import "time"

// Exhibition describes where a posted artwork is shown.
// A post has at most one; posts without the exhibition flag have none.
type Exhibition struct {
	ID        uint       `gorm:"primaryKey" json:"-"`
	PostID    uint       `gorm:"uniqueIndex;not null" json:"-"`
	Name      string     `gorm:"not null" json:"name"`
	Location  string     `json:"location,omitempty"`
	City      string     `gorm:"index" json:"city,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
	Latitude  *float64   `gorm:"index:idx_exhibition_coords" json:"latitude"`
	Longitude *float64   `gorm:"index:idx_exhibition_coords" json:"longitude"`
	CreatedAt time.Time  `json:"-"`
	UpdatedAt time.Time  `json:"-"`
}

// HasCoordinates reports whether the exhibition can be placed on a map.
func (e *Exhibition) HasCoordinates() bool {
	return e != nil && e.Latitude != nil && e.Longitude != nil
}

// NearbyExhibition is an exhibition with its distance from a search point.
type NearbyExhibition struct {
	PostID     uint        `json:"post_id"`
	Title      string      `json:"title"`
	Artist     string      `json:"artist"`
	ImageURL   string      `json:"image_url"`
	Exhibition Exhibition  `json:"exhibition"`
	DistanceKM float64     `json:"distance_km"`
	Author     UserSummary `json:"author"`
}
