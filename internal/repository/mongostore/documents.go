package mongostore

import (
	"strconv"
	"strings"
	"time"

	"artvault/internal/models"
)

type userDoc struct {
	ID           int64     `bson:"_id"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email"`
	EmailLower   string    `bson:"emailLower"`
	Password     string    `bson:"password"`
	DisplayName  string    `bson:"displayName"`
	Bio          string    `bson:"bio"`
	ProfileImage string    `bson:"profileImage"`
	Website      string    `bson:"website"`
	IsAdmin      bool      `bson:"isAdmin"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

type exhibitionDoc struct {
	Name      string     `bson:"name"`
	Location  string     `bson:"location,omitempty"`
	City      string     `bson:"city,omitempty"`
	Date      *time.Time `bson:"date,omitempty"`
	Latitude  *float64   `bson:"latitude,omitempty"`
	Longitude *float64   `bson:"longitude,omitempty"`
}

type postDoc struct {
	ID            int64          `bson:"_id"`
	Title         string         `bson:"title"`
	Description   string         `bson:"description"`
	ImageURL      string         `bson:"imageUrl"`
	ImageKey      string         `bson:"imageKey,omitempty"`
	Artist        string         `bson:"artist"`
	ArtistLower   string         `bson:"artistLower"`
	Hashtags      []string       `bson:"hashtags"`
	UserID        int64          `bson:"userId"`
	LikesCount    int            `bson:"likesCount"`
	SavesCount    int            `bson:"savesCount"`
	CommentsCount int            `bson:"commentsCount"`
	LikedBy       []int64        `bson:"likedBy"`
	SavedBy       []int64        `bson:"savedBy"`
	HasExhibition bool           `bson:"hasExhibition"`
	Exhibition    *exhibitionDoc `bson:"exhibition"`
	Latitude      *float64       `bson:"latitude,omitempty"`
	Longitude     *float64       `bson:"longitude,omitempty"`
	City          string         `bson:"city,omitempty"`
	Deleted       bool           `bson:"deleted"`
	CreatedAt     time.Time      `bson:"createdAt"`
	UpdatedAt     time.Time      `bson:"updatedAt"`

	// LikedAt and SavedAt hold the membership time per user ID.
	LikedAt map[string]time.Time `bson:"likedAt,omitempty"`
	SavedAt map[string]time.Time `bson:"savedAt,omitempty"`
}

type commentDoc struct {
	ID        int64     `bson:"_id"`
	PostID    int64     `bson:"postId"`
	UserID    int64     `bson:"userId"`
	Content   string    `bson:"content"`
	Deleted   bool      `bson:"deleted"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func membersField(kind models.ReactionKind) string {
	if kind == models.ReactionSave {
		return "savedBy"
	}
	return "likedBy"
}

// joinedField is the per-user membership time path for kind.
func joinedField(kind models.ReactionKind, userID uint) string {
	if kind == models.ReactionSave {
		return "savedAt." + strconv.FormatUint(uint64(userID), 10)
	}
	return "likedAt." + strconv.FormatUint(uint64(userID), 10)
}

func counterField(kind models.ReactionKind) string {
	if kind == models.ReactionSave {
		return "savesCount"
	}
	return "likesCount"
}

func newUserDoc(u *models.User) userDoc {
	return userDoc{
		ID:           int64(u.ID),
		Username:     u.Username,
		Email:        u.Email,
		EmailLower:   strings.ToLower(u.Email),
		Password:     u.Password,
		DisplayName:  u.DisplayName,
		Bio:          u.Bio,
		ProfileImage: u.ProfileImage,
		Website:      u.Website,
		IsAdmin:      u.IsAdmin,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d *userDoc) model() *models.User {
	return &models.User{
		ID:           uint(d.ID),
		Username:     d.Username,
		Email:        d.Email,
		Password:     d.Password,
		DisplayName:  d.DisplayName,
		Bio:          d.Bio,
		ProfileImage: d.ProfileImage,
		Website:      d.Website,
		IsAdmin:      d.IsAdmin,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func newExhibitionDoc(p *models.Post) *exhibitionDoc {
	if !p.HasExhibition || p.Exhibition == nil {
		return nil
	}
	e := p.Exhibition
	return &exhibitionDoc{
		Name:      e.Name,
		Location:  e.Location,
		City:      e.City,
		Date:      e.Date,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
	}
}

func newPostDoc(p *models.Post) postDoc {
	hashtags := p.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}
	return postDoc{
		ID:            int64(p.ID),
		Title:         p.Title,
		Description:   p.Description,
		ImageURL:      p.ImageURL,
		ImageKey:      p.ImageKey,
		Artist:        p.Artist,
		ArtistLower:   strings.ToLower(p.Artist),
		Hashtags:      hashtags,
		UserID:        int64(p.UserID),
		LikedBy:       []int64{},
		SavedBy:       []int64{},
		HasExhibition: p.HasExhibition && p.Exhibition != nil,
		Exhibition:    newExhibitionDoc(p),
		Latitude:      p.Latitude,
		Longitude:     p.Longitude,
		City:          p.City,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func containsID(ids []int64, id uint) bool {
	if id == 0 {
		return false
	}
	for _, v := range ids {
		if v == int64(id) {
			return true
		}
	}
	return false
}

// model converts the document, computing the viewer flags from the member arrays.
func (d *postDoc) model(viewerID uint) *models.Post {
	p := &models.Post{
		ID:            uint(d.ID),
		Title:         d.Title,
		Description:   d.Description,
		ImageURL:      d.ImageURL,
		ImageKey:      d.ImageKey,
		Artist:        d.Artist,
		Hashtags:      d.Hashtags,
		UserID:        uint(d.UserID),
		LikesCount:    d.LikesCount,
		SavesCount:    d.SavesCount,
		CommentsCount: d.CommentsCount,
		HasExhibition: d.HasExhibition,
		Latitude:      d.Latitude,
		Longitude:     d.Longitude,
		City:          d.City,
		Liked:         containsID(d.LikedBy, viewerID),
		Saved:         containsID(d.SavedBy, viewerID),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	if p.Hashtags == nil {
		p.Hashtags = []string{}
	}
	if d.Exhibition != nil {
		p.Exhibition = &models.Exhibition{
			PostID:    p.ID,
			Name:      d.Exhibition.Name,
			Location:  d.Exhibition.Location,
			City:      d.Exhibition.City,
			Date:      d.Exhibition.Date,
			Latitude:  d.Exhibition.Latitude,
			Longitude: d.Exhibition.Longitude,
		}
	}
	return p
}

func (d *commentDoc) model() *models.Comment {
	return &models.Comment{
		ID:        uint(d.ID),
		PostID:    uint(d.PostID),
		UserID:    uint(d.UserID),
		Content:   d.Content,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
