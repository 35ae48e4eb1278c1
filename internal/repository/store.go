// Package repository provides the data access layer: repository interfaces
// and their GORM implementations.
package repository

import (
	"context"
	"strings"

	"artvault/internal/geo"
	"artvault/internal/models"

	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxNearbyRows   = 500
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern is a LIKE pattern, escaped with '\', matching values that
// contain s.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// Page selects a window of a newest-first listing.
type Page struct {
	Limit  int
	Offset int
}

// Normalize applies the default and maximum page size.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// PostRepository persists posts and their exhibitions. Reads take the viewer
// ID (0 for anonymous) to fill Liked and Saved.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	List(ctx context.Context, page Page, viewerID uint) ([]*models.Post, error)
	ListByUser(ctx context.Context, userID uint, page Page, viewerID uint) ([]*models.Post, error)
	ListByArtist(ctx context.Context, artist string, page Page, viewerID uint) ([]*models.Post, error)
	ListLiked(ctx context.Context, userID uint, page Page) ([]*models.Post, error)
	ListSaved(ctx context.Context, userID uint, page Page) ([]*models.Post, error)
	Search(ctx context.Context, query string, page Page, viewerID uint) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
	// CountByImageKey counts the live posts whose image is stored under key.
	CountByImageKey(ctx context.Context, key string) (int64, error)
	// ExhibitionsInBox returns exhibition posts inside the box, nearest to
	// box.Center first, capped at a fixed number of candidates.
	ExhibitionsInBox(ctx context.Context, box geo.Box) ([]*models.Post, error)
	ExhibitionsByUser(ctx context.Context, userID uint) ([]*models.Post, error)
}

// ReactionRepository flips like and save memberships together with the
// post counter.
type ReactionRepository interface {
	Toggle(ctx context.Context, kind models.ReactionKind, userID, postID uint) (*models.ToggleResult, error)
}

// CommentRepository persists comments and keeps the post comment counter.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint, page Page) ([]*models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	Delete(ctx context.Context, comment *models.Comment) error
}

// UserRepository persists user accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetAdmin(ctx context.Context, id uint, admin bool) error
	Search(ctx context.Context, query string, page Page) ([]*models.User, error)
}

// Store bundles the repositories of one backing database.
type Store struct {
	Posts     PostRepository
	Reactions ReactionRepository
	Comments  CommentRepository
	Users     UserRepository

	// Ping checks the backing database for readiness probes.
	Ping func(ctx context.Context) error
	// Close releases the backing connections.
	Close func(ctx context.Context) error
}

// NewGormStore builds a Store over a GORM connection. replica may be nil.
func NewGormStore(db *gorm.DB, replica *gorm.DB) *Store {
	return &Store{
		Posts:     NewPostRepository(db, replica),
		Reactions: NewReactionRepository(db),
		Comments:  NewCommentRepository(db),
		Users:     NewUserRepository(db, replica),
		Ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		Close: func(context.Context) error {
			closeDB(replica)
			return closeDB(db)
		},
	}
}

func closeDB(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func reader(primary, replica *gorm.DB) *gorm.DB {
	if replica != nil {
		return replica
	}
	return primary
}
