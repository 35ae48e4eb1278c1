// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"artvault/internal/database"
	"artvault/internal/models"
	"artvault/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteStore opens a private in-memory SQLite database with the full
// schema and returns the GORM-backed store over it.
func NewSQLiteStore(t testing.TB) (*repository.Store, *gorm.DB) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return repository.NewGormStore(db, nil), db
}

// SeedUser inserts a user with a placeholder password hash.
func SeedUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username:    username,
		Email:       username + "@example.com",
		Password:    "hash",
		DisplayName: strings.ToUpper(username[:1]) + username[1:],
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// SeedPost inserts a post without an exhibition.
func SeedPost(t testing.TB, store *repository.Store, author *models.User, title string) *models.Post {
	t.Helper()
	p := &models.Post{
		Title:       title,
		Description: "oil on canvas",
		ImageURL:    "/media/" + title + ".jpg",
		Artist:      author.PublicName(),
		Hashtags:    []string{"oil"},
		UserID:      author.ID,
	}
	require.NoError(t, store.Posts.Create(t.Context(), p))
	return p
}
