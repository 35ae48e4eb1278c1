package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"artvault/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	tests := []struct {
		name         string
		userID       uint
		mockBehavior func()
		wantUser     string
		wantCode     string
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "username", "email"}).
					AddRow(1, "testuser", "test@example.com")
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(rows)
			},
			wantUser: "testuser",
		},
		{
			name:   "Not Found",
			userID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(99, 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			wantCode: models.CodeNotFound,
		},
		{
			name:   "Database Error",
			userID: 2,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
					WillReturnError(errors.New("connection reset"))
			},
			wantCode: models.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, models.ErrorCode(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantUser, user.Username)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_CreateDuplicateIsConflict(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Username: "matisse", Email: "h@example.com", Password: "x"}))
	err := repo.Create(ctx, &models.User{Username: "matisse", Email: "other@example.com", Password: "x"})
	require.Error(t, err)
	assert.Equal(t, models.CodeConflict, models.ErrorCode(err))
}

func TestUserRepository_LookupsAndSearch(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()
	seedUser(t, db, "pollock")
	seedUser(t, db, "polke")
	seedUser(t, db, "richter")

	u, err := repo.GetByEmail(ctx, "POLLOCK@example.com")
	require.NoError(t, err)
	assert.Equal(t, "pollock", u.Username)

	_, err = repo.GetByUsername(ctx, "warhol")
	assert.True(t, models.IsNotFound(err))

	found, err := repo.Search(ctx, "pol", Page{})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "polke", found[0].Username)

	seedUser(t, db, "sol_lewitt")
	for query, want := range map[string]int{"_": 1, "%": 0, "l_w": 1, "l%w": 0} {
		found, err := repo.Search(ctx, query, Page{})
		require.NoError(t, err)
		assert.Len(t, found, want, query)
	}

	u.Bio = "drip"
	u.Website = "https://pollock.example"
	require.NoError(t, repo.Update(ctx, u))
	again, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "drip", again.Bio)
	assert.Equal(t, "hash", again.Password)
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: users.username")))
	assert.False(t, IsUniqueViolation(nil))
}
