package service

import (
	"context"
	"errors"
	"testing"

	"artvault/internal/geo"
	"artvault/internal/models"
	"artvault/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository. Unset functions
// return empty results.
type postRepoStub struct {
	createFn    func(context.Context, *models.Post) error
	getByIDFn   func(context.Context, uint, uint) (*models.Post, error)
	listFn      func(context.Context, repository.Page, uint) ([]*models.Post, error)
	searchFn    func(context.Context, string, repository.Page, uint) ([]*models.Post, error)
	updateFn    func(context.Context, *models.Post) error
	deleteFn    func(context.Context, uint) error
	inBoxFn     func(context.Context, geo.Box) ([]*models.Post, error)
	byUserExhFn func(context.Context, uint) ([]*models.Post, error)
	countKeyFn  func(context.Context, string) (int64, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	if s.createFn == nil {
		post.ID = 1
		return nil
	}
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	if s.getByIDFn == nil {
		return &models.Post{ID: id}, nil
	}
	return s.getByIDFn(ctx, id, viewerID)
}
func (s *postRepoStub) List(ctx context.Context, page repository.Page, viewerID uint) ([]*models.Post, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, page, viewerID)
}
func (s *postRepoStub) ListByUser(context.Context, uint, repository.Page, uint) ([]*models.Post, error) {
	return nil, nil
}
func (s *postRepoStub) ListByArtist(context.Context, string, repository.Page, uint) ([]*models.Post, error) {
	return nil, nil
}
func (s *postRepoStub) ListLiked(context.Context, uint, repository.Page) ([]*models.Post, error) {
	return nil, nil
}
func (s *postRepoStub) ListSaved(context.Context, uint, repository.Page) ([]*models.Post, error) {
	return nil, nil
}
func (s *postRepoStub) Search(ctx context.Context, q string, page repository.Page, viewerID uint) ([]*models.Post, error) {
	if s.searchFn == nil {
		return nil, nil
	}
	return s.searchFn(ctx, q, page, viewerID)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, id)
}

func (s *postRepoStub) ExhibitionsInBox(ctx context.Context, box geo.Box) ([]*models.Post, error) {
	if s.inBoxFn == nil {
		return nil, nil
	}
	return s.inBoxFn(ctx, box)
}
func (s *postRepoStub) CountByImageKey(ctx context.Context, key string) (int64, error) {
	if s.countKeyFn == nil {
		return 0, nil
	}
	return s.countKeyFn(ctx, key)
}

func (s *postRepoStub) ExhibitionsByUser(ctx context.Context, userID uint) ([]*models.Post, error) {
	if s.byUserExhFn == nil {
		return nil, nil
	}
	return s.byUserExhFn(ctx, userID)
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn    func(context.Context, uint) (*models.User, error)
	getByEmailFn func(context.Context, string) (*models.User, error)
	createFn     func(context.Context, *models.User) error
	updateFn     func(context.Context, *models.User) error
	searchFn     func(context.Context, string, repository.Page) ([]*models.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	if s.getByIDFn == nil {
		return &models.User{ID: id, Username: "user"}, nil
	}
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.getByEmailFn == nil {
		return nil, models.NewNotFoundError("User", email)
	}
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return nil, models.NewNotFoundError("User", username)
}
func (s *userRepoStub) Create(ctx context.Context, u *models.User) error {
	if s.createFn == nil {
		u.ID = 1
		return nil
	}
	return s.createFn(ctx, u)
}
func (s *userRepoStub) Update(ctx context.Context, u *models.User) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, u)
}
func (s *userRepoStub) SetAdmin(context.Context, uint, bool) error {
	return nil
}
func (s *userRepoStub) Search(ctx context.Context, q string, page repository.Page) ([]*models.User, error) {
	if s.searchFn == nil {
		return nil, nil
	}
	return s.searchFn(ctx, q, page)
}

// assertCode asserts that err is an AppError carrying code.
func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeValidation)
}

func fptr(f float64) *float64 { return &f }
func sptr(s string) *string { return &s }
func bptr(b bool) *bool { return &b }
