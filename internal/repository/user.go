package repository

import (
	"context"
	"strings"

	"artvault/internal/cache"
	"artvault/internal/models"

	"gorm.io/gorm"
)

type userRepository struct {
	db      *gorm.DB
	replica *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation. replica may be nil.
func NewUserRepository(db *gorm.DB, replica *gorm.DB) UserRepository {
	return &userRepository{db: db, replica: replica}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		return translate(reader(r.db, r.replica).WithContext(ctx).First(&user, id).Error, "User", id)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&user).Error
	if err != nil {
		return nil, translate(err, "User", email)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, translate(err, "User", username)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error, "User", user.Username)
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	res := r.db.WithContext(ctx).Model(&models.User{ID: user.ID}).
		Select("display_name", "bio", "profile_image", "website").
		Updates(user)
	if res.Error == nil && res.RowsAffected == 0 {
		return models.NewNotFoundError("User", user.ID)
	}
	if res.Error != nil {
		return translate(res.Error, "User", user.ID)
	}
	cache.InvalidateUser(ctx, user.ID)
	return nil
}

func (r *userRepository) SetAdmin(ctx context.Context, id uint, admin bool) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_admin", admin)
	if res.Error != nil {
		return translate(res.Error, "User", id)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

func (r *userRepository) Search(ctx context.Context, query string, page Page) ([]*models.User, error) {
	page = page.Normalize()
	like := containsPattern(strings.ToLower(query))
	var users []*models.User
	err := reader(r.db, r.replica).WithContext(ctx).
		Where("LOWER(username) LIKE ? ESCAPE '\\' OR LOWER(display_name) LIKE ? ESCAPE '\\'", like, like).
		Order("username ASC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&users).Error
	if err != nil {
		return nil, translate(err, "User", nil)
	}
	return users, nil
}
