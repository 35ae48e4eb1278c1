package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"artvault/internal/models"
	"artvault/internal/repository"
	"artvault/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const (
	maxBioLen         = 500
	maxDisplayNameLen = 60
)

type UserService struct {
	userRepo   repository.UserRepository
	bcryptCost int
}

type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

// UpdateProfileInput is a partial update; nil fields keep their value.
type UpdateProfileInput struct {
	UserID       uint
	DisplayName  *string
	Bio          *string
	Website      *string
	ProfileImage *string
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo, bcryptCost: bcrypt.DefaultCost}
}

// Register validates the account fields, hashes the password, and creates the user.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if _, err := s.userRepo.GetByEmail(ctx, in.Email); err == nil {
		return nil, models.NewConflictError("User already exists")
	} else if !models.IsNotFound(err) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user := &models.User{
		Username:    in.Username,
		Email:       in.Email,
		Password:    string(hashed),
		DisplayName: strings.TrimSpace(in.DisplayName),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks credentials. Unknown emails and wrong passwords return
// the same UNAUTHORIZED error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if models.IsNotFound(err) {
			return nil, models.NewUnauthorizedError("Invalid credentials")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) || errors.Is(err, bcrypt.ErrHashTooShort) {
			return nil, models.NewUnauthorizedError("Invalid credentials")
		}
		return nil, models.NewInternalError(err)
	}
	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// IsAdmin reports whether the user has the admin flag.
func (s *UserService) IsAdmin(ctx context.Context, id uint) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if utf8.RuneCountInString(name) > maxDisplayNameLen {
			return nil, models.NewValidationError(fmt.Sprintf("Display name too long (max %d characters)", maxDisplayNameLen))
		}
		user.DisplayName = name
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if utf8.RuneCountInString(bio) > maxBioLen {
			return nil, models.NewValidationError(fmt.Sprintf("Bio too long (max %d characters)", maxBioLen))
		}
		user.Bio = bio
	}
	if in.Website != nil {
		website := strings.TrimSpace(*in.Website)
		if err := validation.ValidateWebsite(website); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Website = website
	}
	if in.ProfileImage != nil {
		user.ProfileImage = strings.TrimSpace(*in.ProfileImage)
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) SearchUsers(ctx context.Context, query string, page repository.Page) ([]*models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	users, err := s.userRepo.Search(ctx, query, page.Normalize())
	if err != nil {
		return nil, err
	}
	out := make([]*models.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}
