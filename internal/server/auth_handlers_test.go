package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"artvault/internal/middleware"
	"artvault/internal/models"
	"artvault/internal/repository"
	"artvault/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a testify mock of repository.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) SetAdmin(ctx context.Context, id uint, admin bool) error {
	args := m.Called(ctx, id, admin)
	return args.Error(0)
}

func (m *MockUserRepository) Search(ctx context.Context, query string, page repository.Page) ([]*models.User, error) {
	args := m.Called(ctx, query, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

var _ repository.UserRepository = (*MockUserRepository)(nil)

func newAuthTestServer(repo repository.UserRepository) *Server {
	return &Server{
		auth:        middleware.NewAuthenticator(testJWTSecret, nil),
		userService: service.NewUserService(repo),
	}
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestSignup(t *testing.T) {
	absent := func(email string) func(*MockUserRepository) {
		return func(repo *MockUserRepository) {
			repo.On("GetByEmail", mock.Anything, email).Return(nil, models.NewNotFoundError("User", email))
			repo.On("Create", mock.Anything, mock.AnythingOfType("*models.User")).Return(nil)
		}
	}

	tests := []struct {
		name   string
		body   map[string]string
		expect func(*MockUserRepository)
		status int
		code   string
	}{
		{
			name:   "new painter",
			body:   map[string]string{"username": "kahlo", "email": "frida@example.com", "password": "Coyoacan1907!"},
			expect: absent("frida@example.com"),
			status: http.StatusCreated,
		},
		{
			name: "email already registered",
			body: map[string]string{"username": "kahlo2", "email": "frida@example.com", "password": "Coyoacan1907!"},
			expect: func(repo *MockUserRepository) {
				repo.On("GetByEmail", mock.Anything, "frida@example.com").Return(&models.User{ID: 1}, nil)
			},
			status: http.StatusConflict,
			code:   models.CodeConflict,
		},
		{
			name:   "password too weak",
			body:   map[string]string{"username": "kahlo", "email": "frida@example.com", "password": "frida"},
			status: http.StatusBadRequest,
			code:   models.CodeValidation,
		},
		{
			name:   "username missing",
			body:   map[string]string{"email": "frida@example.com", "password": "Coyoacan1907!"},
			status: http.StatusBadRequest,
			code:   models.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockUserRepository)
			if tt.expect != nil {
				tt.expect(repo)
			}
			app := fiber.New()
			app.Post("/signup", newAuthTestServer(repo).Signup)

			resp := postJSON(t, app, "/signup", tt.body)
			defer func() { _ = resp.Body.Close() }()
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.code != "" {
				var body models.ErrorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.code, body.Code)
			}
			if tt.expect == nil {
				repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestSignup_ReturnsVerifiableToken(t *testing.T) {
	app := fiber.New()
	mockRepo := new(MockUserRepository)
	s := newAuthTestServer(mockRepo)
	app.Post("/signup", s.Signup)

	mockRepo.On("GetByEmail", mock.Anything, "ada@example.com").
		Return(nil, models.NewNotFoundError("User", "ada@example.com"))
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*models.User")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.User).ID = 7
		}).
		Return(nil)

	resp := postJSON(t, app, "/signup", map[string]string{
		"username":     "ada",
		"email":        "ada@example.com",
		"password":     "Password123!",
		"display_name": "Ada L.",
	})
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Token)
	assert.Equal(t, uint(7), body.User.ID)
	assert.Equal(t, "Ada L.", body.User.DisplayName)

	claims, err := s.auth.Parse(context.Background(), body.Token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "ada", claims.Username)
	assert.NotEmpty(t, claims.JTI)
	assert.WithinDuration(t, time.Now().Add(middleware.TokenTTL), claims.ExpiresAt, time.Minute)
	mockRepo.AssertExpectations(t)
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("Password123!"), bcrypt.MinCost)
	require.NoError(t, err)

	app := fiber.New()
	mockRepo := new(MockUserRepository)
	s := newAuthTestServer(mockRepo)
	app.Post("/login", s.Login)

	mockRepo.On("GetByEmail", mock.Anything, "ada@example.com").
		Return(&models.User{ID: 3, Username: "ada", Email: "ada@example.com", Password: string(hash)}, nil)
	mockRepo.On("GetByEmail", mock.Anything, "ghost@example.com").
		Return(nil, models.NewNotFoundError("User", "ghost@example.com"))

	tests := []struct {
		name           string
		email          string
		password       string
		expectedStatus int
	}{
		{"Success", "ada@example.com", "Password123!", http.StatusOK},
		{"Wrong Password", "ada@example.com", "Password123?", http.StatusUnauthorized},
		{"Unknown Email", "ghost@example.com", "Password123!", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, app, "/login", map[string]string{"email": tt.email, "password": tt.password})
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var body AuthResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.NotEmpty(t, body.Token)
				assert.Empty(t, body.User.Password)
			}
		})
	}
}

func TestGenerateJTI_Unique(t *testing.T) {
	now := time.Now()
	assert.NotEqual(t, generateJTI(now), generateJTI(now))
}
