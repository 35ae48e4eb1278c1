package server

import (
	"artvault/internal/middleware"
	"artvault/internal/models"
	"artvault/internal/service"

	"github.com/gofiber/fiber/v2"
)

type updateProfileRequest struct {
	DisplayName  *string `json:"display_name"`
	Bio          *string `json:"bio"`
	Website      *string `json:"website"`
	ProfileImage *string `json:"profile_image"`
}

// SearchUsers handles GET /api/users/search?q=...
// @Summary Search users
// @Description Matches username or display name
// @Tags users
// @Produce json
// @Param q query string true "Search text"
// @Success 200 {array} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/search [get]
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPaginationLimit)
	users, err := s.userService.SearchUsers(c.UserContext(), c.Query("q"), page.page())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(users)
}

// GetUserProfile handles GET /api/users/:id
// @Summary User profile
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetUserByID(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user.Public())
}

// GetUserExhibitions handles GET /api/users/:id/exhibitions
// @Summary Upcoming exhibitions of a user
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {array} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id}/exhibitions [get]
func (s *Server) GetUserExhibitions(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	posts, err := s.discoverService.UserExhibitions(c.UserContext(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(posts)
}

// GetMyProfile handles GET /api/users/me
// @Summary Own profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update own profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body updateProfileRequest true "Fields to change"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:       middleware.UserID(c),
		DisplayName:  req.DisplayName,
		Bio:          req.Bio,
		Website:      req.Website,
		ProfileImage: req.ProfileImage,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// GetMyLikedPosts handles GET /api/users/me/liked
// @Summary Posts the caller liked
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Post
// @Router /users/me/liked [get]
func (s *Server) GetMyLikedPosts(c *fiber.Ctx) error {
	posts, err := s.reactionService.ListLiked(c.UserContext(), middleware.UserID(c), listInput(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(posts)
}

// GetMySavedPosts handles GET /api/users/me/saved
// @Summary Posts the caller saved
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Post
// @Router /users/me/saved [get]
func (s *Server) GetMySavedPosts(c *fiber.Ctx) error {
	posts, err := s.reactionService.ListSaved(c.UserContext(), middleware.UserID(c), listInput(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(posts)
}
