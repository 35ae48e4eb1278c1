package server

import (
	"artvault/internal/middleware"
	"artvault/internal/models"
	"artvault/internal/notifications"
	"artvault/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createPostRequest struct {
	Title         string                   `json:"title"`
	Description   string                   `json:"description"`
	ImageURL      string                   `json:"image_url"`
	ImageKey      string                   `json:"image_key"`
	Artist        string                   `json:"artist"`
	Hashtags      []string                 `json:"hashtags"`
	HasExhibition bool                     `json:"has_exhibition"`
	Exhibition    *service.ExhibitionInput `json:"exhibition"`
	Latitude      *float64                 `json:"latitude"`
	Longitude     *float64                 `json:"longitude"`
	City          string                   `json:"city"`
}

type updatePostRequest struct {
	Title         *string                  `json:"title"`
	Description   *string                  `json:"description"`
	ImageURL      *string                  `json:"image_url"`
	ImageKey      *string                  `json:"image_key"`
	Artist        *string                  `json:"artist"`
	Hashtags      []string                 `json:"hashtags"`
	HasExhibition *bool                    `json:"has_exhibition"`
	Exhibition    *service.ExhibitionInput `json:"exhibition"`
	Latitude      *float64                 `json:"latitude"`
	Longitude     *float64                 `json:"longitude"`
	City          *string                  `json:"city"`
}

// ToggleResponse is the state of a like or save after a toggle.
type ToggleResponse struct {
	PostID     uint `json:"post_id"`
	Active     bool `json:"active"`
	LikesCount *int `json:"likes_count,omitempty"`
	SavesCount *int `json:"saves_count,omitempty"`
}

// GetPosts handles GET /api/posts
// @Summary Artwork feed
// @Description Newest posts first
// @Tags posts
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Post
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListPosts(c.UserContext(), listInput(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(posts)
}

// SearchPosts handles GET /api/posts/search?q=...
// @Summary Search posts
// @Description Case-insensitive match on title, artist and hashtags
// @Tags posts
// @Produce json
// @Param q query string true "Search text"
// @Success 200 {array} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts/search [get]
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	posts, err := s.postService.SearchPosts(c.UserContext(), c.Query("q"), listInput(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
// @Summary Post detail
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), id, middleware.UserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// GetPostsByArtist handles GET /api/artists/:artist/posts
// @Summary Posts by artist
// @Tags posts
// @Produce json
// @Param artist path string true "Artist name"
// @Success 200 {array} models.Post
// @Router /artists/{artist}/posts [get]
func (s *Server) GetPostsByArtist(c *fiber.Ctx) error {
	posts, err := s.postService.ListByArtist(c.UserContext(), c.Params("artist"), listInput(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(posts)
}

// GetUserPosts handles GET /api/users/:id/posts
// @Summary Posts by user
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {array} models.Post
// @Router /users/{id}/posts [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	posts, err := s.postService.ListByUser(c.UserContext(), userID, listInput(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(posts)
}

// CreatePost handles POST /api/posts
// @Summary Create post
// @Description Publish an artwork; upload the image first through /images
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createPostRequest true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	var req createPostRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.CreatePost(ctx, service.CreatePostInput{
		UserID:        middleware.UserID(c),
		Title:         req.Title,
		Description:   req.Description,
		ImageURL:      req.ImageURL,
		ImageKey:      req.ImageKey,
		Artist:        req.Artist,
		Hashtags:      req.Hashtags,
		HasExhibition: req.HasExhibition,
		Exhibition:    req.Exhibition,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		City:          req.City,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.publishPostEvent(ctx, notifications.EventPostCreated, post)
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Update post
// @Description Partial update by the author
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body updatePostRequest true "Fields to change"
// @Success 200 {object} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req updatePostRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.UpdatePost(ctx, service.UpdatePostInput{
		UserID:        middleware.UserID(c),
		PostID:        postID,
		Title:         req.Title,
		Description:   req.Description,
		ImageURL:      req.ImageURL,
		ImageKey:      req.ImageKey,
		Artist:        req.Artist,
		Hashtags:      req.Hashtags,
		HasExhibition: req.HasExhibition,
		Exhibition:    req.Exhibition,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		City:          req.City,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.publishPostEvent(ctx, notifications.EventPostUpdated, post)
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete post
// @Description Author or admin; removes likes, saves, comments and the exhibition
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.DeletePost(ctx, service.DeletePostInput{
		UserID: middleware.UserID(c),
		PostID: postID,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.publishPostEvent(ctx, notifications.EventPostDeleted, post)
	return c.SendStatus(fiber.StatusNoContent)
}

// LikePost handles POST /api/posts/:id/like
// @Summary Toggle like
// @Description Likes the post, or removes the like when already liked
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} ToggleResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	return s.toggleReaction(c, models.ReactionLike)
}

// SavePost handles POST /api/posts/:id/save
// @Summary Toggle save
// @Description Saves the post to the caller's collection, or removes it
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} ToggleResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/save [post]
func (s *Server) SavePost(c *fiber.Ctx) error {
	return s.toggleReaction(c, models.ReactionSave)
}

func (s *Server) toggleReaction(c *fiber.Ctx, kind models.ReactionKind) error {
	ctx := c.UserContext()
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID := middleware.UserID(c)

	result, err := s.reactionService.Toggle(ctx, kind, userID, postID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.publishReactionEvent(ctx, userID, result)

	resp := ToggleResponse{PostID: result.PostID, Active: result.Active}
	count := result.Count
	if kind == models.ReactionSave {
		resp.SavesCount = &count
	} else {
		resp.LikesCount = &count
	}
	return c.JSON(resp)
}
