package server

import (
	"artvault/internal/middleware"
	"artvault/internal/models"
	"artvault/internal/notifications"
	"artvault/internal/service"

	"github.com/gofiber/fiber/v2"
)

type commentRequest struct {
	Content string `json:"content"`
}

// CreateComment handles POST /api/posts/:id/comments
// @Summary Add comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param request body commentRequest true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req commentRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	created, err := s.commentService.CreateComment(ctx, service.CreateCommentInput{
		UserID:  middleware.UserID(c),
		PostID:  postID,
		Content: req.Content,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.publishCommentEvent(ctx, notifications.EventCommentCreated, created)
	return c.Status(fiber.StatusCreated).JSON(created)
}

// GetComments handles GET /api/posts/:id/comments
// @Summary List comments
// @Description Newest first
// @Tags comments
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {array} models.Comment
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	page := parsePagination(c, defaultPaginationLimit)
	comments, err := s.commentService.ListComments(c.UserContext(), postID, page.page())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(comments)
}

// UpdateComment handles PUT /api/posts/:id/comments/:commentId
// @Summary Edit comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param commentId path int true "Comment ID"
// @Param request body commentRequest true "Comment"
// @Success 200 {object} models.Comment
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id}/comments/{commentId} [put]
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}
	var req commentRequest
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	updated, err := s.commentService.UpdateComment(c.UserContext(), service.UpdateCommentInput{
		UserID:    middleware.UserID(c),
		PostID:    postID,
		CommentID: commentID,
		Content:   req.Content,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(updated)
}

// DeleteComment handles DELETE /api/posts/:id/comments/:commentId
// @Summary Delete comment
// @Description Comment author, post author, or admin
// @Tags comments
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Param commentId path int true "Comment ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments/{commentId} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	deleted, err := s.commentService.DeleteComment(ctx, service.DeleteCommentInput{
		UserID:    middleware.UserID(c),
		PostID:    postID,
		CommentID: commentID,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	s.publishCommentEvent(ctx, notifications.EventCommentDeleted, deleted)
	return c.SendStatus(fiber.StatusNoContent)
}
