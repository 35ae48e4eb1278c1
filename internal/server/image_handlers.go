package server

import (
	"io"

	"artvault/internal/middleware"
	"artvault/internal/models"
	"artvault/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ImageUploadResponse is the API response after uploading an image. The
// client creates the post with the returned url and key.
type ImageUploadResponse struct {
	Key     string `json:"key"`
	URL     string `json:"url"`
	WebPURL string `json:"webp_url,omitempty"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// UploadImage handles POST /api/images
// @Summary Upload artwork image
// @Description Multipart field "image"; JPEG, PNG, GIF or WebP. Resized to at most 1080px wide.
// @Tags images
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param image formData file true "Image file"
// @Success 201 {object} ImageUploadResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /images [post]
func (s *Server) UploadImage(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}
	if file.Size > s.imageService.MaxUploadBytes() {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("File too large"))
	}

	src, err := file.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}

	uploaded, err := s.imageService.Upload(c.UserContext(), service.UploadImageInput{
		UserID:      middleware.UserID(c),
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(ImageUploadResponse{
		Key:     uploaded.Key,
		URL:     uploaded.URL,
		WebPURL: uploaded.WebPURL,
		Width:   uploaded.Width,
		Height:  uploaded.Height,
	})
}
