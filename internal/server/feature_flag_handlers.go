package server

import (
	"artvault/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags reports the configured flags, how they evaluate for the
// calling admin, and any FEATURE_FLAGS entries that were ignored.
// @Summary Feature flag snapshot
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{raw=map[string]string,evaluated=map[string]bool,rejected=[]string}
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(middleware.UserID(c)),
		"rejected":  s.featureFlags.Rejected(),
	})
}
