package server

import (
	"strconv"
	"strings"

	"artvault/internal/models"
	"artvault/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetNearbyExhibitions handles GET /api/exhibitions/nearby?lat=&lng=&radius_km=&q=
// @Summary Nearby exhibitions
// @Description Exhibitions within radius_km of the point, nearest first
// @Tags discover
// @Produce json
// @Param lat query number true "Latitude"
// @Param lng query number true "Longitude"
// @Param radius_km query number false "Search radius in km (default 10, max 500)"
// @Param q query string false "Filter on city or exhibition name"
// @Success 200 {array} models.NearbyExhibition
// @Failure 400 {object} models.ErrorResponse
// @Router /exhibitions/nearby [get]
func (s *Server) GetNearbyExhibitions(c *fiber.Ctx) error {
	lat, err := queryFloat(c, "lat", true)
	if err != nil {
		return nil
	}
	lng, err := queryFloat(c, "lng", true)
	if err != nil {
		return nil
	}
	radius, err := queryFloat(c, "radius_km", false)
	if err != nil {
		return nil
	}

	results, err := s.discoverService.NearbyExhibitions(c.UserContext(), service.NearbyInput{
		Lat:      lat,
		Lng:      lng,
		RadiusKM: radius,
		Query:    c.Query("q"),
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(results)
}

// Search handles GET /api/search?q=
// @Summary Search posts and users
// @Tags discover
// @Produce json
// @Param q query string true "Search text"
// @Success 200 {object} service.SearchResult
// @Failure 400 {object} models.ErrorResponse
// @Router /search [get]
func (s *Server) Search(c *fiber.Ctx) error {
	result, err := s.discoverService.Search(c.UserContext(), c.Query("q"), listInput(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// queryFloat parses a float query parameter. A missing optional parameter is
// zero; a bad one is rejected through rejectInput.
func queryFloat(c *fiber.Ctx, name string, required bool) (float64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		if !required {
			return 0, nil
		}
		return 0, rejectInput(c, name+" is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, rejectInput(c, "Invalid "+name)
	}
	return v, nil
}
