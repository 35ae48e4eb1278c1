package server

import (
	"errors"
	"strings"
	"unicode"

	"artvault/internal/middleware"
	"artvault/internal/models"
	"artvault/internal/repository"
	"artvault/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten means a helper already sent a 400. The handler must
// return nil so the Fiber error handler does not replace that response.
var errResponseWritten = errors.New("response already written")

const (
	defaultPaginationLimit = 20
	maxPaginationLimit     = 100
)

// Pagination is the limit/offset pair read from the query string.
type Pagination struct {
	Limit  int
	Offset int
}

func (p Pagination) page() repository.Page {
	return repository.Page{Limit: p.Limit, Offset: p.Offset}
}

// parsePagination reads ?limit and ?offset. A missing, unparsable or
// non-positive limit becomes fallback; limits are capped at maxPaginationLimit
// and negative offsets start at zero.
func parsePagination(c *fiber.Ctx, fallback int) Pagination {
	p := Pagination{Limit: c.QueryInt("limit", fallback), Offset: c.QueryInt("offset", 0)}
	switch {
	case p.Limit <= 0:
		p.Limit = fallback
	case p.Limit > maxPaginationLimit:
		p.Limit = maxPaginationLimit
	}
	p.Offset = max(p.Offset, 0)
	return p
}

// listInput is the feed query for the current request, viewer included
// when the caller is signed in.
func listInput(c *fiber.Ctx) service.ListPostsInput {
	p := parsePagination(c, defaultPaginationLimit)
	return service.ListPostsInput{Limit: p.Limit, Offset: p.Offset, ViewerID: middleware.UserID(c)}
}

// rejectInput sends a VALIDATION_ERROR 400 and returns errResponseWritten.
func rejectInput(c *fiber.Ctx, message string) error {
	_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(message))
	return errResponseWritten
}

// parseID reads a positive numeric route parameter. The 400 message names
// the parameter, so "commentId" fails with "Invalid comment ID".
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		return 0, rejectInput(c, "Invalid "+humanizeParam(param))
	}
	return uint(id), nil
}

// bindJSON decodes the request body into dest or answers 400.
func bindJSON(c *fiber.Ctx, dest interface{}) error {
	if err := c.BodyParser(dest); err != nil {
		return rejectInput(c, "Invalid request body")
	}
	return nil
}

// humanizeParam turns a route parameter into words: "id" is "ID" and
// "exhibitionOwnerId" is "exhibition owner ID". Names without an Id suffix
// are returned unchanged.
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	stem, ok := strings.CutSuffix(param, "Id")
	if !ok || stem == "" {
		return param
	}
	var b strings.Builder
	for i, r := range stem {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte(' ')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	b.WriteString(" ID")
	return b.String()
}
