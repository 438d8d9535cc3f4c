package server

import (
	"errors"
	"log/slog"
	"strings"

	"cloudysky/internal/middleware"
	"cloudysky/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	defaultPaginationLimit = 20
	maxPaginationLimit     = 100
)

// parsePagination extracts limit and offset query parameters with the given default limit.
func parsePagination(c *fiber.Ctx, defaultLimit int) Pagination {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+strings.ToUpper(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// methodOnly answers 405 for any verb other than method. Routes using it
// are registered with All.
func methodOnly(method string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == method || (method == fiber.MethodGet && c.Method() == fiber.MethodHead) {
			return c.Next()
		}
		c.Set(fiber.HeaderAllow, method)
		return c.Status(fiber.StatusMethodNotAllowed).SendString("Method Not Allowed")
	}
}

// respondText writes err as a plain-text body with its mapped status. The
// /app form endpoints answer this way.
func respondText(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	msg := "Internal server error"
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
		if appErr.Code == models.CodeUnauthorized {
			msg = "Unauthorized"
		}
	}
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request error", slog.String("error", err.Error()))
	}
	return c.Status(status).SendString(msg)
}

// wantsJSON reports whether the client asked for a JSON response.
func wantsJSON(c *fiber.Ctx) bool {
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON)
}
