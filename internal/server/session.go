package server

import (
	"context"
	"errors"
	"log/slog"

	"cloudysky/internal/auth"
	"cloudysky/internal/middleware"
	"cloudysky/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	viewerKey = "viewer"
	claimsKey = "claims"
)

// ResolveViewer turns the request's session token, if any, into a viewer.
// A missing, invalid or revoked token yields the anonymous viewer; routes
// decide for themselves whether that is acceptable.
func (s *Server) ResolveViewer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		viewer := models.Anonymous()

		if token := auth.TokenFromRequest(c); token != "" {
			claims, err := s.tokens.Parse(c.UserContext(), token)
			switch {
			case err == nil:
				// A store failure leaves the request anonymous so that
				// provisioning can still heal a missing schema.
				v, err := s.userService.ResolveViewer(c.UserContext(), claims.UserID)
				if err != nil {
					middleware.Logger.WarnContext(c.UserContext(), "failed to resolve session user",
						slog.Uint64("user_id", uint64(claims.UserID)), slog.String("error", err.Error()))
					break
				}
				viewer = v
				if viewer.Authenticated {
					c.Locals(claimsKey, claims)
				}
			case errors.Is(err, auth.ErrRevoked):
				c.Cookie(auth.ExpiredSessionCookie())
			}
		}

		c.Locals(viewerKey, viewer)
		if viewer.Authenticated {
			c.Locals("userID", viewer.ID())
			c.SetUserContext(context.WithValue(c.UserContext(), middleware.UserIDKey, viewer.ID()))
		}
		return c.Next()
	}
}

// AuthRequired rejects anonymous requests with 401.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !viewerOf(c).Authenticated {
			return models.RespondWithAppError(c, models.NewUnauthorizedError("Authorization required"))
		}
		return c.Next()
	}
}

// AdminRequired rejects non-staff users with 403.
// Must be placed after AuthRequired.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !viewerOf(c).IsStaff {
			return models.RespondWithAppError(c, models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

func viewerOf(c *fiber.Ctx) models.Viewer {
	if v, ok := c.Locals(viewerKey).(models.Viewer); ok {
		return v
	}
	return models.Anonymous()
}

func claimsOf(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(claimsKey).(*auth.Claims)
	return claims
}

// startSession sets the session cookie for token.
func (s *Server) startSession(c *fiber.Ctx, token string) {
	c.Cookie(auth.SessionCookieFor(token, s.tokens.TTL(), s.config.IsProduction()))
}
