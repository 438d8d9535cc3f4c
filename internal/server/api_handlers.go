package server

import (
	"log/slog"
	"slices"

	"cloudysky/internal/auth"
	"cloudysky/internal/middleware"
	"cloudysky/internal/models"
	"cloudysky/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetFeed returns one page of the feed, newest first.
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPaginationLimit)
	seq, err := s.feedService.ListFeed(c.UserContext(), viewerOf(c), service.Page{
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	posts := slices.Collect(seq)
	if posts == nil {
		posts = []service.PostView{}
	}
	return c.JSON(posts)
}

// GetPost returns a single post with its comments and media.
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	view, err := s.feedService.GetPostDetail(c.UserContext(), viewerOf(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(view)
}

// UploadMedia stores the multipart "file" and attaches it to post_id or
// comment_id when one is given.
func (s *Server) UploadMedia(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return models.RespondWithAppError(c, models.NewValidationError("A file is required"))
	}
	f, err := header.Open()
	if err != nil {
		return models.RespondWithAppError(c, models.NewInternalError(err))
	}
	defer f.Close()

	media, err := s.mediaService.Upload(c.UserContext(), viewerOf(c), service.UploadInput{
		PostID:    c.FormValue("post_id"),
		CommentID: c.FormValue("comment_id"),
		Filename:  header.Filename,
		Size:      header.Size,
		Body:      f,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":   "ok",
		"media_id": media.ID,
		"file":     media.File,
	})
}

// Login checks credentials and starts a session.
func (s *Server) Login(c *fiber.Ctx) error {
	user, err := s.userService.Authenticate(c.UserContext(), c.FormValue("user_name"), c.FormValue("password"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return models.RespondWithAppError(c, models.NewInternalError(err))
	}
	s.startSession(c, token)
	return c.JSON(fiber.Map{"token": token, "user": user})
}

// Logout revokes the current token and clears the session cookie.
func (s *Server) Logout(c *fiber.Ctx) error {
	if claims := claimsOf(c); claims != nil {
		// Without Redis the token stays valid until it expires.
		if err := s.tokens.Revoke(c.UserContext(), claims); err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "token revocation failed", slog.String("error", err.Error()))
		}
	}
	c.Cookie(auth.ExpiredSessionCookie())
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// GetMyProfile returns the session user.
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), viewerOf(c).ID())
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile edits the session user's bio and last name.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		Bio      *string `json:"bio" form:"bio"`
		LastName *string `json:"last_name" form:"last_name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithAppError(c, models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), viewerOf(c), service.UpdateProfileInput{
		Bio:      req.Bio,
		LastName: req.LastName,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// GetAllUsers lists accounts. Staff only.
func (s *Server) GetAllUsers(c *fiber.Ctx) error {
	page := parsePagination(c, defaultPaginationLimit)
	users, err := s.userService.ListUsers(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(users)
}
