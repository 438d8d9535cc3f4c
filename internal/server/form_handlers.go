package server

import (
	"slices"

	"cloudysky/internal/models"
	"cloudysky/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateUser provisions the account named in the form and logs the caller
// in. The call is idempotent: repeating it updates the same user.
func (s *Server) CreateUser(c *fiber.Ctx) error {
	result, err := s.provisioningService.Provision(c.UserContext(), service.ProvisionInput{
		Email:    c.FormValue("email"),
		Username: c.FormValue("user_name"),
		Password: c.FormValue("password"),
		LastName: c.FormValue("last_name"),
		IsStaff:  c.FormValue("is_admin"),
	})
	if err != nil {
		return respondText(c, err)
	}

	if result.Authenticated {
		s.startSession(c, result.Token)
	}

	if wantsJSON(c) {
		return c.JSON(fiber.Map{
			"message":       result.Message(),
			"user":          result.User,
			"created":       result.Created,
			"authenticated": result.Authenticated,
			"token":         result.Token,
		})
	}
	return c.SendString(result.Message())
}

// CreatePost creates a post authored by the session user.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	post, err := s.postService.CreatePost(c.UserContext(), viewerOf(c), service.CreatePostInput{
		Title:   c.FormValue("title"),
		Content: c.FormValue("content"),
	})
	if err != nil {
		return respondText(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "ok", "post_id": post.ID})
}

// CreateComment attaches a comment to post_id.
func (s *Server) CreateComment(c *fiber.Ctx) error {
	comment, err := s.commentService.CreateComment(c.UserContext(), viewerOf(c), service.CreateCommentInput{
		PostID:  c.FormValue("post_id"),
		Content: c.FormValue("content"),
	})
	if err != nil {
		return respondText(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "ok", "comment_id": comment.ID})
}

// HidePost hides post_id with an optional reason. Staff only.
func (s *Server) HidePost(c *fiber.Ctx) error {
	if _, err := s.moderationService.HidePost(c.UserContext(), viewerOf(c), c.FormValue("post_id"), c.FormValue("reason")); err != nil {
		return respondText(c, err)
	}
	return c.SendString("OK")
}

// HideComment hides comment_id with an optional reason. Staff only.
func (s *Server) HideComment(c *fiber.Ctx) error {
	if _, err := s.moderationService.HideComment(c.UserContext(), viewerOf(c), c.FormValue("comment_id"), c.FormValue("reason")); err != nil {
		return respondText(c, err)
	}
	return c.SendString("OK")
}

// DumpFeed returns every post visible to the caller with its comment ids.
// Anonymous callers get an empty array.
func (s *Server) DumpFeed(c *fiber.Ctx) error {
	seq, err := s.feedService.DumpFeed(c.UserContext(), viewerOf(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	records := slices.Collect(seq)
	if records == nil {
		records = []service.DumpRecord{}
	}
	return c.JSON(records)
}
