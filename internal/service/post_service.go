package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"cloudysky/internal/models"
	"cloudysky/internal/repository"
)

const (
	maxTitleLen   = 255
	maxContentLen = 50000
)

type PostService struct {
	postRepo repository.PostRepository
}

type CreatePostInput struct {
	Title   string
	Content string
}

func NewPostService(postRepo repository.PostRepository) *PostService {
	return &PostService{postRepo: postRepo}
}

// CreatePost stores a post authored by the viewer. Title and content are
// trimmed and both required.
func (s *PostService) CreatePost(ctx context.Context, author models.Viewer, in CreatePostInput) (*models.Post, error) {
	if !author.Authenticated {
		return nil, models.NewUnauthorizedError("Authentication required")
	}

	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	if title == "" || content == "" {
		return nil, models.NewValidationError("Missing title or content")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return nil, models.NewValidationError("Title too long (max 255 characters)")
	}
	if len(content) > maxContentLen {
		return nil, models.NewValidationError("Content too long (max 50000 characters)")
	}

	post := &models.Post{
		AuthorID: author.ID(),
		Title:    title,
		Content:  content,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}
