package service

import (
	"context"
	"strconv"
	"strings"

	"cloudysky/internal/models"
	"cloudysky/internal/repository"
)

const (
	maxCommentLen = 10000

	placeholderPostTitle   = "Auto-created post"
	placeholderPostContent = "Auto-created for comment"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	lenient     bool
}

type CreateCommentInput struct {
	PostID  string
	Content string
}

// NewCommentService returns a CommentService. With lenient set, a comment
// whose post_id is absent or unknown attaches to the oldest post, and a
// placeholder post is created when there are none.
func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	lenient bool,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		lenient:     lenient,
	}
}

func (s *CommentService) CreateComment(ctx context.Context, author models.Viewer, in CreateCommentInput) (*models.Comment, error) {
	if !author.Authenticated {
		return nil, models.NewUnauthorizedError("Authentication required")
	}

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Missing content")
	}
	if len(content) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 10000 characters)")
	}

	post, err := s.resolvePost(ctx, author, in.PostID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{
		AuthorID: author.ID(),
		PostID:   post.ID,
		Content:  content,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *CommentService) resolvePost(ctx context.Context, author models.Viewer, rawID string) (*models.Post, error) {
	rawID = strings.TrimSpace(rawID)
	id, parseErr := strconv.ParseUint(rawID, 10, 64)
	if parseErr == nil && id > 0 {
		post, err := s.postRepo.GetByID(ctx, uint(id))
		if err == nil {
			return post, nil
		}
		if !models.HasCode(err, models.CodeNotFound) || !s.lenient {
			return nil, err
		}
	} else if !s.lenient {
		return nil, models.NewValidationError("A numeric post_id is required")
	}

	post, err := s.postRepo.Oldest(ctx)
	if err != nil {
		return nil, err
	}
	if post != nil {
		return post, nil
	}

	post = &models.Post{
		AuthorID: author.ID(),
		Title:    placeholderPostTitle,
		Content:  placeholderPostContent,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}
