package repository

import (
	"context"

	"cloudysky/internal/models"
	"cloudysky/internal/observability"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error)
	ListByPosts(ctx context.Context, postIDs []uint) (map[uint][]*models.Comment, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	defer observability.TrackQuery("insert", "comments")()
	return storeError(r.db.WithContext(ctx).Create(comment).Error)
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	defer observability.TrackQuery("select", "comments")()
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("Author").First(&comment, id).Error; err != nil {
		return nil, notFoundOr(err, "Comment", id)
	}
	return &comment, nil
}

// ListByPost returns the comments of a post in ascending id order.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	grouped, err := r.ListByPosts(ctx, []uint{postID})
	if err != nil {
		return nil, err
	}
	return grouped[postID], nil
}

// ListByPosts loads the comments of several posts in one query, grouped by
// post and kept in ascending id order.
func (r *commentRepository) ListByPosts(ctx context.Context, postIDs []uint) (map[uint][]*models.Comment, error) {
	grouped := make(map[uint][]*models.Comment, len(postIDs))
	if len(postIDs) == 0 {
		return grouped, nil
	}

	defer observability.TrackQuery("select", "comments")()
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("post_id IN ?", postIDs).
		Order("id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, storeError(err)
	}
	for _, c := range comments {
		grouped[c.PostID] = append(grouped[c.PostID], c)
	}
	return grouped, nil
}
