package repository

import (
	"context"

	"cloudysky/internal/models"
	"cloudysky/internal/observability"

	"gorm.io/gorm"
)

// MediaRepository stores file references attached to posts and comments.
type MediaRepository interface {
	Create(ctx context.Context, media *models.Media) error
	GetByID(ctx context.Context, id uint) (*models.Media, error)
	ListByPost(ctx context.Context, postID uint) ([]*models.Media, error)
}

type mediaRepository struct {
	db *gorm.DB
}

// NewMediaRepository creates a new MediaRepository.
func NewMediaRepository(db *gorm.DB) MediaRepository {
	return &mediaRepository{db: db}
}

func (r *mediaRepository) Create(ctx context.Context, media *models.Media) error {
	defer observability.TrackQuery("insert", "media")()
	return storeError(r.db.WithContext(ctx).Create(media).Error)
}

func (r *mediaRepository) GetByID(ctx context.Context, id uint) (*models.Media, error) {
	var media models.Media
	if err := r.db.WithContext(ctx).First(&media, id).Error; err != nil {
		return nil, notFoundOr(err, "Media", id)
	}
	return &media, nil
}

func (r *mediaRepository) ListByPost(ctx context.Context, postID uint) ([]*models.Media, error) {
	var media []*models.Media
	if err := r.db.WithContext(ctx).Where("post_id = ?", postID).Order("id ASC").Find(&media).Error; err != nil {
		return nil, storeError(err)
	}
	return media, nil
}
