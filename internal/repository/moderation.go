package repository

import (
	"context"
	"time"

	"cloudysky/internal/models"
	"cloudysky/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HideTarget names the table a hide operation writes to.
type HideTarget string

const (
	HidePostTarget    HideTarget = "posts"
	HideCommentTarget HideTarget = "comments"
)

// HideFields is the moderation state written by a hide.
type HideFields struct {
	ActorID    uint
	ReasonText string
	At         time.Time
}

// ModerationRepository persists moderation reasons and hides content.
type ModerationRepository interface {
	GetOrCreateReason(ctx context.Context, text string) (*models.ModerationReason, error)
	Hide(ctx context.Context, target HideTarget, id uint, fields HideFields) (*models.ModerationReason, error)
}

type moderationRepository struct {
	db *gorm.DB
}

// NewModerationRepository creates a new ModerationRepository.
func NewModerationRepository(db *gorm.DB) ModerationRepository {
	return &moderationRepository{db: db}
}

func (r *moderationRepository) GetOrCreateReason(ctx context.Context, text string) (*models.ModerationReason, error) {
	reason, err := getOrCreateReason(r.db.WithContext(ctx), text)
	if err != nil {
		return nil, storeError(err)
	}
	return reason, nil
}

// getOrCreateReason matches text exactly. Concurrent creators race on the
// unique index; the loser re-reads the winner's row.
func getOrCreateReason(tx *gorm.DB, text string) (*models.ModerationReason, error) {
	reason := models.ModerationReason{ReasonText: text}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reason_text"}},
		DoNothing: true,
	}).Create(&reason).Error
	if err != nil {
		return nil, err
	}
	if reason.ID != 0 {
		return &reason, nil
	}
	if err := tx.Where("reason_text = ?", text).First(&reason).Error; err != nil {
		return nil, err
	}
	return &reason, nil
}

// Hide marks the target hidden in a single UPDATE, creating the reason first
// when ReasonText is set. Both run in one transaction. A missing target rolls
// back and returns a NOT_FOUND error.
func (r *moderationRepository) Hide(ctx context.Context, target HideTarget, id uint, fields HideFields) (*models.ModerationReason, error) {
	defer observability.TrackQuery("update", string(target))()

	var reason *models.ModerationReason
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reasonID *uint
		if fields.ReasonText != "" {
			got, err := getOrCreateReason(tx, fields.ReasonText)
			if err != nil {
				return err
			}
			reason = got
			reasonID = &got.ID
		}

		actorID := fields.ActorID
		res := tx.Table(string(target)).Where("id = ?", id).Updates(map[string]any{
			"is_hidden":        true,
			"hidden_by_id":     &actorID,
			"hidden_at":        fields.At,
			"hidden_reason_id": reasonID,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, notFoundOr(err, resourceName(target), id)
	}
	return reason, nil
}

func resourceName(target HideTarget) string {
	if target == HideCommentTarget {
		return "Comment"
	}
	return "Post"
}
