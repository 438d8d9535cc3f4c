package models

import (
	"time"
)

// ModerationReason is a reusable, immutable reason text attached to hidden content.
type ModerationReason struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ReasonText string `gorm:"size:255;uniqueIndex;not null" json:"reason_text"`
}

// Moderation is the moderation state shared by posts and comments.
type Moderation struct {
	IsHidden       bool       `json:"is_hidden"`
	HiddenByID     *uint      `json:"hidden_by_id,omitempty"`
	HiddenAt       *time.Time `json:"hidden_at,omitempty"`
	HiddenReasonID *uint      `json:"hidden_reason_id,omitempty"`
}

// Post represents a top-level post in the CloudySky application.
type Post struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	AuthorID       uint              `gorm:"not null;index" json:"author_id"`
	Author         User              `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	Title          string            `gorm:"size:255;not null" json:"title"`
	Content        string            `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time         `gorm:"index" json:"created_at"`
	IsHidden       bool              `gorm:"not null;default:false;index" json:"is_hidden"`
	HiddenByID     *uint             `json:"hidden_by_id,omitempty"`
	HiddenBy       *User             `gorm:"foreignKey:HiddenByID;constraint:OnDelete:SET NULL" json:"-"`
	HiddenAt       *time.Time        `json:"hidden_at,omitempty"`
	HiddenReasonID *uint             `json:"hidden_reason_id,omitempty"`
	HiddenReason   *ModerationReason `gorm:"foreignKey:HiddenReasonID;constraint:OnDelete:SET NULL" json:"hidden_reason,omitempty"`
}

// Moderation returns the moderation sub-record of the post.
func (p *Post) Moderation() Moderation {
	return Moderation{
		IsHidden:       p.IsHidden,
		HiddenByID:     p.HiddenByID,
		HiddenAt:       p.HiddenAt,
		HiddenReasonID: p.HiddenReasonID,
	}
}

// Comment represents a comment attached to a post.
type Comment struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	AuthorID       uint              `gorm:"not null;index" json:"author_id"`
	Author         User              `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	PostID         uint              `gorm:"not null;index" json:"post_id"`
	Post           *Post             `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	Content        string            `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time         `json:"created_at"`
	IsHidden       bool              `gorm:"not null;default:false;index" json:"is_hidden"`
	HiddenByID     *uint             `json:"hidden_by_id,omitempty"`
	HiddenBy       *User             `gorm:"foreignKey:HiddenByID;constraint:OnDelete:SET NULL" json:"-"`
	HiddenAt       *time.Time        `json:"hidden_at,omitempty"`
	HiddenReasonID *uint             `json:"hidden_reason_id,omitempty"`
	HiddenReason   *ModerationReason `gorm:"foreignKey:HiddenReasonID;constraint:OnDelete:SET NULL" json:"hidden_reason,omitempty"`
}

// Moderation returns the moderation sub-record of the comment.
func (c *Comment) Moderation() Moderation {
	return Moderation{
		IsHidden:       c.IsHidden,
		HiddenByID:     c.HiddenByID,
		HiddenAt:       c.HiddenAt,
		HiddenReasonID: c.HiddenReasonID,
	}
}
