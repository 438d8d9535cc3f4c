package models

import "time"

// Media is a stored file attached to a post, a comment, or nothing at all.
// A database CHECK rejects rows that reference both.
type Media struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PostID     *uint     `gorm:"index;check:chk_media_single_owner,post_id IS NULL OR comment_id IS NULL" json:"post_id,omitempty"`
	Post       *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	CommentID  *uint     `gorm:"index" json:"comment_id,omitempty"`
	Comment    *Comment  `gorm:"foreignKey:CommentID;constraint:OnDelete:CASCADE" json:"-"`
	File       string    `gorm:"size:512;not null" json:"file"`
	UploadedAt time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}

// TableName keeps the table name singular.
func (Media) TableName() string {
	return "media"
}
