// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Profile roles. The role is kept in step with IsStaff.
const (
	RoleSerf  = "serf"
	RoleAdmin = "admin"
)

// User represents an account in the CloudySky application.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	LastName  string    `gorm:"size:150;not null;default:''" json:"last_name"`
	IsStaff   bool      `gorm:"not null;default:false" json:"is_staff"`
	Bio       string    `gorm:"type:text;not null;default:''" json:"bio"`
	Role      string    `gorm:"size:10;not null;default:'serf'" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetStaff updates the privilege flag and the profile role together.
func (u *User) SetStaff(staff bool) {
	u.IsStaff = staff
	if staff {
		u.Role = RoleAdmin
		return
	}
	u.Role = RoleSerf
}
