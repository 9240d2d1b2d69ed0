package models

import (
	"strings"
	"time"
)

// Role is the authorization level of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// User is an authenticated principal. Operators are users with RoleAdmin.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	FullName  string    `gorm:"size:120" json:"full_name"`
	Role      Role      `gorm:"size:16;not null;default:user" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// DisplayName is the name shown next to the user's comments.
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	if local == "" {
		return "Anonymous"
	}
	return local
}

// Session is the caller identity established by a valid token.
type Session struct {
	Token     string    `json:"token,omitempty"`
	User      *User     `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}
