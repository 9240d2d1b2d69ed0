package models

import (
	"time"
)

// Comment is a reply to a post. Comments are never edited and are displayed
// in insertion order.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index:idx_comments_post_created,priority:1" json:"post_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	UserName  string    `gorm:"size:120;not null" json:"user_name"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index:idx_comments_post_created,priority:2" json:"created_at"`

	// CommentsCount is the post's comments_count right after this comment was
	// added. Only set on the create response.
	CommentsCount int `gorm:"-" json:"comments_count,omitempty"`

	Post *Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}
