// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// PostStatus is the publication state of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

// Valid reports whether s is a known status.
func (s PostStatus) Valid() bool {
	return s == PostStatusDraft || s == PostStatusPublished
}

// Post is a gallery entry written by an operator.
// Media is always an ordered list of public image URLs; a single-image post is a list of one.
type Post struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Title     string     `gorm:"size:300;not null" json:"title"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	Caption   string     `gorm:"size:500" json:"caption"`
	ImageURLs []string   `gorm:"type:text;serializer:json" json:"image_urls"`
	Status    PostStatus `gorm:"size:16;not null;default:draft;index:idx_posts_status_created,priority:1" json:"status"`
	AuthorID  uint       `gorm:"not null;index" json:"author_id"`
	Author    *User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:RESTRICT" json:"author,omitempty"`

	// Denormalized counters. Written only through atomic SQL expressions by the
	// engagement repository and the reconciler.
	LikesCount    int `gorm:"not null;default:0" json:"likes_count"`
	CommentsCount int `gorm:"not null;default:0" json:"comments_count"`
	SharesCount   int `gorm:"not null;default:0" json:"shares_count"`

	// Liked is computed for the requesting user and never persisted.
	Liked bool `gorm:"-" json:"liked"`

	CreatedAt time.Time `gorm:"index:idx_posts_status_created,priority:2,sort:desc" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPublished reports whether the post is visible in the public feed.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// PostPage is one window of the public feed.
type PostPage struct {
	Items      []*Post `json:"items"`
	HasMore    bool    `json:"has_more"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

// DashboardStats are the totals shown on the operator dashboard.
type DashboardStats struct {
	TotalUsers    int64 `json:"total_users"`
	TotalPosts    int64 `json:"total_posts"`
	TotalLikes    int64 `json:"total_likes"`
	TotalComments int64 `json:"total_comments"`
}
