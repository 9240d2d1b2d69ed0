// Package feed is the client-side gallery engine: paging through published
// posts, the detail lightbox and optimistic likes, comments and shares.
package feed

import (
	"context"

	"charityfeed/internal/models"
)

// PageRequest addresses one window of the public feed. An empty Cursor
// requests the newest posts.
type PageRequest struct {
	Cursor string
	Limit  int
}

// Backend is the API surface the feed consumes. Errors are *models.AppError
// values so callers can branch on the code.
type Backend interface {
	ListPosts(ctx context.Context, req PageRequest) (*models.PostPage, error)
	LikedPostIDs(ctx context.Context, postIDs []uint) ([]uint, error)
	ToggleLike(ctx context.Context, postID uint) (*models.LikeResult, error)
	AddComment(ctx context.Context, postID uint, text string) (*models.Comment, error)
	RecordShare(ctx context.Context, postID uint) (int, error)
}
