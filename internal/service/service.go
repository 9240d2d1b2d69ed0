// Package service implements the feed's business rules on top of the
// repositories, the object store and the cache.
package service

import (
	"context"
	"log/slog"

	"charityfeed/internal/middleware"
	"charityfeed/internal/models"
)

const (
	maxPageSize        = 100
	maxCommentPageSize = 200
	defaultCommentPage = 50
	maxLikedLookup     = 100
)

// EventPublisher pushes feed events to live subscribers.
type EventPublisher interface {
	PublishFeedEvent(ctx context.Context, ev models.FeedEvent) error
}

// OperatorGate decides whether a session may perform operator writes.
type OperatorGate interface {
	RequireOperator(session *models.Session) error
}

// publish delivers ev best-effort. A lost event only delays the live view
// until the next feed fetch.
func publish(ctx context.Context, events EventPublisher, ev models.FeedEvent) {
	if events == nil {
		return
	}
	if err := events.PublishFeedEvent(ctx, ev); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish feed event",
			slog.String("type", string(ev.Type)),
			slog.Uint64("post_id", uint64(ev.PostID)),
			slog.String("error", err.Error()))
	}
}

func requireSession(session *models.Session) error {
	if session == nil || session.User == nil {
		return models.NewUnauthorizedError("Sign in required")
	}
	return nil
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func intPtr(v int) *int { return &v }
