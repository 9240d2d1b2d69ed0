package service

import (
	"context"
	"log/slog"
	"strings"

	"charityfeed/internal/cache"
	"charityfeed/internal/middleware"
	"charityfeed/internal/models"
	"charityfeed/internal/observability"
	"charityfeed/internal/repository"
	"charityfeed/internal/validation"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
)

// EngagementService applies likes, comments and shares. Counter updates are
// atomic statements in the repository, so concurrent callers never lose an
// increment.
type EngagementService struct {
	engagement repository.EngagementRepository
	posts      repository.PostRepository
	cache      *cache.Store
	events     EventPublisher
}

func NewEngagementService(
	engagement repository.EngagementRepository,
	posts repository.PostRepository,
	cacheStore *cache.Store,
	events EventPublisher,
) *EngagementService {
	return &EngagementService{
		engagement: engagement,
		posts:      posts,
		cache:      cacheStore,
		events:     events,
	}
}

// requirePublished hides drafts from comment listings. Writes get the same
// rule from the repository.
func (s *EngagementService) requirePublished(ctx context.Context, postID uint) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if !post.IsPublished() {
		return models.NewNotFoundError("Post", postID)
	}
	return nil
}

// ToggleLike likes the post if the caller has not, and unlikes it otherwise.
// The result carries the authoritative count.
func (s *EngagementService) ToggleLike(ctx context.Context, session *models.Session, postID uint) (res *models.LikeResult, err error) {
	ctx, span := observability.StartSpan(ctx, "engagement_service", "toggle_like",
		attribute.Int64("post.id", int64(postID)))
	defer span.Finish(&err)

	if err := requireSession(session); err != nil {
		return nil, err
	}

	res, err = s.engagement.ToggleLike(ctx, postID, session.User.ID)
	if err != nil {
		return nil, err
	}

	action := "unlike"
	if res.Liked {
		action = "like"
	}
	observability.EngagementEvents.WithLabelValues(action).Inc()
	s.cache.InvalidateFeed(ctx)
	publish(ctx, s.events, models.FeedEvent{
		Type:       models.FeedEventLikes,
		PostID:     postID,
		LikesCount: intPtr(res.LikesCount),
	})
	return res, nil
}

// AddComment appends a comment signed with the caller's display name.
func (s *EngagementService) AddComment(ctx context.Context, session *models.Session, postID uint, text string) (comment *models.Comment, err error) {
	ctx, span := observability.StartSpan(ctx, "engagement_service", "add_comment",
		attribute.Int64("post.id", int64(postID)))
	defer span.Finish(&err)

	if err := requireSession(session); err != nil {
		return nil, err
	}
	if err := validation.ValidateComment(text); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	comment = &models.Comment{
		PostID:   postID,
		UserID:   session.User.ID,
		UserName: session.User.DisplayName(),
		Content:  strings.TrimSpace(text),
	}
	count, err := s.engagement.AddComment(ctx, comment)
	if err != nil {
		return nil, err
	}
	comment.CommentsCount = count

	observability.EngagementEvents.WithLabelValues("comment").Inc()
	s.cache.InvalidateFeed(ctx)
	publish(ctx, s.events, models.FeedEvent{
		Type:          models.FeedEventComment,
		PostID:        postID,
		CommentsCount: intPtr(count),
		Comment:       comment,
	})
	return comment, nil
}

// ListComments returns a post's comments in submission order.
func (s *EngagementService) ListComments(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, error) {
	if err := s.requirePublished(ctx, postID); err != nil {
		return nil, err
	}
	return s.engagement.ListComments(ctx, postID,
		clampLimit(limit, defaultCommentPage, maxCommentPageSize), max(offset, 0))
}

// RecordShare bumps the share counter. Nothing else is persisted for a share.
func (s *EngagementService) RecordShare(ctx context.Context, postID uint) (int, error) {
	count, err := s.posts.IncrementShares(ctx, postID)
	if err != nil {
		return 0, err
	}
	observability.EngagementEvents.WithLabelValues("share").Inc()
	s.cache.InvalidateFeed(ctx)
	publish(ctx, s.events, models.FeedEvent{
		Type:        models.FeedEventShare,
		PostID:      postID,
		SharesCount: intPtr(count),
	})
	return count, nil
}

// LikedPostIDs returns which of postIDs the caller has liked.
func (s *EngagementService) LikedPostIDs(ctx context.Context, session *models.Session, postIDs []uint) ([]uint, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	postIDs = lo.Uniq(postIDs)
	if len(postIDs) > maxLikedLookup {
		return nil, models.NewValidationError("Too many post ids")
	}
	return s.engagement.LikedPostIDs(ctx, session.User.ID, postIDs)
}

// ReconcileCounters recomputes drifted likes_count and comments_count values
// from the underlying rows.
func (s *EngagementService) ReconcileCounters(ctx context.Context) (fixed int64, err error) {
	ctx, span := observability.StartSpan(ctx, "engagement_service", "reconcile_counters")
	defer span.Finish(&err)

	fixed, err = s.engagement.ReconcileCounters(ctx)
	if err != nil {
		return 0, err
	}
	if fixed > 0 {
		observability.CounterDriftCorrections.Add(float64(fixed))
		s.cache.InvalidateFeed(ctx)
		middleware.Logger.WarnContext(ctx, "repaired drifted post counters", slog.Int64("posts", fixed))
	}
	return fixed, nil
}
