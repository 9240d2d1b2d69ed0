package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"charityfeed/internal/cache"
	"charityfeed/internal/middleware"
	"charityfeed/internal/models"
	"charityfeed/internal/observability"
	"charityfeed/internal/repository"
	"charityfeed/internal/storage"
	"charityfeed/internal/validation"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultFeedPageSize  = 9
	DefaultMaxUploadSize = 10 << 20
	MaxMediaPerPost      = 10
	uploadConcurrency    = 4
)

// MediaFile is one uploaded image before normalisation.
type MediaFile struct {
	Filename string
	Data     []byte
}

type CreatePostInput struct {
	Title   string
	Content string
	Caption string
	Status  models.PostStatus
	Media   []MediaFile
}

// ListPostsInput selects a feed window. A non-empty Cursor takes precedence
// over Page. ViewerID, when set, fills Post.Liked.
type ListPostsInput struct {
	Page     int
	Limit    int
	Cursor   string
	ViewerID uint
}

type PostServiceConfig struct {
	PageSize       int
	MaxUploadBytes int64
}

type PostService struct {
	posts      repository.PostRepository
	engagement repository.EngagementRepository
	users      repository.UserRepository
	store      storage.ObjectStore
	cache      *cache.Store
	events     EventPublisher
	gate       OperatorGate

	pageSize       int
	maxUploadBytes int64
	now            func() time.Time
}

func NewPostService(
	posts repository.PostRepository,
	engagement repository.EngagementRepository,
	users repository.UserRepository,
	store storage.ObjectStore,
	cacheStore *cache.Store,
	events EventPublisher,
	gate OperatorGate,
	cfg PostServiceConfig,
) *PostService {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultFeedPageSize
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadSize
	}
	return &PostService{
		posts:          posts,
		engagement:     engagement,
		users:          users,
		store:          store,
		cache:          cacheStore,
		events:         events,
		gate:           gate,
		pageSize:       cfg.PageSize,
		maxUploadBytes: cfg.MaxUploadBytes,
		now:            time.Now,
	}
}

// PageSize is the default feed window.
func (s *PostService) PageSize() int {
	return s.pageSize
}

func (s *PostService) requireOperator(session *models.Session) error {
	if err := requireSession(session); err != nil {
		return err
	}
	return s.gate.RequireOperator(session)
}

// CreatePost uploads every media file to the posts bucket and inserts the
// post row referencing their public URLs in upload order. Uploaded objects
// are removed again if the insert fails.
func (s *PostService) CreatePost(ctx context.Context, session *models.Session, in CreatePostInput) (post *models.Post, err error) {
	ctx, span := observability.StartSpan(ctx, "post_service", "create_post",
		attribute.Int("media.count", len(in.Media)))
	defer span.Finish(&err)

	if err := s.requireOperator(session); err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = models.PostStatusDraft
	}
	if !status.Valid() {
		return nil, models.NewValidationError("Invalid status")
	}
	title := strings.TrimSpace(in.Title)
	if err := validation.ValidatePostText(title, in.Content, in.Caption); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if status == models.PostStatusPublished && len(in.Media) == 0 {
		return nil, models.NewValidationError("A published post needs at least one image")
	}
	if len(in.Media) > MaxMediaPerPost {
		return nil, models.NewValidationError(fmt.Sprintf("Too many images (max %d)", MaxMediaPerPost))
	}

	prepared, err := s.prepareMedia(in.Media)
	if err != nil {
		return nil, err
	}

	objects, err := s.uploadMedia(ctx, in.Media, prepared)
	if err != nil {
		return nil, err
	}

	post = &models.Post{
		Title:     title,
		Content:   in.Content,
		Caption:   strings.TrimSpace(in.Caption),
		ImageURLs: lo.Map(objects, func(o *storage.Object, _ int) string { return o.URL }),
		Status:    status,
		AuthorID:  session.User.ID,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		s.deleteObjects(context.WithoutCancel(ctx), objects)
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "post created",
		slog.Uint64("post_id", uint64(post.ID)),
		slog.String("status", string(post.Status)),
		slog.Int("images", len(post.ImageURLs)))

	if post.IsPublished() {
		s.cache.InvalidateFeed(ctx)
		publish(ctx, s.events, models.FeedEvent{Type: models.FeedEventPostPublished, PostID: post.ID})
	}
	return post, nil
}

func (s *PostService) prepareMedia(media []MediaFile) ([]*storage.PreparedImage, error) {
	prepared := make([]*storage.PreparedImage, len(media))
	for i, m := range media {
		if len(m.Data) == 0 {
			return nil, models.NewValidationError(fmt.Sprintf("Image %q is empty", m.Filename))
		}
		if int64(len(m.Data)) > s.maxUploadBytes {
			return nil, models.NewValidationError(fmt.Sprintf("Image %q too large (max %dMB)", m.Filename, s.maxUploadBytes>>20))
		}
		img, err := storage.PrepareImage(m.Data)
		if err != nil {
			if errors.Is(err, storage.ErrUnsupportedImage) {
				return nil, models.NewValidationError(fmt.Sprintf("Image %q is not a supported image", m.Filename))
			}
			return nil, models.NewInternalError(err)
		}
		prepared[i] = img
	}
	return prepared, nil
}

// uploadMedia uploads in parallel and returns objects in input order. On any
// failure the objects that did make it are deleted.
func (s *PostService) uploadMedia(ctx context.Context, media []MediaFile, prepared []*storage.PreparedImage) ([]*storage.Object, error) {
	objects := make([]*storage.Object, len(prepared))
	now := s.now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i, img := range prepared {
		g.Go(func() error {
			key := storage.NewObjectKey(now, img.Ext)
			obj, err := s.store.Upload(gctx, storage.BucketPosts, key, bytes.NewReader(img.Data), int64(len(img.Data)), img.ContentType)
			if err != nil {
				return models.NewUploadError(media[i].Filename, err)
			}
			observability.MediaUploadBytes.Observe(float64(obj.Size))
			objects[i] = obj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.deleteObjects(context.WithoutCancel(ctx), lo.Reject(objects, func(o *storage.Object, _ int) bool { return o == nil }))
		return nil, err
	}
	return objects, nil
}

func (s *PostService) deleteObjects(ctx context.Context, objects []*storage.Object) {
	for _, o := range objects {
		if err := s.store.Delete(ctx, o.Bucket, o.Key); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to delete orphaned media",
				slog.String("bucket", o.Bucket), slog.String("key", o.Key), slog.String("error", err.Error()))
		}
	}
}

// ListPosts returns one window of published posts, newest first. Cursor
// windows are stable under concurrent inserts; page windows are kept for
// callers that address pages by number.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) (page *models.PostPage, err error) {
	ctx, span := observability.StartSpan(ctx, "post_service", "list_posts")
	defer span.Finish(&err)

	limit := clampLimit(in.Limit, s.pageSize, maxPageSize)
	q := repository.FeedQuery{Limit: limit + 1}

	var position string
	if in.Cursor != "" {
		after, err := repository.DecodeCursor(in.Cursor)
		if err != nil {
			return nil, models.NewValidationError("Invalid cursor")
		}
		q.After = after
		position = "c" + in.Cursor
	} else {
		p := max(in.Page, 1)
		q.Offset = (p - 1) * limit
		position = "p" + strconv.Itoa(p)
	}

	page = &models.PostPage{}
	key := cache.FeedPageKey(s.cache.FeedVersion(ctx), position, limit)
	err = s.cache.Aside(ctx, key, page, cache.FeedPageTTL, func() error {
		posts, err := s.posts.ListPublished(ctx, q)
		if err != nil {
			return err
		}
		page.HasMore = len(posts) > limit
		if page.HasMore {
			posts = posts[:limit]
			last := posts[len(posts)-1]
			page.NextCursor = repository.EncodeCursor(repository.FeedCursor{CreatedAt: last.CreatedAt, ID: last.ID})
		}
		page.Items = posts
		return nil
	})
	if err != nil {
		return nil, err
	}
	if page.Items == nil {
		page.Items = []*models.Post{}
	}

	if in.ViewerID != 0 {
		s.markLiked(ctx, in.ViewerID, page.Items)
	}
	return page, nil
}

// markLiked fills Post.Liked. Failures only cost the heart state, so they
// are logged and the page is served anyway.
func (s *PostService) markLiked(ctx context.Context, viewerID uint, posts []*models.Post) {
	if len(posts) == 0 {
		return
	}
	ids := lo.Map(posts, func(p *models.Post, _ int) uint { return p.ID })
	liked, err := s.engagement.LikedPostIDs(ctx, viewerID, ids)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to load like state", slog.String("error", err.Error()))
		return
	}
	set := lo.Associate(liked, func(id uint) (uint, struct{}) { return id, struct{}{} })
	for _, p := range posts {
		_, p.Liked = set[p.ID]
	}
}

// GetPost returns a published post.
func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.IsPublished() {
		return nil, models.NewNotFoundError("Post", id)
	}
	return post, nil
}

// ListAll returns drafts and published posts for the operator dashboard.
func (s *PostService) ListAll(ctx context.Context, session *models.Session, limit, offset int) ([]*models.Post, error) {
	if err := s.requireOperator(session); err != nil {
		return nil, err
	}
	return s.posts.ListAll(ctx, clampLimit(limit, 50, maxPageSize), max(offset, 0))
}

// UpdatePostStatus moves a post between draft and published. Publishing a
// post without images is rejected.
func (s *PostService) UpdatePostStatus(ctx context.Context, session *models.Session, id uint, status models.PostStatus) (*models.Post, error) {
	if err := s.requireOperator(session); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, models.NewValidationError("Invalid status")
	}

	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.Status == status {
		return post, nil
	}
	if status == models.PostStatusPublished && len(post.ImageURLs) == 0 {
		return nil, models.NewValidationError("A published post needs at least one image")
	}
	if err := s.posts.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	post.Status = status

	s.cache.InvalidateFeed(ctx)
	evType := models.FeedEventPostHidden
	if status == models.PostStatusPublished {
		evType = models.FeedEventPostPublished
	}
	publish(ctx, s.events, models.FeedEvent{Type: evType, PostID: id})
	return post, nil
}

// deleteFailed reports a delete that found no post as PERSISTENCE_ERROR.
func deleteFailed(err error) error {
	if models.HasCode(err, models.CodeNotFound) {
		return models.NewPersistenceError("delete post", err)
	}
	return err
}

// DeletePost removes the post with its likes and comments, then deletes its
// media best-effort. Media outside the object store's public base is left alone.
func (s *PostService) DeletePost(ctx context.Context, session *models.Session, id uint) (err error) {
	ctx, span := observability.StartSpan(ctx, "post_service", "delete_post",
		attribute.Int64("post.id", int64(id)))
	defer span.Finish(&err)

	if err := s.requireOperator(session); err != nil {
		return err
	}

	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return deleteFailed(err)
	}
	if err := s.posts.Delete(ctx, id); err != nil {
		return deleteFailed(err)
	}

	base := s.store.PublicBase()
	for _, u := range post.ImageURLs {
		bucket, key, ok := storage.SplitPublicURL(base, u)
		if !ok {
			continue
		}
		if err := s.store.Delete(context.WithoutCancel(ctx), bucket, key); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to delete post media",
				slog.Uint64("post_id", uint64(id)), slog.String("url", u), slog.String("error", err.Error()))
		}
	}

	middleware.Logger.InfoContext(ctx, "post deleted", slog.Uint64("post_id", uint64(id)))
	s.cache.InvalidateFeed(ctx)
	publish(ctx, s.events, models.FeedEvent{Type: models.FeedEventPostDeleted, PostID: id})
	return nil
}

// Stats returns the dashboard totals.
func (s *PostService) Stats(ctx context.Context, session *models.Session) (*models.DashboardStats, error) {
	if err := s.requireOperator(session); err != nil {
		return nil, err
	}
	return s.CollectStats(ctx)
}

// CollectStats gathers the dashboard totals without an operator check, for
// trusted callers such as the admin CLI.
func (s *PostService) CollectStats(ctx context.Context) (*models.DashboardStats, error) {
	stats := &models.DashboardStats{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { stats.TotalUsers, err = s.users.Count(gctx); return })
	g.Go(func() (err error) { stats.TotalPosts, err = s.posts.Count(gctx); return })
	g.Go(func() (err error) { stats.TotalLikes, err = s.engagement.CountLikes(gctx); return })
	g.Go(func() (err error) { stats.TotalComments, err = s.engagement.CountComments(gctx); return })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}
