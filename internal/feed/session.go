package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"charityfeed/internal/middleware"
	"charityfeed/internal/models"

	"github.com/samber/lo"
)

// State is the loading state of a feed session.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoaded
	StateLoadingMore
	StateExhausted
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateLoadingMore:
		return "loading_more"
	case StateExhausted:
		return "exhausted"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultPageSize matches the gallery grid of three rows of three.
const DefaultPageSize = 9

var (
	ErrAlreadyStarted = errors.New("feed: session already started")
	ErrNotFailed      = errors.New("feed: nothing to retry")
)

// SessionConfig configures a Session.
type SessionConfig struct {
	PageSize int
	// PrefetchLikes loads the viewer's heart state for every fetched page.
	// Enable it only for signed-in viewers.
	PrefetchLikes bool
}

// Session walks the public feed page by page:
//
//	Idle -> Loading -> Loaded <-> LoadingMore -> ... -> Exhausted
//
// A failed load moves to Error; Retry re-enters the load that failed.
// At most one page request is outstanding at a time.
type Session struct {
	backend  Backend
	pageSize int
	prefetch bool

	mu      sync.Mutex
	state   State
	retry   State
	items   []*models.Post
	byID    map[uint]*models.Post
	cursor  string
	hasMore bool
	lastErr error
}

func NewSession(backend Backend, cfg SessionConfig) *Session {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &Session{
		backend:  backend,
		pageSize: cfg.PageSize,
		prefetch: cfg.PrefetchLikes,
		byID:     make(map[uint]*models.Post),
	}
}

// Start loads the first page.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateLoading
	s.mu.Unlock()

	return s.load(ctx, StateLoading, "")
}

// SentinelVisible is the infinite-scroll trigger. It fetches the next page
// when the feed is Loaded and reports whether a request was made; in every
// other state, including an outstanding fetch, it does nothing.
func (s *Session) SentinelVisible(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.state != StateLoaded || !s.hasMore {
		s.mu.Unlock()
		return false, nil
	}
	s.state = StateLoadingMore
	cursor := s.cursor
	s.mu.Unlock()

	return true, s.load(ctx, StateLoadingMore, cursor)
}

// Retry re-enters the loading state that failed.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateError {
		s.mu.Unlock()
		return ErrNotFailed
	}
	from := s.retry
	s.state = from
	s.lastErr = nil
	cursor := s.cursor
	s.mu.Unlock()

	return s.load(ctx, from, cursor)
}

func (s *Session) load(ctx context.Context, from State, cursor string) error {
	page, err := s.backend.ListPosts(ctx, PageRequest{Cursor: cursor, Limit: s.pageSize})
	if err == nil && s.prefetch && len(page.Items) > 0 {
		s.markLiked(ctx, page.Items)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateError
		s.retry = from
		s.lastErr = err
		return err
	}

	for _, p := range page.Items {
		if _, dup := s.byID[p.ID]; dup {
			continue
		}
		s.byID[p.ID] = p
		s.items = append(s.items, p)
	}
	s.cursor = page.NextCursor
	s.hasMore = page.HasMore && len(page.Items) >= s.pageSize
	if s.hasMore {
		s.state = StateLoaded
	} else {
		s.state = StateExhausted
	}
	return nil
}

// markLiked fills the heart state. A failure only costs the hearts, so it
// is logged and the page is shown anyway.
func (s *Session) markLiked(ctx context.Context, posts []*models.Post) {
	ids := lo.Map(posts, func(p *models.Post, _ int) uint { return p.ID })
	liked, err := s.backend.LikedPostIDs(ctx, ids)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "like state prefetch failed", slog.String("error", err.Error()))
		return
	}
	for _, p := range posts {
		p.Liked = lo.Contains(liked, p.ID)
	}
}

// State returns the current loading state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err is the error that put the session into StateError.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// HasMore reports whether another page may exist.
func (s *Session) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// Items returns copies of the loaded posts, newest first.
func (s *Session) Items() []models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Map(s.items, func(p *models.Post, _ int) models.Post { return *p })
}

// Len is the number of loaded posts.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// At returns a copy of the post at index i.
func (s *Session) At(i int) (models.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.items) {
		return models.Post{}, false
	}
	return *s.items[i], true
}

// Post returns a copy of a loaded post by id.
func (s *Session) Post(id uint) (models.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return models.Post{}, false
	}
	return *p, true
}

// update applies fn to a loaded post and returns the post as it was before.
func (s *Session) update(id uint, fn func(p *models.Post)) (models.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return models.Post{}, false
	}
	before := *p
	fn(p)
	return before, true
}

func (s *Session) remove(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	s.items = lo.Reject(s.items, func(p *models.Post, _ int) bool { return p.ID == id })
}

// ApplyEvent folds a live feed event into the loaded posts. Posts that are
// not loaded are ignored; new publications show up on the next load.
func (s *Session) ApplyEvent(ev models.FeedEvent) {
	switch ev.Type {
	case models.FeedEventPostDeleted, models.FeedEventPostHidden:
		s.remove(ev.PostID)
	case models.FeedEventLikes, models.FeedEventComment, models.FeedEventShare:
		s.update(ev.PostID, func(p *models.Post) {
			if ev.LikesCount != nil {
				p.LikesCount = *ev.LikesCount
			}
			if ev.CommentsCount != nil {
				p.CommentsCount = *ev.CommentsCount
			}
			if ev.SharesCount != nil {
				p.SharesCount = *ev.SharesCount
			}
		})
	}
}
