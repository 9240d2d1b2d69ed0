package feed

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"charityfeed/internal/middleware"
	"charityfeed/internal/models"
)

// ErrInProgress is returned when the same action is already running for a post.
var ErrInProgress = errors.New("feed: action already in progress for this post")

type action int

const (
	actionLike action = iota
	actionComment
	actionShare
)

type flagKey struct {
	postID uint
	action action
}

// Engagement applies likes, comments and shares to the posts of a Session.
// Each action updates the local counters at once and then settles on the
// server's answer, or restores the previous values when the call fails.
type Engagement struct {
	session *Session
	backend Backend

	mu       sync.Mutex
	inflight map[flagKey]struct{}
}

func NewEngagement(session *Session, backend Backend) *Engagement {
	return &Engagement{
		session:  session,
		backend:  backend,
		inflight: make(map[flagKey]struct{}),
	}
}

func (e *Engagement) begin(postID uint, a action) (done func(), err error) {
	key := flagKey{postID: postID, action: a}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inflight[key]; busy {
		return nil, ErrInProgress
	}
	e.inflight[key] = struct{}{}
	return func() {
		e.mu.Lock()
		delete(e.inflight, key)
		e.mu.Unlock()
	}, nil
}

// InProgress reports whether a like or comment is running for the post.
func (e *Engagement) InProgress(postID uint) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, liking := e.inflight[flagKey{postID, actionLike}]
	_, commenting := e.inflight[flagKey{postID, actionComment}]
	return liking || commenting
}

func notLoaded(postID uint) error {
	return models.NewNotFoundError("Post", postID)
}

// ToggleLike flips the heart on a loaded post.
func (e *Engagement) ToggleLike(ctx context.Context, postID uint) (*models.LikeResult, error) {
	done, err := e.begin(postID, actionLike)
	if err != nil {
		return nil, err
	}
	defer done()

	before, ok := e.session.update(postID, func(p *models.Post) {
		if p.Liked {
			p.Liked = false
			p.LikesCount = max(p.LikesCount-1, 0)
		} else {
			p.Liked = true
			p.LikesCount++
		}
	})
	if !ok {
		return nil, notLoaded(postID)
	}

	res, err := e.backend.ToggleLike(ctx, postID)
	if err != nil {
		e.session.update(postID, func(p *models.Post) {
			p.Liked = before.Liked
			p.LikesCount = before.LikesCount
		})
		return nil, err
	}
	e.session.update(postID, func(p *models.Post) {
		p.Liked = res.Liked
		p.LikesCount = res.LikesCount
	})
	return res, nil
}

// AddComment posts a comment on a loaded post. Blank text is rejected
// without a round trip.
func (e *Engagement) AddComment(ctx context.Context, postID uint, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.NewValidationError("Comment cannot be empty")
	}

	done, err := e.begin(postID, actionComment)
	if err != nil {
		return nil, err
	}
	defer done()

	if _, ok := e.session.update(postID, func(p *models.Post) { p.CommentsCount++ }); !ok {
		return nil, notLoaded(postID)
	}

	comment, err := e.backend.AddComment(ctx, postID, text)
	if err != nil {
		e.session.update(postID, func(p *models.Post) { p.CommentsCount = max(p.CommentsCount-1, 0) })
		return nil, err
	}
	if comment.CommentsCount > 0 {
		e.session.update(postID, func(p *models.Post) { p.CommentsCount = comment.CommentsCount })
	}
	return comment, nil
}

// Share returns the text handed to the share sheet or clipboard and bumps
// the share counter. The counter is best effort: a failed bump is rolled
// back and logged, and the share itself still succeeds.
func (e *Engagement) Share(ctx context.Context, postID uint, pageURL string) (string, error) {
	post, ok := e.session.Post(postID)
	if !ok {
		return "", notLoaded(postID)
	}
	text := ShareText(post, pageURL)

	done, err := e.begin(postID, actionShare)
	if err != nil {
		// a bump is already on its way; the share still goes out
		return text, nil
	}
	defer done()

	e.session.update(postID, func(p *models.Post) { p.SharesCount++ })
	count, err := e.backend.RecordShare(ctx, postID)
	if err != nil {
		e.session.update(postID, func(p *models.Post) { p.SharesCount = max(p.SharesCount-1, 0) })
		middleware.Logger.WarnContext(ctx, "share count not recorded",
			slog.Uint64("post_id", uint64(postID)),
			slog.String("error", err.Error()),
		)
		return text, nil
	}
	e.session.update(postID, func(p *models.Post) { p.SharesCount = count })
	return text, nil
}

// ShareText is the clipboard fallback when no native share sheet exists.
func ShareText(p models.Post, pageURL string) string {
	lines := []string{p.Title}
	if c := strings.TrimSpace(p.Caption); c != "" {
		lines = append(lines, c)
	}
	if pageURL != "" {
		lines = append(lines, pageURL)
	}
	return strings.Join(lines, "\n")
}
