package feed

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"charityfeed/internal/models"
)

// fakeBackend serves a fixed, newest-first list of posts.
type fakeBackend struct {
	mu       sync.Mutex
	posts    []*models.Post
	liked    map[uint]bool
	calls    int
	listErr  error
	likeErr  error
	shareErr error
	// block, when set, holds every ListPosts call until it is closed.
	block chan struct{}
	// likeGate, when set, holds every ToggleLike call until it is closed.
	likeGate chan struct{}
}

func newFakeBackend(n int) *fakeBackend {
	b := &fakeBackend{liked: map[uint]bool{}}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := n; i >= 1; i-- {
		b.posts = append(b.posts, &models.Post{
			ID:        uint(i),
			Title:     fmt.Sprintf("Post %d", i),
			Caption:   "caption",
			Status:    models.PostStatusPublished,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
	return b
}

func (b *fakeBackend) ListPosts(_ context.Context, req PageRequest) (*models.PostPage, error) {
	if b.block != nil {
		<-b.block
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.listErr != nil {
		return nil, b.listErr
	}
	start := 0
	if req.Cursor != "" {
		start, _ = strconv.Atoi(req.Cursor)
	}
	end := min(start+req.Limit, len(b.posts))
	page := &models.PostPage{HasMore: end < len(b.posts)}
	for _, p := range b.posts[start:end] {
		cp := *p
		page.Items = append(page.Items, &cp)
	}
	if page.HasMore {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

func (b *fakeBackend) LikedPostIDs(_ context.Context, ids []uint) ([]uint, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []uint
	for _, id := range ids {
		if b.liked[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (b *fakeBackend) find(id uint) *models.Post {
	for _, p := range b.posts {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (b *fakeBackend) ToggleLike(_ context.Context, id uint) (*models.LikeResult, error) {
	if b.likeGate != nil {
		<-b.likeGate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.likeErr != nil {
		return nil, b.likeErr
	}
	p := b.find(id)
	b.liked[id] = !b.liked[id]
	if b.liked[id] {
		p.LikesCount++
	} else {
		p.LikesCount--
	}
	return &models.LikeResult{PostID: id, Liked: b.liked[id], LikesCount: p.LikesCount}, nil
}

func (b *fakeBackend) AddComment(_ context.Context, id uint, text string) (*models.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.find(id)
	if p == nil {
		return nil, models.NewNotFoundError("Post", id)
	}
	p.CommentsCount++
	return &models.Comment{
		ID:            uint(p.CommentsCount),
		PostID:        id,
		Content:       text,
		UserName:      "tester",
		CommentsCount: p.CommentsCount,
	}, nil
}

func (b *fakeBackend) RecordShare(_ context.Context, id uint) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.shareErr != nil {
		return 0, b.shareErr
	}
	p := b.find(id)
	p.SharesCount++
	return p.SharesCount, nil
}

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}
