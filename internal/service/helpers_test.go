package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"charityfeed/internal/cache"
	"charityfeed/internal/database"
	"charityfeed/internal/featureflags"
	"charityfeed/internal/models"
	"charityfeed/internal/repository"
	"charityfeed/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

// recordingPublisher captures published feed events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.FeedEvent
}

func (p *recordingPublisher) PublishFeedEvent(_ context.Context, ev models.FeedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) last() models.FeedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return models.FeedEvent{}
	}
	return p.events[len(p.events)-1]
}

type fixture struct {
	db         *gorm.DB
	mr         *miniredis.Miniredis
	cache      *cache.Store
	store      *storage.MemoryStore
	events     *recordingPublisher
	flags      *featureflags.Manager
	auth       *AuthService
	posts      *PostService
	engagement *EngagementService

	admin  *models.Session
	reader *models.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := storage.NewMemoryStore("http://media.test")
	require.NoError(t, store.EnsureBuckets(context.Background(), storage.DefaultBuckets...))

	f := &fixture{
		db:     db,
		mr:     mr,
		cache:  cache.NewStore(rdb),
		store:  store,
		events: &recordingPublisher{},
		flags:  featureflags.NewManager(""),
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	engagementRepo := repository.NewEngagementRepository(db)

	f.auth = NewAuthService(userRepo, f.cache, f.flags, AuthServiceConfig{
		Secret:     testSecret,
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	})
	f.posts = NewPostService(postRepo, engagementRepo, userRepo, store, f.cache, f.events, f.auth, PostServiceConfig{})
	f.engagement = NewEngagementService(engagementRepo, postRepo, f.cache, f.events)

	ctx := context.Background()
	f.admin, err = f.auth.AdminSetup(ctx, AccountInput{Email: "operator@example.org", Password: "operator-pass", FullName: "Olive Operator"})
	require.NoError(t, err)
	f.reader, err = f.auth.Signup(ctx, AccountInput{Email: "uma@example.org", Password: "reader-pass"})
	require.NoError(t, err)

	return f
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for x := 0; x < 32; x++ {
		img.Set(x, x%24, color.RGBA{R: 30, G: 120, B: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// publishPost creates a published post with one image through the service.
func (f *fixture) publishPost(t *testing.T, title string) *models.Post {
	t.Helper()
	post, err := f.posts.CreatePost(context.Background(), f.admin, CreatePostInput{
		Title:   title,
		Content: title + " details",
		Status:  models.PostStatusPublished,
		Media:   []MediaFile{{Filename: "a.png", Data: pngBytes(t)}},
	})
	require.NoError(t, err)
	return post
}

// seedPublished inserts n published posts one minute apart, oldest first,
// bypassing uploads.
func (f *fixture) seedPublished(t *testing.T, n int) []*models.Post {
	t.Helper()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	out := make([]*models.Post, n)
	for i := range out {
		p := &models.Post{
			Title:     fmt.Sprintf("Seeded %d", i),
			Content:   "body",
			ImageURLs: []string{"https://images.example.org/seed.webp"},
			Status:    models.PostStatusPublished,
			AuthorID:  f.admin.User.ID,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, f.db.Create(p).Error)
		out[i] = p
	}
	return out
}

func (f *fixture) postRow(t *testing.T, id uint) models.Post {
	t.Helper()
	var p models.Post
	require.NoError(t, f.db.First(&p, id).Error)
	return p
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}
