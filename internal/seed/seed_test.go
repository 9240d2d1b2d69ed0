package seed

import (
	"context"
	"testing"
	"time"

	"charityfeed/internal/database"
	"charityfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestSeed_CountersMatchRows(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	s := NewSeeder(db, Options{NumUsers: 6, NumPosts: 10, MaxLikes: 4, MaxComments: 3, RandSeed: 42, SkipBcrypt: true})

	sum, err := s.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, sum.Users)
	assert.Equal(t, 10, sum.Posts)

	assert.EqualValues(t, 7, count(t, db, &models.User{}))
	assert.EqualValues(t, sum.Likes, count(t, db, &models.Like{}))
	assert.EqualValues(t, sum.Comments, count(t, db, &models.Comment{}))

	var posts []models.Post
	require.NoError(t, db.Find(&posts).Error)
	for _, p := range posts {
		var likes, comments int64
		require.NoError(t, db.Model(&models.Like{}).Where("post_id = ?", p.ID).Count(&likes).Error)
		require.NoError(t, db.Model(&models.Comment{}).Where("post_id = ?", p.ID).Count(&comments).Error)
		assert.EqualValues(t, likes, p.LikesCount, "post %d", p.ID)
		assert.EqualValues(t, comments, p.CommentsCount, "post %d", p.ID)
		assert.True(t, p.IsPublished())
		assert.NotEmpty(t, p.ImageURLs)
	}

	var admins int64
	require.NoError(t, db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins).Error)
	assert.EqualValues(t, 1, admins)

	require.NoError(t, s.ClearAll(ctx))
	assert.Zero(t, count(t, db, &models.User{}))
	assert.Zero(t, count(t, db, &models.Post{}))
}

func TestSeed_DryRunWritesNothing(t *testing.T) {
	db := openTestDB(t)
	s := NewSeeder(db, Options{NumUsers: 3, NumPosts: 4, MaxLikes: 2, MaxComments: 2, DryRun: true, SkipBcrypt: true})

	sum, err := s.Seed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Posts)
	assert.Zero(t, count(t, db, &models.Post{}))
	assert.Zero(t, count(t, db, &models.User{}))
}

func TestBuildPost(t *testing.T) {
	f := NewFactory(nil, Options{MaxDays: 30, RandSeed: 7, SkipBcrypt: true})
	author := &models.User{ID: 1}

	p := f.BuildPost(author, func(p *models.Post) { p.Caption = "fixed" })
	assert.Equal(t, uint(1), p.AuthorID)
	assert.Equal(t, "fixed", p.Caption)
	assert.NotEmpty(t, p.Title)
	assert.GreaterOrEqual(t, len(p.ImageURLs), 1)
	assert.LessOrEqual(t, len(p.ImageURLs), 4)
	assert.WithinDuration(t, f.now(), p.CreatedAt, 31*24*time.Hour)
}

func TestDemoFixture(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	fx, err := DemoFixture()
	require.NoError(t, err)

	s := NewSeeder(db, Options{SkipBcrypt: true})
	sum, err := s.ApplyFixture(ctx, fx)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Users)
	assert.Equal(t, 4, sum.Posts)
	assert.Equal(t, 3, sum.Likes)
	assert.Equal(t, 2, sum.Comments)

	var drive models.Post
	require.NoError(t, db.Where("title = ?", "Food Drive").First(&drive).Error)
	assert.Equal(t, 2, drive.LikesCount)
	assert.Equal(t, 2, drive.CommentsCount)
	assert.Len(t, drive.ImageURLs, 2)

	var comments []models.Comment
	require.NoError(t, db.Where("post_id = ?", drive.ID).Order("created_at ASC").Find(&comments).Error)
	require.Len(t, comments, 2)
	assert.Equal(t, "Great work!", comments[0].Content)
	assert.Equal(t, "Uma Reader", comments[0].UserName)

	var draft models.Post
	require.NoError(t, db.Where("status = ?", models.PostStatusDraft).First(&draft).Error)
	assert.Empty(t, draft.ImageURLs)

	// applying twice reuses the users
	sum, err = s.ApplyFixture(ctx, fx)
	require.NoError(t, err)
	assert.Zero(t, sum.Users)
	assert.EqualValues(t, 3, count(t, db, &models.User{}))
}

func TestParseFixture_Errors(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{"bad yaml", "users: [\n"},
		{"user without email", "users:\n  - full_name: Nobody\n"},
		{"unknown author", "users:\n  - email: a@example.org\nposts:\n  - title: T\n    author: b@example.org\n    images: [x]\n"},
		{"unknown liker", "users:\n  - email: a@example.org\nposts:\n  - title: T\n    author: a@example.org\n    images: [x]\n    liked_by: [z@example.org]\n"},
		{"published without images", "users:\n  - email: a@example.org\nposts:\n  - title: T\n    author: a@example.org\n"},
		{"bad status", "users:\n  - email: a@example.org\nposts:\n  - title: T\n    author: a@example.org\n    status: archived\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixture([]byte(tt.yml))
			assert.Error(t, err)
		})
	}
}
