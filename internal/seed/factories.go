// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"charityfeed/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every generated account.
const DefaultPassword = "password123"

var causes = []string{
	"Food Drive", "Winter Coat Collection", "Literacy Night", "Community Garden",
	"Charity Run", "Toy Drive", "Blood Donation Day", "Shelter Volunteer Day",
	"School Supplies Drive", "Beach Cleanup", "Senior Tech Help", "Holiday Meal Service",
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db     *gorm.DB
	opts   Options
	faker  *gofakeit.Faker
	rng    *rand.Rand
	hashed string
	now    func() time.Time
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a Factory bound to db. A zero opts.RandSeed seeds from
// the clock.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	f := &Factory{
		db:     db,
		opts:   opts,
		faker:  gofakeit.New(seed),
		rng:    rand.New(rand.NewSource(seed)), // #nosec G404: acceptable for seeding
		now:    time.Now,
		nextID: 1000,
	}
	if opts.SkipBcrypt {
		f.hashed = DefaultPassword
	} else {
		hashed, _ := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		f.hashed = string(hashed)
	}
	return f
}

func (f *Factory) assignID() uint {
	f.nextID++
	return f.nextID
}

// BuildUser returns an unsaved user with a fake name and unique email.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	user := &models.User{
		Email:    strings.ToLower(fmt.Sprintf("%s.%s.%d@example.org", first, last, f.faker.Number(100, 99999))),
		Password: f.hashed,
		FullName: first + " " + last,
		Role:     models.RoleUser,
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser persists a generated user.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if f.opts.DryRun {
		user.ID = f.assignID()
		return user, nil
	}
	if err := f.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost returns an unsaved published post by author with one to four
// placeholder images and a created_at within the last opts.MaxDays days.
func (f *Factory) BuildPost(author *models.User, overrides ...func(*models.Post)) *models.Post {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	age := time.Duration(f.rng.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rng.Intn(24))*time.Hour +
		time.Duration(f.rng.Intn(60))*time.Minute

	images := make([]string, 1+f.rng.Intn(4))
	for i := range images {
		images[i] = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", f.faker.UUID())
	}

	cause := causes[f.rng.Intn(len(causes))]
	post := &models.Post{
		Title:     fmt.Sprintf("%s in %s", cause, f.faker.City()),
		Content:   f.faker.Paragraph(1, 3, 12, " "),
		Caption:   f.faker.Sentence(8),
		ImageURLs: images,
		Status:    models.PostStatusPublished,
		AuthorID:  author.ID,
		CreatedAt: f.now().Add(-age),
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePostsBatch persists posts in a single insert.
func (f *Factory) CreatePostsBatch(ctx context.Context, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, p := range posts {
			p.ID = f.assignID()
		}
		return nil
	}
	return f.db.WithContext(ctx).Create(&posts).Error
}

// CreateComment persists a comment by user on post.
func (f *Factory) CreateComment(ctx context.Context, user *models.User, post *models.Post, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		PostID:    post.ID,
		UserID:    user.ID,
		UserName:  user.DisplayName(),
		Content:   f.faker.Sentence(10),
		CreatedAt: post.CreatedAt.Add(time.Duration(1+f.rng.Intn(48)) * time.Hour),
	}
	for _, override := range overrides {
		override(comment)
	}
	if f.opts.DryRun {
		comment.ID = f.assignID()
		return comment, nil
	}
	if err := f.db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateLike persists a like from user on post.
func (f *Factory) CreateLike(ctx context.Context, user *models.User, post *models.Post) error {
	if f.opts.DryRun {
		return nil
	}
	return f.db.WithContext(ctx).Create(&models.Like{PostID: post.ID, UserID: user.ID}).Error
}
