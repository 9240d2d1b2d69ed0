package seed

import (
	"context"
	"fmt"
	"log/slog"

	"charityfeed/internal/middleware"
	"charityfeed/internal/models"
	"charityfeed/internal/repository"

	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	NumUsers int
	NumPosts int
	// MaxComments and MaxLikes bound the engagement generated per post.
	MaxComments int
	MaxLikes    int
	MaxDays     int
	RandSeed    int64
	// SkipBcrypt stores the default password unhashed. Faster, but the
	// accounts cannot log in.
	SkipBcrypt bool
	DryRun     bool
}

// Summary counts what a seeding run created.
type Summary struct {
	Users    int
	Posts    int
	Likes    int
	Comments int
	// Reconciled is the number of posts whose counters were rebuilt.
	Reconciled int64
}

func (s Summary) String() string {
	return fmt.Sprintf("%d users, %d posts, %d likes, %d comments", s.Users, s.Posts, s.Likes, s.Comments)
}

// Seeder fills the database with generated or fixture data.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	opts.MaxComments = max(opts.MaxComments, 0)
	opts.MaxLikes = max(opts.MaxLikes, 0)
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, opts)}
}

func (s *Seeder) bcryptCost() int {
	if s.opts.SkipBcrypt {
		return bcrypt.MinCost
	}
	return bcrypt.DefaultCost
}

// ClearAll deletes every comment, like, post and user.
func (s *Seeder) ClearAll(ctx context.Context) error {
	if s.opts.DryRun {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, model := range []any{&models.Comment{}, &models.Like{}, &models.Post{}, &models.User{}} {
			if err := all.Delete(model).Error; err != nil {
				return fmt.Errorf("clear %T: %w", model, err)
			}
		}
		return nil
	})
}

// Seed generates NumUsers readers, one operator and NumPosts published
// posts with random likes and comments.
func (s *Seeder) Seed(ctx context.Context) (*Summary, error) {
	sum := &Summary{}
	middleware.Logger.InfoContext(ctx, "seeding database",
		slog.Int("users", s.opts.NumUsers), slog.Int("posts", s.opts.NumPosts), slog.Bool("dry_run", s.opts.DryRun))

	operator, err := s.factory.CreateUser(ctx, func(u *models.User) {
		u.Role = models.RoleAdmin
		u.FullName = "Seed Operator"
	})
	if err != nil {
		return nil, fmt.Errorf("create operator: %w", err)
	}
	sum.Users++

	readers := make([]*models.User, 0, s.opts.NumUsers)
	for range s.opts.NumUsers {
		u, err := s.factory.CreateUser(ctx)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		readers = append(readers, u)
	}
	sum.Users += len(readers)

	posts := make([]*models.Post, 0, s.opts.NumPosts)
	for range s.opts.NumPosts {
		posts = append(posts, s.factory.BuildPost(operator))
	}
	if err := s.factory.CreatePostsBatch(ctx, posts); err != nil {
		return nil, fmt.Errorf("create posts: %w", err)
	}
	sum.Posts = len(posts)

	rng := s.factory.rng
	for _, post := range posts {
		if len(readers) == 0 {
			break
		}
		likers := lo.Samples(readers, rng.Intn(min(s.opts.MaxLikes, len(readers))+1))
		for _, u := range likers {
			if err := s.factory.CreateLike(ctx, u, post); err != nil {
				return nil, fmt.Errorf("create like: %w", err)
			}
		}
		sum.Likes += len(likers)

		for range rng.Intn(s.opts.MaxComments + 1) {
			author := readers[rng.Intn(len(readers))]
			if _, err := s.factory.CreateComment(ctx, author, post); err != nil {
				return nil, fmt.Errorf("create comment: %w", err)
			}
			sum.Comments++
		}
	}

	if err := s.reconcile(ctx, sum); err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "seeding complete", slog.String("summary", sum.String()))
	return sum, nil
}

// reconcile rebuilds the denormalized counters from the inserted rows.
func (s *Seeder) reconcile(ctx context.Context, sum *Summary) error {
	if s.opts.DryRun {
		return nil
	}
	fixed, err := repository.NewEngagementRepository(s.db).ReconcileCounters(ctx)
	if err != nil {
		return err
	}
	sum.Reconciled = fixed
	return nil
}
