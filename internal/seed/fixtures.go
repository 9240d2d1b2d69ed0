package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"charityfeed/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures/demo.yml
var demoFixture []byte

// Fixture is a hand-written data set, loaded from YAML.
type Fixture struct {
	Users []FixtureUser `yaml:"users"`
	Posts []FixturePost `yaml:"posts"`
}

type FixtureUser struct {
	Email    string      `yaml:"email"`
	FullName string      `yaml:"full_name"`
	Password string      `yaml:"password"`
	Role     models.Role `yaml:"role"`
}

type FixturePost struct {
	Title    string            `yaml:"title"`
	Content  string            `yaml:"content"`
	Caption  string            `yaml:"caption"`
	Status   models.PostStatus `yaml:"status"`
	Author   string            `yaml:"author"`
	Images   []string          `yaml:"images"`
	AgeHours int               `yaml:"age_hours"`
	LikedBy  []string          `yaml:"liked_by"`
	Comments []FixtureComment  `yaml:"comments"`
}

type FixtureComment struct {
	Author  string `yaml:"author"`
	Content string `yaml:"content"`
}

// DemoFixture returns the fixture bundled with the binary.
func DemoFixture() (*Fixture, error) {
	return ParseFixture(demoFixture)
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes and checks a fixture. Every author referenced by a
// post, like or comment must be one of the fixture's users.
func ParseFixture(data []byte) (*Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	known := make(map[string]bool, len(fx.Users))
	for i, u := range fx.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		if email == "" {
			return nil, fmt.Errorf("fixture user %d has no email", i)
		}
		if u.Role == "" {
			fx.Users[i].Role = models.RoleUser
		}
		known[email] = true
	}
	ref := func(email, where string) error {
		if !known[strings.ToLower(strings.TrimSpace(email))] {
			return fmt.Errorf("%s references unknown user %q", where, email)
		}
		return nil
	}
	for i, p := range fx.Posts {
		where := fmt.Sprintf("post %q", p.Title)
		if strings.TrimSpace(p.Title) == "" {
			return nil, fmt.Errorf("fixture post %d has no title", i)
		}
		if p.Status == "" {
			fx.Posts[i].Status = models.PostStatusPublished
		} else if !p.Status.Valid() {
			return nil, fmt.Errorf("%s has unknown status %q", where, p.Status)
		}
		if fx.Posts[i].Status == models.PostStatusPublished && len(p.Images) == 0 {
			return nil, fmt.Errorf("%s is published without images", where)
		}
		if err := ref(p.Author, where); err != nil {
			return nil, err
		}
		for _, email := range p.LikedBy {
			if err := ref(email, where+" like"); err != nil {
				return nil, err
			}
		}
		for _, c := range p.Comments {
			if err := ref(c.Author, where+" comment"); err != nil {
				return nil, err
			}
		}
	}
	return &fx, nil
}

// ApplyFixture inserts the fixture's users, posts, likes and comments.
// Users that already exist are reused.
func (s *Seeder) ApplyFixture(ctx context.Context, fx *Fixture) (*Summary, error) {
	sum := &Summary{}
	users := make(map[string]*models.User, len(fx.Users))

	for _, fu := range fx.Users {
		email := strings.ToLower(strings.TrimSpace(fu.Email))
		var existing models.User
		err := s.db.WithContext(ctx).Where("email = ?", email).Limit(1).Find(&existing).Error
		if err != nil {
			return nil, err
		}
		if existing.ID != 0 {
			users[email] = &existing
			continue
		}

		password := fu.Password
		if password == "" {
			password = DefaultPassword
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost())
		if err != nil {
			return nil, err
		}
		u := &models.User{Email: email, Password: string(hashed), FullName: fu.FullName, Role: fu.Role}
		if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
			return nil, fmt.Errorf("create fixture user %s: %w", email, err)
		}
		users[email] = u
		sum.Users++
	}

	lookup := func(email string) *models.User {
		return users[strings.ToLower(strings.TrimSpace(email))]
	}
	now := time.Now()
	for _, fp := range fx.Posts {
		post := &models.Post{
			Title:     fp.Title,
			Content:   fp.Content,
			Caption:   fp.Caption,
			ImageURLs: fp.Images,
			Status:    fp.Status,
			AuthorID:  lookup(fp.Author).ID,
			CreatedAt: now.Add(-time.Duration(fp.AgeHours) * time.Hour),
		}
		if post.ImageURLs == nil {
			post.ImageURLs = []string{}
		}
		if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
			return nil, fmt.Errorf("create fixture post %q: %w", fp.Title, err)
		}
		sum.Posts++

		for _, email := range fp.LikedBy {
			if err := s.factory.CreateLike(ctx, lookup(email), post); err != nil {
				return nil, err
			}
			sum.Likes++
		}
		for i, fc := range fp.Comments {
			at := post.CreatedAt.Add(time.Duration(i+1) * time.Minute)
			_, err := s.factory.CreateComment(ctx, lookup(fc.Author), post, func(c *models.Comment) {
				c.Content = fc.Content
				c.CreatedAt = at
			})
			if err != nil {
				return nil, err
			}
			sum.Comments++
		}
	}

	if err := s.reconcile(ctx, sum); err != nil {
		return nil, err
	}
	return sum, nil
}
