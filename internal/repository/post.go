package repository

import (
	"context"

	"charityfeed/internal/models"

	"gorm.io/gorm"
)

// FeedQuery selects one window of published posts. After takes precedence
// over Offset when set.
type FeedQuery struct {
	Limit  int
	Offset int
	After  *FeedCursor
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	ListPublished(ctx context.Context, q FeedQuery) ([]*models.Post, error)
	ListAll(ctx context.Context, limit, offset int) ([]*models.Post, error)
	UpdateStatus(ctx context.Context, id uint, status models.PostStatus) error
	Delete(ctx context.Context, id uint) error
	IncrementShares(ctx context.Context, id uint) (int, error)
	Count(ctx context.Context) (int64, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Omit("Author").Create(post).Error; err != nil {
		return models.NewPersistenceError("insert post", err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).First(&post, id).Error
	if err != nil {
		return nil, mapError(err, "Post", id, "load post")
	}
	return &post, nil
}

func (r *postRepository) ListPublished(ctx context.Context, q FeedQuery) ([]*models.Post, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", models.PostStatusPublished)

	if q.After != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))",
			q.After.CreatedAt, q.After.CreatedAt, q.After.ID)
	} else if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}

	var posts []*models.Post
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(q.Limit).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewPersistenceError("list posts", err)
	}
	return posts, nil
}

func (r *postRepository) ListAll(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewPersistenceError("list posts", err)
	}
	return posts, nil
}

func (r *postRepository) UpdateStatus(ctx context.Context, id uint, status models.PostStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return models.NewPersistenceError("update post status", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

// Delete removes the post together with its likes and comments.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return models.NewPersistenceError("delete post likes", err)
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return models.NewPersistenceError("delete post comments", err)
		}
		result := tx.Where("id = ?", id).Delete(&models.Post{})
		if result.Error != nil {
			return models.NewPersistenceError("delete post", result.Error)
		}
		if result.RowsAffected == 0 {
			return models.NewNotFoundError("Post", id)
		}
		return nil
	})
	return mapError(err, "Post", id, "delete post")
}

// IncrementShares bumps shares_count in one statement and returns the new value.
func (r *postRepository) IncrementShares(ctx context.Context, id uint) (int, error) {
	var count int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Post{}).
			Where("id = ? AND status = ?", id, models.PostStatusPublished).
			UpdateColumn("shares_count", gorm.Expr("shares_count + ?", 1))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.NewNotFoundError("Post", id)
		}
		return tx.Model(&models.Post{}).Where("id = ?", id).Pluck("shares_count", &count).Error
	})
	if err != nil {
		return 0, mapError(err, "Post", id, "record share")
	}
	return count, nil
}

func (r *postRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Count(&n).Error; err != nil {
		return 0, models.NewPersistenceError("count posts", err)
	}
	return n, nil
}
