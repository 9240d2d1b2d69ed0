package repository

import (
	"context"
	"errors"

	"charityfeed/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EngagementRepository owns likes, comments and the counters they drive on
// posts. Every counter change happens in the same transaction as the row
// change, as a single relative UPDATE. Likes and comments only land on
// published posts; anything else is NOT_FOUND.
type EngagementRepository interface {
	ToggleLike(ctx context.Context, postID, userID uint) (*models.LikeResult, error)
	IsLiked(ctx context.Context, postID, userID uint) (bool, error)
	LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error)
	AddComment(ctx context.Context, comment *models.Comment) (int, error)
	ListComments(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, error)
	CountLikes(ctx context.Context) (int64, error)
	CountComments(ctx context.Context) (int64, error)
	ReconcileCounters(ctx context.Context) (int64, error)
}

type engagementRepository struct {
	db *gorm.DB
}

// NewEngagementRepository returns a GORM-backed EngagementRepository.
func NewEngagementRepository(db *gorm.DB) EngagementRepository {
	return &engagementRepository{db: db}
}

const decrementLikes = "CASE WHEN likes_count > 0 THEN likes_count - 1 ELSE 0 END"

func (r *engagementRepository) ToggleLike(ctx context.Context, postID, userID uint) (*models.LikeResult, error) {
	res := &models.LikeResult{PostID: postID}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&models.Post{}).Where("id = ? AND status = ?", postID, models.PostStatusPublished).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return models.NewNotFoundError("Post", postID)
		}

		removed := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.Like{})
		if removed.Error != nil {
			return removed.Error
		}

		var delta interface{}
		if removed.RowsAffected > 0 {
			delta = gorm.Expr(decrementLikes)
		} else {
			like := models.Like{PostID: postID, UserID: userID}
			inserted := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit("Post").Create(&like)
			if inserted.Error != nil {
				return inserted.Error
			}
			res.Liked = true
			if inserted.RowsAffected > 0 {
				delta = gorm.Expr("likes_count + ?", 1)
			}
		}

		if delta != nil {
			if err := tx.Model(&models.Post{}).Where("id = ?", postID).UpdateColumn("likes_count", delta).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.Post{}).Where("id = ?", postID).Pluck("likes_count", &res.LikesCount).Error
	})
	if err != nil {
		return nil, mapError(err, "Post", postID, "toggle like")
	}
	return res, nil
}

func (r *engagementRepository) IsLiked(ctx context.Context, postID, userID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&n).Error
	if err != nil {
		return false, models.NewPersistenceError("load like state", err)
	}
	return n > 0, nil
}

func (r *engagementRepository) LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error) {
	if len(postIDs) == 0 {
		return []uint{}, nil
	}
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error
	if err != nil {
		return nil, models.NewPersistenceError("load like state", err)
	}
	return ids, nil
}

// AddComment inserts the comment and returns the post's new comments_count.
func (r *engagementRepository) AddComment(ctx context.Context, comment *models.Comment) (int, error) {
	var count int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated := tx.Model(&models.Post{}).
			Where("id = ? AND status = ?", comment.PostID, models.PostStatusPublished).
			UpdateColumn("comments_count", gorm.Expr("comments_count + ?", 1))
		if updated.Error != nil {
			return updated.Error
		}
		if updated.RowsAffected == 0 {
			return models.NewNotFoundError("Post", comment.PostID)
		}
		if err := tx.Omit("Post").Create(comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", comment.PostID).Pluck("comments_count", &count).Error
	})
	if err != nil {
		return 0, mapError(err, "Post", comment.PostID, "insert comment")
	}
	return count, nil
}

func (r *engagementRepository) ListComments(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	if err != nil {
		return nil, models.NewPersistenceError("list comments", err)
	}
	return comments, nil
}

func (r *engagementRepository) CountLikes(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Like{}).Count(&n).Error; err != nil {
		return 0, models.NewPersistenceError("count likes", err)
	}
	return n, nil
}

func (r *engagementRepository) CountComments(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).Count(&n).Error; err != nil {
		return 0, models.NewPersistenceError("count comments", err)
	}
	return n, nil
}

const driftedPostsSQL = `
SELECT id FROM posts
WHERE likes_count <> (SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id)
	OR comments_count <> (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id)
ORDER BY id`

// ReconcileCounters recomputes likes_count and comments_count from rows for
// every post whose counters drifted, returning how many posts were fixed.
// Each post is repaired in its own transaction under a row lock.
func (r *engagementRepository) ReconcileCounters(ctx context.Context) (int64, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Raw(driftedPostsSQL).Scan(&ids).Error; err != nil {
		return 0, models.NewPersistenceError("reconcile counters", err)
	}

	var fixed int64
	for _, id := range ids {
		changed, err := r.reconcilePost(ctx, id)
		if err != nil {
			return fixed, models.NewPersistenceError("reconcile counters", err)
		}
		if changed {
			fixed++
		}
	}
	return fixed, nil
}

// reconcilePost locks the post row before counting. Like and comment
// transactions update that row, so once the lock is held every engagement
// row they wrote is committed and visible to the counts, and any still
// running will apply their delta after this commit.
func (r *engagementRepository) reconcilePost(ctx context.Context, id uint) (bool, error) {
	changed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "likes_count", "comments_count").
			First(&post, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var likes, comments int64
		if err := tx.Model(&models.Like{}).Where("post_id = ?", id).Count(&likes).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Comment{}).Where("post_id = ?", id).Count(&comments).Error; err != nil {
			return err
		}
		if int64(post.LikesCount) == likes && int64(post.CommentsCount) == comments {
			return nil
		}

		changed = true
		return tx.Model(&models.Post{}).Where("id = ?", id).UpdateColumns(map[string]interface{}{
			"likes_count":    likes,
			"comments_count": comments,
		}).Error
	})
	return changed, err
}
