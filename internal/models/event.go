package models

// FeedEventType names a change pushed to live feed subscribers.
type FeedEventType string

const (
	FeedEventPostPublished FeedEventType = "post_published"
	FeedEventPostHidden    FeedEventType = "post_hidden"
	FeedEventPostDeleted   FeedEventType = "post_deleted"
	FeedEventLikes         FeedEventType = "likes_changed"
	FeedEventComment       FeedEventType = "comment_added"
	FeedEventShare         FeedEventType = "share_recorded"
)

// FeedEvent carries the authoritative counter values after a change. Counters
// that the change did not touch are omitted.
type FeedEvent struct {
	Type          FeedEventType `json:"type"`
	PostID        uint          `json:"post_id"`
	LikesCount    *int          `json:"likes_count,omitempty"`
	CommentsCount *int          `json:"comments_count,omitempty"`
	SharesCount   *int          `json:"shares_count,omitempty"`
	Comment       *Comment      `json:"comment,omitempty"`
}
