package cache

import (
	"fmt"
	"time"
)

const (
	PostKeyPrefix      = "post:%d"
	FeedVersionKey     = "feed:version"
	FeedPageKeyPrefix  = "feed:v%d:%s:%d"
	RevokedTokenPrefix = "blacklist:%s"
)

const (
	PostTTL = 30 * time.Minute
	// FeedPageTTL bounds how stale a cached feed page may be even if an
	// invalidation is lost.
	FeedPageTTL = 30 * time.Second
)

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

// FeedPageKey identifies a cached feed window under the current feed version.
// position is either a cursor or "p<page>".
func FeedPageKey(version int64, position string, limit int) string {
	return fmt.Sprintf(FeedPageKeyPrefix, version, position, limit)
}

func RevokedTokenKey(jti string) string {
	return fmt.Sprintf(RevokedTokenPrefix, jti)
}
