// Package storage is the object store client used for post media.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Buckets created at startup. Only BucketPosts is written by the feed; the
// profile buckets are provisioned for avatar and banner imagery.
const (
	BucketPosts   = "posts"
	BucketAvatars = "avatars"
	BucketBanners = "banners"
)

// DefaultBuckets lists every bucket EnsureBuckets provisions.
var DefaultBuckets = []string{BucketPosts, BucketAvatars, BucketBanners}

// Object is a stored blob and the public URL it is served from.
type Object struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// ObjectStore uploads, addresses and removes blobs by bucket and key.
type ObjectStore interface {
	EnsureBuckets(ctx context.Context, buckets ...string) error
	Upload(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (*Object, error)
	PublicURL(bucket, key string) string
	PublicBase() string
	Delete(ctx context.Context, bucket, key string) error
	Ping(ctx context.Context) error
}

// NewObjectKey returns a collision-resistant key such as
// "2026/10/3f0c...e1.webp" for a file with the given extension.
func NewObjectKey(now time.Time, ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/%s.%s", now.UTC().Format("2006/01"), uuid.NewString(), ext)
}

// joinPublicURL builds base/bucket/key with each key segment escaped.
func joinPublicURL(base, bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + strings.Join(segments, "/")
}

// SplitPublicURL reverses PublicURL for URLs under base. ok is false for
// foreign URLs, which are never deleted.
func SplitPublicURL(base, raw string) (bucket, key string, ok bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(raw, prefix) {
		return "", "", false
	}
	rest, err := url.PathUnescape(strings.TrimPrefix(raw, prefix))
	if err != nil {
		return "", "", false
	}
	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" || path.Clean("/"+key) != "/"+key {
		return "", "", false
	}
	return bucket, key, true
}
