package repository

import (
	"encoding/base64"
	"time"

	"github.com/goccy/go-json"
)

// FeedCursor is the keyset position after the last post of a feed page.
// Pages continue strictly below (CreatedAt, ID), so inserts of newer posts
// never shift later pages.
type FeedCursor struct {
	CreatedAt time.Time `json:"t"`
	ID        uint      `json:"id"`
}

// EncodeCursor returns an opaque URL-safe token for c.
func EncodeCursor(c FeedCursor) string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses a token produced by EncodeCursor.
func DecodeCursor(token string) (*FeedCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	var c FeedCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
