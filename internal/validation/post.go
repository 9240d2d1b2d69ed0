package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength   = 300
	MaxCaptionLength = 500
	MaxContentLength = 50000
	MaxCommentLength = 10000
)

// ValidatePostText checks the text fields of a post. Title and content are
// required for every status.
func ValidatePostText(title, content, caption string) error {
	switch {
	case strings.TrimSpace(title) == "":
		return fmt.Errorf("title is required")
	case strings.TrimSpace(content) == "":
		return fmt.Errorf("content is required")
	case utf8.RuneCountInString(title) > MaxTitleLength:
		return fmt.Errorf("title too long (max %d characters)", MaxTitleLength)
	case utf8.RuneCountInString(caption) > MaxCaptionLength:
		return fmt.Errorf("caption too long (max %d characters)", MaxCaptionLength)
	case utf8.RuneCountInString(content) > MaxContentLength:
		return fmt.Errorf("content too long (max %d characters)", MaxContentLength)
	}
	return nil
}

// ValidateComment rejects empty and whitespace-only comments.
func ValidateComment(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("comment text is required")
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return fmt.Errorf("comment too long (max %d characters)", MaxCommentLength)
	}
	return nil
}
