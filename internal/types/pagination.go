package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// PageToken is an opaque cursor derived from the sort key of the last row of
// a page. Cursor pagination (rather than offset) keeps listings stable under
// concurrent inserts: a token always resumes strictly after the row it was
// minted from, regardless of rows added or removed before it.
type PageToken struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

// IsZero reports whether the token is the start-of-listing sentinel.
func (t PageToken) IsZero() bool {
	return t.ID == "" && t.CreatedAt.IsZero()
}

// Encode serializes the token to a URL-safe opaque string.
func (t PageToken) Encode() string {
	if t.IsZero() {
		return ""
	}
	raw, _ := json.Marshal(t)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodePageToken parses an opaque cursor string produced by Encode.
// An empty string decodes to the zero token (start of listing).
func DecodePageToken(s string) (PageToken, error) {
	if s == "" {
		return PageToken{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return PageToken{}, fmt.Errorf("malformed page token: %w", err)
	}
	var t PageToken
	if err := json.Unmarshal(raw, &t); err != nil {
		return PageToken{}, fmt.Errorf("malformed page token: %w", err)
	}
	return t, nil
}

// PageInfo contains pagination metadata for list responses.
type PageInfo struct {
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
	TotalItems *int   `json:"total_items,omitempty"`
}

// ListResponse is a generic paginated response wrapper.
type ListResponse[T any] struct {
	Data     []T      `json:"data"`
	PageInfo PageInfo `json:"pagination"`
}
