// Package pagination provides opaque cursor helpers for the transaction and
// subscription feeds. Cursors encode a stable position (date + transaction id)
// for keyset pagination; callers treat the encoded form as an opaque token.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultLimit is the default page size if not specified
	DefaultLimit = 50
	// MaxLimit is the maximum allowed page size
	MaxLimit = 200
)

// Cursor represents a stable pagination position within a feed.
type Cursor struct {
	Date time.Time
	ID   string
}

// Encode serializes the cursor to an opaque string.
// Format: base64("ts:{timestamp_ms}:id:{id}")
func (c Cursor) Encode() string {
	raw := fmt.Sprintf("ts:%d:id:%s", c.Date.UnixMilli(), c.ID)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// Decode parses an encoded cursor string. An empty cursor decodes to nil
// (start of feed).
func Decode(encoded string) (*Cursor, error) {
	if encoded == "" {
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	raw := string(data)
	if !strings.HasPrefix(raw, "ts:") {
		return nil, fmt.Errorf("invalid cursor format: missing ts prefix")
	}

	parts := strings.SplitN(raw[len("ts:"):], ":id:", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid cursor format: missing id segment")
	}

	ms, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}

	return &Cursor{Date: time.UnixMilli(ms), ID: parts[1]}, nil
}

// Encode is a convenience function to create and encode a cursor.
func Encode(date time.Time, id string) string {
	return Cursor{Date: date, ID: id}.Encode()
}

// ClampLimit ensures limit is within valid bounds.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
