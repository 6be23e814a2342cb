// Package pagination implements keyset pagination over (created_at, id),
// newest first. Cursors are opaque URL-safe strings.
package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the sort key of the last row on a page.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// NormalizeLimit clamps limit into [1, MaxLimit], defaulting to DefaultLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer fetches one extra row so Page can tell whether another
// page follows.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

func EncodeCursor(cursor Cursor) string {
	raw := cursor.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + cursor.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor returns nil for a blank cursor.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	at, id, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return nil, fmt.Errorf("invalid cursor format")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor id: %w", err)
	}
	return &Cursor{CreatedAt: createdAt, ID: parsedID}, nil
}

// Keyset is a gorm scope that orders by (created_at, id) DESC, resumes after
// params.Cursor and fetches LimitWithBuffer rows. prefix qualifies the
// columns for joined queries ("e." for "e.created_at"). A malformed cursor
// is added to the statement's errors.
func Keyset(params Params, prefix string) func(*gorm.DB) *gorm.DB {
	createdAt, id := prefix+"created_at", prefix+"id"
	return func(db *gorm.DB) *gorm.DB {
		cursor, err := ParseCursor(params.Cursor)
		if err != nil {
			_ = db.AddError(err)
			return db
		}
		if cursor != nil {
			db = db.Where(fmt.Sprintf("(%s, %s) < (?, ?)", createdAt, id), cursor.CreatedAt, cursor.ID)
		}
		return db.Order(createdAt + " DESC").Order(id + " DESC").Limit(LimitWithBuffer(params.Limit))
	}
}

// Page trims rows fetched with Keyset down to the limit and returns the
// cursor for the following page, or "" once the results are exhausted.
func Page[T any](rows []T, limit int, key func(T) Cursor) ([]T, string) {
	normalized := NormalizeLimit(limit)
	if len(rows) <= normalized {
		return rows, ""
	}
	rows = rows[:normalized]
	return rows, EncodeCursor(key(rows[len(rows)-1]))
}
