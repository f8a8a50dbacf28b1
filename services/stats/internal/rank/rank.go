// Package rank maintains the popularity ordering of content: an index
// keyed by (score descending, content id descending) that supports
// idempotent upserts and range scans resuming from a cursor.
//
// The content-id tie-break is mandatory: score collisions are common at
// low interaction counts, and without a deterministic tie order a
// pagination cursor could skip or repeat items between pages.
package rank

import (
	"context"
	"errors"
)

// ErrCursorNotFound is returned when a scan cursor names a content id that
// is no longer present in the index (removed or never ranked).
var ErrCursorNotFound = errors.New("rank: cursor not found")

type Index interface {
	// Upsert places contentID at score, moving it atomically if already
	// present. Re-applying an identical (contentID, score) pair is a no-op.
	Upsert(ctx context.Context, contentID int64, score float64) error
	// Remove drops contentID from the index. Absent ids are ignored.
	Remove(ctx context.Context, contentID int64) error
	// RangeFromCursor returns up to limit content ids in index order,
	// resuming strictly after cursorID's position. A negative cursorID
	// scans from the top.
	RangeFromCursor(ctx context.Context, cursorID int64, limit int) ([]int64, error)
}
