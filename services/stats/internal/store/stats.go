package store

import (
	"context"
	"errors"
)

// Kind identifies which interaction counter a delta applies to.
type Kind string

const (
	KindView    Kind = "view"
	KindLike    Kind = "like"
	KindComment Kind = "comment"
)

func (k Kind) Valid() bool {
	switch k {
	case KindView, KindLike, KindComment:
		return true
	}
	return false
}

// Statistic is the per-content interaction tally. One row per content item,
// created lazily on the first interaction event.
type Statistic struct {
	ContentID       int64   `json:"content_id"`
	ViewCount       int64   `json:"view_count"`
	LikeCount       int64   `json:"like_count"`
	CommentCount    int64   `json:"comment_count"`
	PopularityScore float64 `json:"popularity_score"`
}

// Scorer recomputes the popularity score from counter state. Satisfied by
// score.Engine; injected so the score is always derived from the counters
// just written, inside the store's own critical section.
type Scorer interface {
	Score(viewCount, likeCount, commentCount int64) float64
}

var ErrUnknownKind = errors.New("unknown counter kind")

// StatStore is the single source of truth for interaction volume.
//
// ApplyDelta must be atomic with respect to concurrent callers on the same
// contentID: deltas are summed, never lost. A decrement that would cross
// zero clamps at zero and reports clamped=true so operators can spot
// duplicate or out-of-order delete events. Mutations for different
// contentIDs proceed in parallel.
type StatStore interface {
	ApplyDelta(ctx context.Context, contentID int64, kind Kind, delta int64) (stat Statistic, clamped bool, err error)
	// Get returns the statistic, or a zero-valued one with found=false when
	// nothing has interacted with the content yet.
	Get(ctx context.Context, contentID int64) (stat Statistic, found bool, err error)
	// ListLatest returns statistics ordered by content id descending,
	// resuming strictly below cursorID. A negative cursorID scans from the top.
	ListLatest(ctx context.Context, cursorID int64, limit int) ([]Statistic, error)
	// Remove drops the statistic when the owning content is deleted.
	// Removing an absent statistic is not an error.
	Remove(ctx context.Context, contentID int64) error
}
