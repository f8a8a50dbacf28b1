package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/readinglog-platform/services/stats/internal/events"
	"github.com/example/readinglog-platform/services/stats/internal/idempotency"
	"github.com/example/readinglog-platform/services/stats/internal/rank"
	"github.com/example/readinglog-platform/services/stats/internal/store"
)

// ErrInvalidEvent marks events that can never succeed: the consumer drops
// them instead of redelivering.
var ErrInvalidEvent = errors.New("invalid interaction event")

// Ingestor applies one interaction event to the statistics core:
// counter delta, score recompute, rank index update.
//
// Events are processed independently; a failure for one event never blocks
// or corrupts processing of another. The Dedup store, when configured,
// absorbs redeliveries from the at-least-once transport.
type Ingestor struct {
	Log   *zap.Logger
	Store store.StatStore
	Rank  rank.Index
	Dedup idempotency.Store // nil disables deduplication
}

// Process handles a single event payload from the given subject.
// Errors wrapping ErrInvalidEvent are permanent; anything else is a
// transient failure the caller may retry.
func (g *Ingestor) Process(ctx context.Context, subject string, data []byte) error {
	kind, ok := events.KindFromSubject(subject)
	if !ok {
		return fmt.Errorf("%w: unknown subject %q", ErrInvalidEvent, subject)
	}

	var ev events.InteractionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := ev.Validate(kind); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	marked := false
	if g.Dedup != nil && ev.EventID != "" {
		dup, err := g.Dedup.Check(ctx, ev.EventID)
		if err != nil {
			return fmt.Errorf("idempotency check: %w", err)
		}
		if dup {
			g.Log.Debug("duplicate event skipped",
				zap.String("event_id", ev.EventID),
				zap.Int64("content_id", ev.ContentID))
			return nil
		}
		marked = true
	}

	stat, clamped, err := g.Store.ApplyDelta(ctx, ev.ContentID, kind, ev.Delta)
	if err != nil {
		// Release the dedup mark so the redelivery is not mistaken for a
		// duplicate; without this a transient store failure would lose
		// the delta on the first attempt instead of after the retry budget.
		if marked {
			if ferr := g.Dedup.Forget(ctx, ev.EventID); ferr != nil {
				g.Log.Error("dedup unmark failed, redelivery will be dropped",
					zap.String("event_id", ev.EventID),
					zap.Error(ferr))
			}
		}
		return fmt.Errorf("apply delta: %w", err)
	}
	if clamped {
		// Signals duplicate or out-of-order delete events upstream.
		g.Log.Warn("counter clamped at zero",
			zap.Int64("content_id", ev.ContentID),
			zap.String("kind", string(kind)),
			zap.Int64("delta", ev.Delta))
	}

	// The counters are the source of truth; a failed rank update is logged
	// and dropped rather than retried, since a retry would re-apply the
	// delta past the dedup mark. The next event for this content carries a
	// fresh score and heals the index.
	if err := g.Rank.Upsert(ctx, ev.ContentID, stat.PopularityScore); err != nil {
		g.Log.Error("rank index update dropped",
			zap.Int64("content_id", ev.ContentID),
			zap.Float64("score", stat.PopularityScore),
			zap.Error(err))
	}
	return nil
}
