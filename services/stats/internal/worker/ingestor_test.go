package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/example/readinglog-platform/services/stats/internal/events"
	"github.com/example/readinglog-platform/services/stats/internal/idempotency"
	"github.com/example/readinglog-platform/services/stats/internal/rank"
	"github.com/example/readinglog-platform/services/stats/internal/score"
	"github.com/example/readinglog-platform/services/stats/internal/store"
)

func newTestIngestor(t *testing.T) (*Ingestor, *store.InMemoryStatStore, *rank.InMemoryIndex) {
	t.Helper()
	st := store.NewInMemoryStatStore(score.NewEngine(score.Weights{View: 1, Like: 3, Comment: 2}))
	idx := rank.NewInMemoryIndex()
	dedup, err := idempotency.NewStore("", "", 0, false)
	if err != nil {
		t.Fatalf("dedup store: %v", err)
	}
	return &Ingestor{Log: zap.NewNop(), Store: st, Rank: idx, Dedup: dedup}, st, idx
}

func payload(t *testing.T, ev events.InteractionEvent) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestProcess_LikeUpdatesCountersAndRank(t *testing.T) {
	ing, st, idx := newTestIngestor(t)
	ctx := context.Background()

	ev := events.InteractionEvent{EventID: "e1", ContentID: 7, ActorID: "u1", OwnerID: "u2", Delta: 1}
	if err := ing.Process(ctx, events.SubjectLike, payload(t, ev)); err != nil {
		t.Fatalf("process: %v", err)
	}

	stat, found, _ := st.Get(ctx, 7)
	if !found || stat.LikeCount != 1 {
		t.Fatalf("expected like count 1, got found=%v %+v", found, stat)
	}
	if stat.PopularityScore != 3 {
		t.Fatalf("expected score 3 from like weight, got %f", stat.PopularityScore)
	}

	ids, err := idx.RangeFromCursor(ctx, -1, 10)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(ids) != 1 || ids[0] != 7 {
		t.Fatalf("expected content 7 ranked, got %v", ids)
	}
}

func TestProcess_UnlikeRestoresOriginalScore(t *testing.T) {
	ing, st, _ := newTestIngestor(t)
	ctx := context.Background()

	like := events.InteractionEvent{EventID: "e1", ContentID: 7, ActorID: "u1", Delta: 1}
	unlike := events.InteractionEvent{EventID: "e2", ContentID: 7, ActorID: "u1", Delta: -1}

	if err := ing.Process(ctx, events.SubjectLike, payload(t, like)); err != nil {
		t.Fatalf("like: %v", err)
	}
	if err := ing.Process(ctx, events.SubjectLike, payload(t, unlike)); err != nil {
		t.Fatalf("unlike: %v", err)
	}

	stat, _, _ := st.Get(ctx, 7)
	if stat.LikeCount != 0 || stat.PopularityScore != 0 {
		t.Fatalf("expected counters restored, got %+v", stat)
	}
}

func TestProcess_DuplicateDeliverySkipped(t *testing.T) {
	ing, st, _ := newTestIngestor(t)
	ctx := context.Background()

	ev := events.InteractionEvent{EventID: "e1", ContentID: 7, ActorID: "u1", Delta: 1}
	for i := 0; i < 3; i++ {
		if err := ing.Process(ctx, events.SubjectLike, payload(t, ev)); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}

	stat, _, _ := st.Get(ctx, 7)
	if stat.LikeCount != 1 {
		t.Fatalf("expected redeliveries deduplicated to 1 like, got %d", stat.LikeCount)
	}
}

func TestProcess_InvalidEvents(t *testing.T) {
	ing, _, _ := newTestIngestor(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		subject string
		data    []byte
	}{
		{"unknown subject", "interactions.share", payload(t, events.InteractionEvent{EventID: "e1", ContentID: 1, ActorID: "u", Delta: 1})},
		{"garbage payload", events.SubjectLike, []byte("{not json")},
		{"missing content id", events.SubjectLike, payload(t, events.InteractionEvent{EventID: "e2", ActorID: "u", Delta: 1})},
		{"missing actor", events.SubjectLike, payload(t, events.InteractionEvent{EventID: "e3", ContentID: 1, Delta: 1})},
		{"zero delta", events.SubjectView, payload(t, events.InteractionEvent{EventID: "e4", ContentID: 1, ActorID: "u"})},
		{"bulk like delta", events.SubjectLike, payload(t, events.InteractionEvent{EventID: "e5", ContentID: 1, ActorID: "u", Delta: -3})},
	}
	for _, tc := range cases {
		err := ing.Process(ctx, tc.subject, tc.data)
		if !errors.Is(err, ErrInvalidEvent) {
			t.Fatalf("%s: expected ErrInvalidEvent, got %v", tc.name, err)
		}
	}
}

type failingIndex struct{}

func (failingIndex) Upsert(context.Context, int64, float64) error {
	return errors.New("index unavailable")
}
func (failingIndex) Remove(context.Context, int64) error { return nil }
func (failingIndex) RangeFromCursor(context.Context, int64, int) ([]int64, error) {
	return nil, errors.New("index unavailable")
}

// A rank index failure must not fail the event or block the counters.
func TestProcess_RankFailureIsolated(t *testing.T) {
	st := store.NewInMemoryStatStore(score.NewEngine(score.DefaultWeights()))
	ing := &Ingestor{Log: zap.NewNop(), Store: st, Rank: failingIndex{}}
	ctx := context.Background()

	ev := events.InteractionEvent{EventID: "e1", ContentID: 7, ActorID: "u1", Delta: 1}
	if err := ing.Process(ctx, events.SubjectComment, payload(t, ev)); err != nil {
		t.Fatalf("expected rank failure swallowed, got %v", err)
	}

	stat, _, _ := st.Get(ctx, 7)
	if stat.CommentCount != 1 {
		t.Fatalf("expected counter applied despite rank failure, got %+v", stat)
	}
}

// One failing event kind must not corrupt processing of another.
func TestProcess_HandlerIsolation(t *testing.T) {
	ing, st, _ := newTestIngestor(t)
	ctx := context.Background()

	bad := events.InteractionEvent{EventID: "e1", ActorID: "u", Delta: 1} // missing content id
	good := events.InteractionEvent{EventID: "e2", ContentID: 3, ActorID: "u", Delta: 1}

	if err := ing.Process(ctx, events.SubjectLike, payload(t, bad)); err == nil {
		t.Fatal("expected failure for bad event")
	}
	if err := ing.Process(ctx, events.SubjectComment, payload(t, good)); err != nil {
		t.Fatalf("good event blocked by bad one: %v", err)
	}

	stat, _, _ := st.Get(ctx, 3)
	if stat.CommentCount != 1 {
		t.Fatalf("expected comment applied, got %+v", stat)
	}
}

func TestProcess_ClampLoggedNotFailed(t *testing.T) {
	ing, st, _ := newTestIngestor(t)
	ctx := context.Background()

	// Delete event arrives before (or instead of) its create: clamp, not error.
	ev := events.InteractionEvent{EventID: "e1", ContentID: 7, ActorID: "u1", Delta: -1}
	if err := ing.Process(ctx, events.SubjectLike, payload(t, ev)); err != nil {
		t.Fatalf("expected clamp to be tolerated, got %v", err)
	}

	stat, _, _ := st.Get(ctx, 7)
	if stat.LikeCount != 0 {
		t.Fatalf("expected like count clamped to 0, got %d", stat.LikeCount)
	}
}

// flakyStore fails the first ApplyDelta and delegates afterwards, the way
// a store does across a transient outage.
type flakyStore struct {
	store.StatStore
	failures int
}

func (f *flakyStore) ApplyDelta(ctx context.Context, contentID int64, kind store.Kind, delta int64) (store.Statistic, bool, error) {
	if f.failures > 0 {
		f.failures--
		return store.Statistic{}, false, errors.New("store unavailable")
	}
	return f.StatStore.ApplyDelta(ctx, contentID, kind, delta)
}

// A transient store failure must leave the event retriable: the dedup mark
// taken before ApplyDelta is released, so the redelivery applies the delta
// instead of being skipped as a duplicate.
func TestProcess_TransientStoreFailureRetriable(t *testing.T) {
	mem := store.NewInMemoryStatStore(score.NewEngine(score.DefaultWeights()))
	flaky := &flakyStore{StatStore: mem, failures: 1}
	dedup, err := idempotency.NewStore("", "", 0, false)
	if err != nil {
		t.Fatalf("dedup store: %v", err)
	}
	ing := &Ingestor{Log: zap.NewNop(), Store: flaky, Rank: rank.NewInMemoryIndex(), Dedup: dedup}
	ctx := context.Background()

	ev := events.InteractionEvent{EventID: "e1", ContentID: 7, ActorID: "u1", Delta: 1}

	if err := ing.Process(ctx, events.SubjectLike, payload(t, ev)); err == nil {
		t.Fatal("expected transient failure on first delivery")
	}
	if err := ing.Process(ctx, events.SubjectLike, payload(t, ev)); err != nil {
		t.Fatalf("redelivery: %v", err)
	}

	stat, _, _ := mem.Get(ctx, 7)
	if stat.LikeCount != 1 {
		t.Fatalf("counter update lost across retry: like count = %d, want 1", stat.LikeCount)
	}

	// The mark survives the successful delivery: a third copy is a duplicate.
	if err := ing.Process(ctx, events.SubjectLike, payload(t, ev)); err != nil {
		t.Fatalf("third delivery: %v", err)
	}
	stat, _, _ = mem.Get(ctx, 7)
	if stat.LikeCount != 1 {
		t.Fatalf("duplicate applied after retry: like count = %d, want 1", stat.LikeCount)
	}
}

func TestProcess_DedupDisabled(t *testing.T) {
	st := store.NewInMemoryStatStore(score.NewEngine(score.DefaultWeights()))
	ing := &Ingestor{Log: zap.NewNop(), Store: st, Rank: rank.NewInMemoryIndex()}
	ctx := context.Background()

	ev := events.InteractionEvent{EventID: "e1", ContentID: 7, ActorID: "u1", Delta: 1}
	_ = ing.Process(ctx, events.SubjectLike, payload(t, ev))
	_ = ing.Process(ctx, events.SubjectLike, payload(t, ev))

	stat, _, _ := st.Get(ctx, 7)
	if stat.LikeCount != 2 {
		t.Fatalf("without dedup both deliveries apply, expected 2, got %d", stat.LikeCount)
	}
}
