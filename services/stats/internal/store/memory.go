package store

import (
	"context"
	"sort"
	"sync"
)

// InMemoryStatStore keeps counters in process memory. Used in development
// and in tests; production uses PostgresStatStore.
//
// Each contentID owns one entry with its own mutex: mutations against the
// same content are serialized, mutations against different contents run
// fully in parallel. Entry creation goes through sync.Map.LoadOrStore so
// concurrent first-writers for the same contentID never race into
// duplicate entries.
type InMemoryStatStore struct {
	scorer  Scorer
	entries sync.Map // int64 -> *statEntry
}

type statEntry struct {
	mu   sync.Mutex
	stat Statistic
}

func NewInMemoryStatStore(scorer Scorer) *InMemoryStatStore {
	return &InMemoryStatStore{scorer: scorer}
}

func (s *InMemoryStatStore) ApplyDelta(_ context.Context, contentID int64, kind Kind, delta int64) (Statistic, bool, error) {
	if !kind.Valid() {
		return Statistic{}, false, ErrUnknownKind
	}

	v, _ := s.entries.LoadOrStore(contentID, &statEntry{stat: Statistic{ContentID: contentID}})
	e := v.(*statEntry)

	e.mu.Lock()
	defer e.mu.Unlock()

	var target *int64
	switch kind {
	case KindView:
		target = &e.stat.ViewCount
	case KindLike:
		target = &e.stat.LikeCount
	case KindComment:
		target = &e.stat.CommentCount
	}

	next := *target + delta
	clamped := next < 0
	if clamped {
		next = 0
	}
	*target = next
	e.stat.PopularityScore = s.scorer.Score(e.stat.ViewCount, e.stat.LikeCount, e.stat.CommentCount)
	return e.stat, clamped, nil
}

func (s *InMemoryStatStore) Get(_ context.Context, contentID int64) (Statistic, bool, error) {
	v, ok := s.entries.Load(contentID)
	if !ok {
		return Statistic{ContentID: contentID}, false, nil
	}
	e := v.(*statEntry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stat, true, nil
}

func (s *InMemoryStatStore) ListLatest(_ context.Context, cursorID int64, limit int) ([]Statistic, error) {
	if limit <= 0 {
		return []Statistic{}, nil
	}

	var all []Statistic
	s.entries.Range(func(_, v any) bool {
		e := v.(*statEntry)
		e.mu.Lock()
		st := e.stat
		e.mu.Unlock()
		if cursorID < 0 || st.ContentID < cursorID {
			all = append(all, st)
		}
		return true
	})

	sort.Slice(all, func(i, j int) bool { return all[i].ContentID > all[j].ContentID })
	if len(all) > limit {
		all = all[:limit]
	}
	if all == nil {
		all = []Statistic{}
	}
	return all, nil
}

func (s *InMemoryStatStore) Remove(_ context.Context, contentID int64) error {
	s.entries.Delete(contentID)
	return nil
}
