package rank

import (
	"context"
	"sort"
	"sync"
)

type entry struct {
	score float64
	id    int64
}

// before reports whether a ranks ahead of b: higher score first, higher
// content id first among equals.
func before(a, b entry) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.id > b.id
}

// InMemoryIndex keeps the ranking as a sorted slice guarded by one RWMutex.
// A score change removes and reinserts the entry inside a single write
// section, so a reader never observes the same content id twice or not at
// all during a move.
type InMemoryIndex struct {
	mu      sync.RWMutex
	ordered []entry
	byID    map[int64]float64
}

func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{byID: make(map[int64]float64)}
}

// position returns the index where e lives or would be inserted.
func (x *InMemoryIndex) position(e entry) int {
	return sort.Search(len(x.ordered), func(i int) bool {
		return !before(x.ordered[i], e)
	})
}

func (x *InMemoryIndex) Upsert(_ context.Context, contentID int64, score float64) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if old, ok := x.byID[contentID]; ok {
		if old == score {
			return nil
		}
		i := x.position(entry{score: old, id: contentID})
		x.ordered = append(x.ordered[:i], x.ordered[i+1:]...)
	}

	e := entry{score: score, id: contentID}
	i := x.position(e)
	x.ordered = append(x.ordered, entry{})
	copy(x.ordered[i+1:], x.ordered[i:])
	x.ordered[i] = e
	x.byID[contentID] = score
	return nil
}

func (x *InMemoryIndex) Remove(_ context.Context, contentID int64) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	old, ok := x.byID[contentID]
	if !ok {
		return nil
	}
	i := x.position(entry{score: old, id: contentID})
	x.ordered = append(x.ordered[:i], x.ordered[i+1:]...)
	delete(x.byID, contentID)
	return nil
}

func (x *InMemoryIndex) RangeFromCursor(_ context.Context, cursorID int64, limit int) ([]int64, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	start := 0
	if cursorID >= 0 {
		sc, ok := x.byID[cursorID]
		if !ok {
			return nil, ErrCursorNotFound
		}
		start = x.position(entry{score: sc, id: cursorID}) + 1
	}

	out := make([]int64, 0, limit)
	for i := start; i < len(x.ordered) && len(out) < limit; i++ {
		out = append(out, x.ordered[i].id)
	}
	return out, nil
}

// Len reports the number of ranked entries. Diagnostic use.
func (x *InMemoryIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ordered)
}
