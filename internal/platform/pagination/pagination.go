// Package pagination implements over-fetch-by-one cursor pagination shared
// by every listed read path (ranked feeds, chronological histories).
//
// Callers fetch pageSize+1 items in their established order and hand the
// result to Paginate, which trims the probe item and derives the
// continuation cursor. A cursor is the id of the last item on the page;
// NoCursor means there is nothing further to fetch.
package pagination

// NoCursor is the sentinel cursor returned on the final page and accepted
// by read paths to mean "start from the top".
const NoCursor int64 = -1

// Page is one page of an ordered scan. Immutable once returned.
type Page[T any] struct {
	Data       []T   `json:"data"`
	NextCursor int64 `json:"next_cursor"`
	HasNext    bool  `json:"has_next"`
}

// Paginate shapes an over-fetched ordered slice into a page.
// items must hold at most pageSize+1 elements in final order; id extracts
// the cursor identity of an item. Pure and safe for concurrent use.
func Paginate[T any](items []T, pageSize int, id func(T) int64) Page[T] {
	if pageSize < 1 {
		pageSize = 1
	}
	if len(items) > pageSize {
		data := items[:pageSize:pageSize]
		return Page[T]{
			Data:       data,
			NextCursor: id(data[pageSize-1]),
			HasNext:    true,
		}
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Data:       items,
		NextCursor: NoCursor,
		HasNext:    false,
	}
}
