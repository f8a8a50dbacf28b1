package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/example/readinglog-platform/internal/platform/api"
	"github.com/example/readinglog-platform/internal/platform/pagination"
	"github.com/example/readinglog-platform/services/stats/internal/rank"
	"github.com/example/readinglog-platform/services/stats/internal/store"
)

// Sort modes for the ranked feed.
const (
	SortPopular = "popular"
	SortLatest  = "latest"
)

type feedResponse struct {
	Sort       string  `json:"sort"`
	Data       []int64 `json:"data"`
	NextCursor int64   `json:"next_cursor"`
	HasNext    bool    `json:"has_next"`
}

// GetFeed handles GET /v1/feed?sort=popular|latest&limit=&cursor=
//
// popular scans the rank index; if the index is unavailable the read
// degrades to the latest ordering instead of failing the request.
func GetFeed(st store.StatStore, idx rank.Index, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sortMode := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("sort")))
		if sortMode != SortLatest {
			sortMode = SortPopular
		}

		limit := 20
		if l := r.URL.Query().Get("limit"); l != "" {
			if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
				if parsed > 100 {
					parsed = 100
				}
				limit = parsed
			}
		}

		cursor := pagination.NoCursor
		if c := strings.TrimSpace(r.URL.Query().Get("cursor")); c != "" {
			parsed, err := strconv.ParseInt(c, 10, 64)
			if err != nil {
				api.BadRequest(w, "INVALID_CURSOR", "cursor must be a content id", "", nil)
				return
			}
			cursor = parsed
		}

		var ids []int64
		if sortMode == SortPopular {
			ranked, err := idx.RangeFromCursor(r.Context(), cursor, limit+1)
			switch {
			case err == nil:
				ids = ranked
			case errors.Is(err, rank.ErrCursorNotFound):
				api.BadRequest(w, "INVALID_CURSOR", "cursor no longer exists", "", nil)
				return
			default:
				// Availability over freshness: fall back to the latest ordering.
				log.Warn("rank index unavailable, degrading to latest", zap.Error(err))
				sortMode = SortLatest
			}
		}

		if sortMode == SortLatest {
			stats, err := st.ListLatest(r.Context(), cursor, limit+1)
			if err != nil {
				log.Error("list latest", zap.Error(err))
				api.Internal(w, "")
				return
			}
			ids = make([]int64, len(stats))
			for i, s := range stats {
				ids[i] = s.ContentID
			}
		}

		page := pagination.Paginate(ids, limit, func(id int64) int64 { return id })
		api.WriteJSON(w, http.StatusOK, feedResponse{
			Sort:       sortMode,
			Data:       page.Data,
			NextCursor: page.NextCursor,
			HasNext:    page.HasNext,
		})
	}
}
