package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/readinglog-platform/internal/platform/api"
	"github.com/example/readinglog-platform/services/stats/internal/rank"
	"github.com/example/readinglog-platform/services/stats/internal/store"
)

func contentIDParam(r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "content_id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// GetStatistic handles GET /v1/stats/{content_id}.
// Content nobody has interacted with yet reports zero counters; the
// statistic record itself is created lazily by the first event.
func GetStatistic(st store.StatStore, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := contentIDParam(r)
		if !ok {
			api.BadRequest(w, "INVALID_ID", "content_id must be a positive integer", "", nil)
			return
		}

		stat, _, err := st.Get(r.Context(), id)
		if err != nil {
			log.Error("get statistic", zap.Int64("content_id", id), zap.Error(err))
			api.Internal(w, "")
			return
		}
		api.WriteJSON(w, http.StatusOK, stat)
	}
}

// DeleteStatistic handles DELETE /v1/stats/{content_id}.
// Called by the content service when the owning entry is deleted
// (cascade signal); requires a service token.
func DeleteStatistic(st store.StatStore, idx rank.Index, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := contentIDParam(r)
		if !ok {
			api.BadRequest(w, "INVALID_ID", "content_id must be a positive integer", "", nil)
			return
		}

		if err := st.Remove(r.Context(), id); err != nil {
			log.Error("remove statistic", zap.Int64("content_id", id), zap.Error(err))
			api.Internal(w, "")
			return
		}
		if err := idx.Remove(r.Context(), id); err != nil {
			log.Error("remove rank entry", zap.Int64("content_id", id), zap.Error(err))
			api.Internal(w, "")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
