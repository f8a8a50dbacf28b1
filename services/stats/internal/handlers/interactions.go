package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/example/readinglog-platform/internal/platform/api"
	"github.com/example/readinglog-platform/services/stats/internal/events"
	"github.com/example/readinglog-platform/services/stats/internal/store"
)

type interactionRequest struct {
	Kind      string `json:"kind"`
	ContentID int64  `json:"content_id"`
	ActorID   string `json:"actor_id"`
	OwnerID   string `json:"owner_id,omitempty"`
	ParentID  *int64 `json:"parent_id,omitempty"`
	Delta     int64  `json:"delta"`
}

// PostInteraction handles POST /internal/v1/interactions.
// Ingress for producer services that have no broker credentials of their
// own: the event is validated and handed to JetStream, then flows through
// the same consumer path as directly published interactions. Requires a
// service token. Accepted means enqueued, not applied.
func PostInteraction(pub *events.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req interactionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_BODY", "request body must be valid JSON", "", nil)
			return
		}

		kind := store.Kind(strings.ToLower(strings.TrimSpace(req.Kind)))
		if !kind.Valid() {
			api.BadRequest(w, "INVALID_KIND", "kind must be view, like or comment", "", nil)
			return
		}

		ev := events.InteractionEvent{
			ContentID: req.ContentID,
			ActorID:   req.ActorID,
			OwnerID:   req.OwnerID,
			ParentID:  req.ParentID,
			Delta:     req.Delta,
		}
		if err := ev.Validate(kind); err != nil {
			api.BadRequest(w, "INVALID_EVENT", err.Error(), "", nil)
			return
		}

		pub.Publish(events.Subject(kind), ev)
		log.Debug("interaction accepted",
			zap.String("kind", string(kind)),
			zap.Int64("content_id", req.ContentID),
			zap.Int64("delta", req.Delta))
		w.WriteHeader(http.StatusAccepted)
	}
}
