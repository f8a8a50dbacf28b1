// Package events defines the interaction event contract between the
// content services (diary, comments, likes) and the statistics core.
// Events are emitted only after the owning transaction commits and are
// delivered at least once; consumers must tolerate duplicates.
package events

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/readinglog-platform/services/stats/internal/store"
)

const (
	StreamName     = "INTERACTIONS"
	SubjectPrefix  = "interactions."
	SubjectView    = "interactions.view"
	SubjectLike    = "interactions.like"
	SubjectComment = "interactions.comment"
)

// InteractionEvent is the payload carried on every interactions.* subject.
// Delta is +1 for a creation, -1 for a removal, -N for a cascading delete
// of a comment subtree.
type InteractionEvent struct {
	EventID   string `json:"event_id"`
	ContentID int64  `json:"content_id"`
	ActorID   string `json:"actor_id"`
	OwnerID   string `json:"owner_id,omitempty"`
	ParentID  *int64 `json:"parent_id,omitempty"`
	Delta     int64  `json:"delta"`
	CreatedAt string `json:"created_at,omitempty"`
}

// KindFromSubject maps an interactions.* subject to its counter kind.
func KindFromSubject(subject string) (store.Kind, bool) {
	k := store.Kind(strings.TrimPrefix(subject, SubjectPrefix))
	return k, k.Valid() && strings.HasPrefix(subject, SubjectPrefix)
}

// Subject maps a counter kind back to its publish subject.
func Subject(kind store.Kind) string {
	return SubjectPrefix + string(kind)
}

var errInvalidShape = errors.New("invalid event shape")

// Validate checks the event shape for the given kind. A malformed event
// will not become valid on retry, so callers should drop it rather than
// redeliver.
func (e InteractionEvent) Validate(kind store.Kind) error {
	if e.ContentID <= 0 {
		return fmt.Errorf("%w: missing content_id", errInvalidShape)
	}
	if strings.TrimSpace(e.ActorID) == "" {
		return fmt.Errorf("%w: missing actor_id", errInvalidShape)
	}
	if e.Delta == 0 {
		return fmt.Errorf("%w: zero delta", errInvalidShape)
	}
	// A bulk delta only ever arises from a cascading comment-subtree
	// delete, so it must be negative and on the comment counter.
	if e.Delta > 1 {
		return fmt.Errorf("%w: bulk increment %d for %s", errInvalidShape, e.Delta, kind)
	}
	if e.Delta < -1 && kind != store.KindComment {
		return fmt.Errorf("%w: bulk delta only valid for comments, got %d for %s", errInvalidShape, e.Delta, kind)
	}
	return nil
}
