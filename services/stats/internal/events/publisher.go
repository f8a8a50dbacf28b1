package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher publishes interaction events to NATS JetStream.
// The zero value and a nil pointer are both safe no-op stubs.
//
// Content services call Publish from their post-commit hooks
// (fire-and-forget); failures are logged and never surface to the request
// that triggered the interaction. Services that need a durability
// guarantee publish through the outbox instead.
type Publisher struct {
	js  nats.JetStreamContext
	log *zap.Logger
}

// NewPublisher creates a Publisher using an existing JetStream context.
// Pass js=nil to get a no-op stub (useful in tests and services without NATS).
func NewPublisher(js nats.JetStreamContext, log *zap.Logger) *Publisher {
	return &Publisher{js: js, log: log}
}

// Publish sends an interaction event asynchronously. Missing event id and
// timestamp are filled in.
func (p *Publisher) Publish(subject string, ev InteractionEvent) {
	if p == nil || p.js == nil {
		return
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.CreatedAt == "" {
		ev.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("events: marshal failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	if _, err := p.js.PublishAsync(subject, data); err != nil {
		p.log.Warn("events: publish failed", zap.String("subject", subject), zap.Error(err))
	}
}
