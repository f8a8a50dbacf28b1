package worker

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/readinglog-platform/services/stats/internal/events"
)

// deliveryAction is the disposition of one delivered message.
type deliveryAction int

const (
	deliveryAck deliveryAction = iota
	deliveryTerm
	deliveryNak
)

// disposition maps a processing result to the delivery action:
//   - success        -> Ack
//   - invalid shape  -> Term (a malformed event will not become valid on retry)
//   - transient      -> Nak, until the delivery budget is exhausted, then
//     the update is dropped with Term (tolerated data loss)
func disposition(err error, delivered uint64, maxDeliver int) deliveryAction {
	switch {
	case err == nil:
		return deliveryAck
	case errors.Is(err, ErrInvalidEvent):
		return deliveryTerm
	case delivered >= uint64(maxDeliver):
		return deliveryTerm
	default:
		return deliveryNak
	}
}

// StartStatsConsumer subscribes to interactions.* and feeds each message
// through the Ingestor. Fire-and-forget: the service that emitted the
// event has long since answered its request, so failures are logged, not
// surfaced.
func StartStatsConsumer(ctx context.Context, nc *nats.Conn, ing *Ingestor) {
	log := ing.Log

	js, err := nc.JetStream()
	if err != nil {
		log.Error("stats_consumer: jetstream", zap.Error(err))
		return
	}

	sub, err := js.PullSubscribe(events.SubjectPrefix+"*", "stats_interactions")
	if err != nil {
		log.Error("stats_consumer: subscribe", zap.Error(err))
		return
	}

	go func() {
		batchSize := envInt("WORKER_BATCH_SIZE", 100)
		batchInterval := envInt("WORKER_BATCH_INTERVAL_MS", 2000)
		maxDeliver := envInt("WORKER_MAX_DELIVER", 5)

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msgs, err := sub.Fetch(batchSize, nats.MaxWait(time.Duration(batchInterval)*time.Millisecond))
			if err != nil {
				if errors.Is(err, nats.ErrTimeout) {
					continue
				}
				log.Warn("stats_consumer: fetch", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}

			for _, m := range msgs {
				procErr := ing.Process(ctx, m.Subject, m.Data)

				var delivered uint64
				if meta, metaErr := m.Metadata(); metaErr == nil {
					delivered = meta.NumDelivered
				}

				switch disposition(procErr, delivered, maxDeliver) {
				case deliveryAck:
					if err := m.Ack(); err != nil {
						log.Warn("stats_consumer: ack", zap.Error(err))
					}
				case deliveryTerm:
					if errors.Is(procErr, ErrInvalidEvent) {
						log.Warn("stats_consumer: dropping malformed event",
							zap.String("subject", m.Subject), zap.Error(procErr))
					} else {
						log.Error("stats_consumer: retry budget exhausted, dropping update",
							zap.String("subject", m.Subject),
							zap.Uint64("deliveries", delivered),
							zap.Error(procErr))
					}
					if err := m.Term(); err != nil {
						log.Warn("stats_consumer: term", zap.Error(err))
					}
				case deliveryNak:
					log.Warn("stats_consumer: transient failure, redelivering",
						zap.String("subject", m.Subject), zap.Error(procErr))
					if err := m.Nak(); err != nil {
						log.Warn("stats_consumer: nak", zap.Error(err))
					}
				}
			}
		}
	}()
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
