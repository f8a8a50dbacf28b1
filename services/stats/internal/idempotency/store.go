// Package idempotency deduplicates interaction event delivery ids.
//
// The event transport guarantees at-least-once delivery, and counter
// deltas are not naturally idempotent: a redelivered +1 double-counts.
// This layer makes the ingestion path effectively exactly-once.
//
// Primary backend: Redis SETNX with TTL (env REDIS_URL).
// Fallback: Postgres INSERT ... ON CONFLICT (env DATABASE_URL).
// If neither is available, an in-memory store is used (development only).
package idempotency

import (
	"context"
	"errors"
	"time"
)

// Store checks whether an event has already been processed and marks it.
type Store interface {
	// Check returns true if eventID was already processed.
	// If not seen, it atomically marks it as processed.
	Check(ctx context.Context, eventID string) (duplicate bool, err error)
	// Forget releases the mark taken by Check so a redelivery of the
	// event is processed again. Called when the work guarded by the mark
	// failed and the transport will retry. Forgetting an unknown id is
	// not an error.
	Forget(ctx context.Context, eventID string) error
}

// NewStore creates the best available idempotency store:
// Redis > Postgres > in-memory (dev fallback).
// When isProd is true, in-memory fallback is not allowed and the function
// returns nil with an error.
func NewStore(redisURL, databaseURL string, ttl time.Duration, isProd bool) (Store, error) {
	if redisURL != "" {
		return newRedisStore(redisURL, ttl), nil
	}
	if databaseURL != "" {
		return newPostgresStore(databaseURL), nil
	}
	if isProd {
		return nil, errors.New("production requires REDIS_URL or DATABASE_URL for idempotency; in-memory store is not allowed")
	}
	return newMemoryStore(), nil
}
