package idempotency

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresStore struct {
	dsn string

	// pool is initialised on first use; the Once makes the lazy open safe
	// when several goroutines share the store.
	once    sync.Once
	pool    *pgxpool.Pool
	poolErr error
}

func newPostgresStore(dsn string) *postgresStore {
	return &postgresStore{dsn: dsn}
}

func (s *postgresStore) ensurePool(ctx context.Context) error {
	s.once.Do(func() {
		s.pool, s.poolErr = pgxpool.New(ctx, s.dsn)
	})
	return s.poolErr
}

// Check uses INSERT ... ON CONFLICT to atomically deduplicate.
// Table `processed_interactions` must exist:
//
//	CREATE TABLE processed_interactions (
//	    event_id   TEXT PRIMARY KEY,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
func (s *postgresStore) Check(ctx context.Context, eventID string) (bool, error) {
	if err := s.ensurePool(ctx); err != nil {
		return false, err
	}

	const q = `INSERT INTO processed_interactions (event_id, created_at)
	           VALUES ($1, now())
	           ON CONFLICT (event_id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, q, eventID)
	if err != nil {
		return false, err
	}
	// RowsAffected == 0 means the row already existed (duplicate).
	return tag.RowsAffected() == 0, nil
}

func (s *postgresStore) Forget(ctx context.Context, eventID string) error {
	if err := s.ensurePool(ctx); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM processed_interactions WHERE event_id = $1`, eventID)
	return err
}
