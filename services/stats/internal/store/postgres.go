package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/readinglog-platform/services/stats/internal/score"
)

// PostgresStatStore persists statistics in Postgres.
//
// Expected table:
//
//	CREATE TABLE content_statistics (
//	    content_id       BIGINT PRIMARY KEY,
//	    view_count       BIGINT NOT NULL DEFAULT 0,
//	    like_count       BIGINT NOT NULL DEFAULT 0,
//	    comment_count    BIGINT NOT NULL DEFAULT 0,
//	    popularity_score DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PostgresStatStore struct {
	pool    *pgxpool.Pool
	weights score.Weights
}

func NewPostgresStatStore(pool *pgxpool.Pool, w score.Weights) *PostgresStatStore {
	if w.View == 0 && w.Like == 0 && w.Comment == 0 {
		w = score.DefaultWeights()
	}
	return &PostgresStatStore{pool: pool, weights: w}
}

// ApplyDelta routes the delta to one counter column and recomputes the score
// from the new counter values in the same statement. The row-level lock taken
// by ON CONFLICT DO UPDATE serializes concurrent deltas for one contentID;
// different contentIDs touch different rows and proceed in parallel.
func (s *PostgresStatStore) ApplyDelta(ctx context.Context, contentID int64, kind Kind, delta int64) (Statistic, bool, error) {
	if !kind.Valid() {
		return Statistic{}, false, ErrUnknownKind
	}

	var dView, dLike, dComment int64
	switch kind {
	case KindView:
		dView = delta
	case KindLike:
		dLike = delta
	case KindComment:
		dComment = delta
	}

	const q = `INSERT INTO content_statistics AS cs
	             (content_id, view_count, like_count, comment_count, popularity_score)
	           VALUES ($1, GREATEST($2, 0), GREATEST($3, 0), GREATEST($4, 0),
	                   $5 * GREATEST($2, 0) + $6 * GREATEST($3, 0) + $7 * GREATEST($4, 0))
	           ON CONFLICT (content_id) DO UPDATE SET
	             view_count       = GREATEST(cs.view_count + $2, 0),
	             like_count       = GREATEST(cs.like_count + $3, 0),
	             comment_count    = GREATEST(cs.comment_count + $4, 0),
	             popularity_score = $5 * GREATEST(cs.view_count + $2, 0)
	                              + $6 * GREATEST(cs.like_count + $3, 0)
	                              + $7 * GREATEST(cs.comment_count + $4, 0),
	             updated_at       = now()
	           RETURNING view_count, like_count, comment_count, popularity_score`

	st := Statistic{ContentID: contentID}
	err := s.pool.QueryRow(ctx, q, contentID, dView, dLike, dComment,
		s.weights.View, s.weights.Like, s.weights.Comment).
		Scan(&st.ViewCount, &st.LikeCount, &st.CommentCount, &st.PopularityScore)
	if err != nil {
		return Statistic{}, false, err
	}

	// A decrement that landed on zero most likely crossed it; the exact
	// pre-image is not visible after the upsert, so this may also fire when
	// the decrement hit zero precisely. Good enough as an operator signal.
	clamped := delta < 0 && counterFor(st, kind) == 0
	return st, clamped, nil
}

func counterFor(st Statistic, kind Kind) int64 {
	switch kind {
	case KindView:
		return st.ViewCount
	case KindLike:
		return st.LikeCount
	case KindComment:
		return st.CommentCount
	}
	return 0
}

func (s *PostgresStatStore) Get(ctx context.Context, contentID int64) (Statistic, bool, error) {
	const q = `SELECT view_count, like_count, comment_count, popularity_score
	           FROM content_statistics WHERE content_id = $1`

	st := Statistic{ContentID: contentID}
	err := s.pool.QueryRow(ctx, q, contentID).
		Scan(&st.ViewCount, &st.LikeCount, &st.CommentCount, &st.PopularityScore)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Statistic{ContentID: contentID}, false, nil
		}
		return Statistic{}, false, err
	}
	return st, true, nil
}

func (s *PostgresStatStore) ListLatest(ctx context.Context, cursorID int64, limit int) ([]Statistic, error) {
	const q = `SELECT content_id, view_count, like_count, comment_count, popularity_score
	           FROM content_statistics
	           WHERE $1::bigint < 0 OR content_id < $1
	           ORDER BY content_id DESC
	           LIMIT $2`

	rows, err := s.pool.Query(ctx, q, cursorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Statistic, 0, limit)
	for rows.Next() {
		var st Statistic
		if err := rows.Scan(&st.ContentID, &st.ViewCount, &st.LikeCount, &st.CommentCount, &st.PopularityScore); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PostgresStatStore) Remove(ctx context.Context, contentID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM content_statistics WHERE content_id = $1`, contentID)
	return err
}
