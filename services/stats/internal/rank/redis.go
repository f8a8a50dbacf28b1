package rank

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisIndex stores the ranking in a Redis sorted set (score = popularity,
// member = content id). ZADD gives idempotent upserts and atomic moves.
//
// Members are zero-padded to fixed width so Redis's reverse-lexicographic
// tie order inside an equal-score bucket matches content id descending.
type RedisIndex struct {
	client *redis.Client
	key    string
}

func NewRedisIndex(url, key string) (*RedisIndex, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(key) == "" {
		key = "stats:rank"
	}
	return &RedisIndex{client: redis.NewClient(opt), key: key}, nil
}

func (x *RedisIndex) Ping(ctx context.Context) error {
	return x.client.Ping(ctx).Err()
}

func member(id int64) string {
	return fmt.Sprintf("%019d", id)
}

func parseMember(m string) int64 {
	n, _ := strconv.ParseInt(m, 10, 64)
	return n
}

func formatScore(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

func (x *RedisIndex) Upsert(ctx context.Context, contentID int64, score float64) error {
	return x.client.ZAdd(ctx, x.key, redis.Z{Score: score, Member: member(contentID)}).Err()
}

func (x *RedisIndex) Remove(ctx context.Context, contentID int64) error {
	return x.client.ZRem(ctx, x.key, member(contentID)).Err()
}

func (x *RedisIndex) RangeFromCursor(ctx context.Context, cursorID int64, limit int) ([]int64, error) {
	if cursorID < 0 {
		ms, err := x.client.ZRevRange(ctx, x.key, 0, int64(limit-1)).Result()
		if err != nil {
			return nil, err
		}
		out := make([]int64, 0, len(ms))
		for _, m := range ms {
			out = append(out, parseMember(m))
		}
		return out, nil
	}

	sc, err := x.client.ZScore(ctx, x.key, member(cursorID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCursorNotFound
		}
		return nil, err
	}

	out := make([]int64, 0, limit)

	// Remainder of the cursor's equal-score bucket. The whole bucket is
	// fetched; score collisions cluster at low interaction counts where
	// buckets stay small.
	bucket, err := x.client.ZRevRangeByScore(ctx, x.key, &redis.ZRangeBy{
		Min: formatScore(sc),
		Max: formatScore(sc),
	}).Result()
	if err != nil {
		return nil, err
	}
	cur := member(cursorID)
	for _, m := range bucket {
		if m < cur {
			out = append(out, parseMember(m))
			if len(out) == limit {
				return out, nil
			}
		}
	}

	rest, err := x.client.ZRevRangeByScore(ctx, x.key, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    "(" + formatScore(sc),
		Offset: 0,
		Count:  int64(limit - len(out)),
	}).Result()
	if err != nil {
		return nil, err
	}
	for _, m := range rest {
		out = append(out, parseMember(m))
	}
	return out, nil
}
