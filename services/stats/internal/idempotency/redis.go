package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func newRedisStore(url string, ttl time.Duration) *redisStore {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	return &redisStore{
		client: redis.NewClient(opts),
		ttl:    ttl,
	}
}

func (s *redisStore) Check(ctx context.Context, eventID string) (bool, error) {
	set, err := s.client.SetNX(ctx, s.key(eventID), 1, s.ttl).Result()
	if err != nil {
		return false, err
	}
	// SetNX returns true if the key was SET (i.e. NOT a duplicate).
	return !set, nil
}

func (s *redisStore) Forget(ctx context.Context, eventID string) error {
	return s.client.Del(ctx, s.key(eventID)).Err()
}

func (s *redisStore) key(eventID string) string {
	return "stats:interaction:" + eventID
}
