package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/readinglog-platform/services/stats/internal/score"
)

// Config holds the stats-specific knobs on top of the platform config.
type Config struct {
	Weights   score.Weights
	RedisURL  string // empty disables the redis rank index and dedup
	RankKey   string
	DedupTTL  time.Duration
	OutboxOn  bool
	JWTSecret string
}

func Load() Config {
	return Config{
		Weights: score.Weights{
			View:    envFloat("WEIGHT_VIEW", 1),
			Like:    envFloat("WEIGHT_LIKE", 3),
			Comment: envFloat("WEIGHT_COMMENT", 2),
		},
		RedisURL:  strings.TrimSpace(os.Getenv("REDIS_URL")),
		RankKey:   envString("RANK_KEY", "stats:rank"),
		DedupTTL:  envDuration("DEDUP_TTL", 24*time.Hour),
		OutboxOn:  envBool("OUTBOX_ENABLED", true),
		JWTSecret: strings.TrimSpace(os.Getenv("JWT_SECRET")),
	}
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
