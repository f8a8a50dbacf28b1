package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/readinglog-platform/internal/platform/auth"
	platformconfig "github.com/example/readinglog-platform/internal/platform/config"
	"github.com/example/readinglog-platform/internal/platform/db"
	"github.com/example/readinglog-platform/internal/platform/httpserver"
	"github.com/example/readinglog-platform/internal/platform/logging"
	"github.com/example/readinglog-platform/internal/platform/natsconn"
	"github.com/example/readinglog-platform/internal/platform/run"
	statsconfig "github.com/example/readinglog-platform/services/stats/internal/config"
	"github.com/example/readinglog-platform/services/stats/internal/events"
	"github.com/example/readinglog-platform/services/stats/internal/handlers"
	"github.com/example/readinglog-platform/services/stats/internal/idempotency"
	"github.com/example/readinglog-platform/services/stats/internal/outbox"
	"github.com/example/readinglog-platform/services/stats/internal/rank"
	"github.com/example/readinglog-platform/services/stats/internal/score"
	"github.com/example/readinglog-platform/services/stats/internal/store"
	"github.com/example/readinglog-platform/services/stats/internal/worker"
)

func main() {
	cfg, err := platformconfig.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	scfg := statsconfig.Load()
	engine := score.NewEngine(scfg.Weights)

	stats, pool, closePool := initStats(log, engine, scfg.Weights)
	if closePool != nil {
		defer closePool()
	}

	index := initRank(log, scfg)

	// NATS side is non-fatal: with no broker the read path keeps serving,
	// counters just stop advancing.
	nc, err := natsconn.Connect(natsconn.Options{})
	if err != nil {
		log.Error("nats connect", zap.Error(err))
		nc = nil
	}
	var js nats.JetStreamContext
	if nc != nil {
		if js, err = nc.JetStream(); err != nil {
			log.Error("jetstream context", zap.Error(err))
		}
	}
	pub := events.NewPublisher(js, log)

	verifier := auth.JWTVerifier{Secret: []byte(scfg.JWTSecret)}

	r := chi.NewRouter()
	httpserver.SetupRouter(r)
	r.Get("/v1/feed", handlers.GetFeed(stats, index, log))
	r.Get("/v1/stats/{content_id}", handlers.GetStatistic(stats, log))
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Use(auth.RequireService)
		r.Delete("/v1/stats/{content_id}", handlers.DeleteStatistic(stats, index, log))
		r.Post("/internal/v1/interactions", handlers.PostInteraction(pub, log))
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		if nc != nil {
			defer nc.Close()

			dedup := initDedup(log, scfg)
			ing := &worker.Ingestor{Log: log, Store: stats, Rank: index, Dedup: dedup}
			worker.StartStatsConsumer(ctx, nc, ing)

			if scfg.OutboxOn && pool != nil {
				relay, err := outbox.NewPublisher(log, pool, nc)
				if err != nil {
					log.Error("outbox init", zap.Error(err))
				} else {
					go func() {
						if err := relay.Run(ctx); err != nil {
							log.Error("outbox run", zap.Error(err))
						}
					}()
				}
			}
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initStats selects the StatStore backend. In production (APP_ENV=production)
// it requires a working Postgres connection and terminates the process otherwise.
func initStats(log *zap.Logger, engine *score.Engine, w score.Weights) (store.StatStore, *pgxpool.Pool, func()) {
	isProd := strings.EqualFold(strings.TrimSpace(os.Getenv("APP_ENV")), "production")

	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		if isProd {
			log.Error("DATABASE_URL is required in production")
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("DATABASE_URL not set, using in-memory stat store (development only)")
		return store.NewInMemoryStatStore(engine), nil, nil
	}

	pool, err := db.Open(context.Background())
	if err != nil {
		if isProd {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("postgres unavailable, falling back to in-memory stat store", zap.Error(err))
		return store.NewInMemoryStatStore(engine), nil, nil
	}

	log.Info("stat store: postgres")
	return store.NewPostgresStatStore(pool, w), pool, pool.Close
}

// initRank selects the rank index backend: Redis when configured and
// reachable, in-memory otherwise. The in-memory index rebuilds from
// incoming events; acceptable outside production.
func initRank(log *zap.Logger, scfg statsconfig.Config) rank.Index {
	isProd := strings.EqualFold(strings.TrimSpace(os.Getenv("APP_ENV")), "production")

	if scfg.RedisURL == "" {
		if isProd {
			log.Error("REDIS_URL is required in production for the rank index")
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("REDIS_URL not set, using in-memory rank index (development only)")
		return rank.NewInMemoryIndex()
	}

	idx, err := rank.NewRedisIndex(scfg.RedisURL, scfg.RankKey)
	if err == nil {
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		err = idx.Ping(pingCtx)
	}
	if err != nil {
		if isProd {
			log.Error("redis is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("redis unavailable, falling back to in-memory rank index", zap.Error(err))
		return rank.NewInMemoryIndex()
	}

	log.Info("rank index: redis", zap.String("key", scfg.RankKey))
	return idx
}

func initDedup(log *zap.Logger, scfg statsconfig.Config) idempotency.Store {
	isProd := strings.EqualFold(strings.TrimSpace(os.Getenv("APP_ENV")), "production")

	dedup, err := idempotency.NewStore(scfg.RedisURL, strings.TrimSpace(os.Getenv("DATABASE_URL")), scfg.DedupTTL, isProd)
	if err != nil {
		log.Error("idempotency store", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	return dedup
}
