package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kvstore/fulltext/internal/analytics"
	"github.com/kvstore/fulltext/internal/analytics/aggregator"
	"github.com/kvstore/fulltext/internal/queryservice"
	"github.com/kvstore/fulltext/internal/substrate/rescache"
	"github.com/kvstore/fulltext/internal/substrate/shard"
	"github.com/kvstore/fulltext/pkg/config"
	"github.com/kvstore/fulltext/pkg/health"
	"github.com/kvstore/fulltext/pkg/kafka"
	"github.com/kvstore/fulltext/pkg/logger"
	"github.com/kvstore/fulltext/pkg/metrics"
	"github.com/kvstore/fulltext/pkg/middleware"
	"github.com/kvstore/fulltext/pkg/postgres"
	pkgredis "github.com/kvstore/fulltext/pkg/redis"
)

const numShards = 8

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting query service", "port", cfg.Server.Port, "num_shards", numShards)

	m := metrics.New()
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	router, err := shard.NewRouter(cfg.Indexer, numShards)
	if err != nil {
		slog.Error("failed to create shard router", "error", err)
		os.Exit(1)
	}
	defer router.Close()
	slog.Info("shard router initialized", "data_dir", cfg.Indexer.DataDir)

	for shardID, engine := range router.All() {
		engine.AttachMetrics(m)
		slog.Info("metrics attached to shard", "shard_id", shardID)
	}

	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, substrate result cache disabled", "error", err)
	} else {
		defer redisClient.Close()
		slog.Info("redis connected", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		for shardID, engine := range router.All() {
			cache := rescache.NewStore(redisClient, cfg.Redis.CacheTTL, fmt.Sprintf("shard%d", shardID))
			cache.AttachMetrics(m)
			engine.AttachResultCache(cache)
		}
		slog.Info("redis result cache attached to every shard")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	collector := analytics.NewCollector(analyticsProducer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	analyticsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(nil))
	agg := analytics.NewAggregator(analyticsConsumer)
	analyticsConsumer = kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg))
	agg = analytics.NewAggregator(analyticsConsumer)
	analyticsHandler := analytics.NewHandler(agg)

	go func() {
		if err := agg.Start(ctx); err != nil {
			slog.Error("analytics aggregator error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started")

	checker := health.NewChecker()
	checker.Register("substrate", func(ctx context.Context) health.ComponentHealth {
		if router.NumShards() > 0 {
			return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d shards active", router.NumShards())}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "no shards"}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	if db, err := postgres.New(cfg.Postgres); err != nil {
		slog.Warn("snapshot history disabled: postgres unavailable", "error", err)
	} else {
		defer db.Close()
		snapshotStore := aggregator.NewStore(db)
		snapshotStore.StartPeriodicSave(ctx, agg, 5*time.Minute)
		analyticsHandler.AttachStore(snapshotStore)
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := db.DB.PingContext(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	h := queryservice.New(router, collector)
	h.AttachMetrics(m)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/fulltext/search", h.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	mux.HandleFunc("GET /api/v1/analytics/history", analyticsHandler.History)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("query service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("query service stopped")
}
