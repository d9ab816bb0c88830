package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kvstore/fulltext/internal/analytics"
	"github.com/kvstore/fulltext/internal/ingest"
	"github.com/kvstore/fulltext/internal/substrate/shard"
	"github.com/kvstore/fulltext/pkg/config"
	ftindex "github.com/kvstore/fulltext/pkg/fulltext/index"
	"github.com/kvstore/fulltext/pkg/kafka"
	"github.com/kvstore/fulltext/pkg/logger"
	"github.com/kvstore/fulltext/pkg/metrics"
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
	slog.Info("starting indexer service", "num_shards", numShards)

	m := metrics.New()
	if cfg.Metrics.Enabled {
		metricsShutdown := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			if err := metricsShutdown(context.Background()); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	router, err := shard.NewRouter(cfg.Indexer, numShards)
	if err != nil {
		slog.Error("failed to create shard router", "error", err)
		os.Exit(1)
	}
	defer router.Close()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for shardID, engine := range router.All() {
		engine.AttachMetrics(m)
		engine.StartFlushLoop(ctx)
		slog.Info("flush loop started", "shard_id", shardID)
	}

	indexCfg := ftindex.Config{
		Key:           cfg.Indexer.Index.Key,
		TextLocaleKey: cfg.Indexer.Index.TextLocaleKey,
		DefaultLocale: cfg.Indexer.Index.DefaultLocale,
		MinLength:     cfg.Indexer.Index.MinLength,
		MaxLength:     cfg.Indexer.Index.MaxLength,
		UseStoplist:   cfg.Indexer.Index.UseStoplist,
	}

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(analyticsProducer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	factory := func(handler kafka.MessageHandler) *kafka.Consumer {
		return kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, handler)
	}
	indexConsumer, err := ingest.New(router, indexCfg, factory, collector)
	if err != nil {
		slog.Error("failed to build ingest consumer", "error", err)
		os.Exit(1)
	}

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
	)

	if err := indexConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("flushing all shards before shutdown")
	if err := router.FlushAll(); err != nil {
		slog.Error("final flush failed", "error", err)
	}

	slog.Info("indexer service stopped")
}
