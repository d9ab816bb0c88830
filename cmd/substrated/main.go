// Command substrated runs a single shard's substrate as its own process,
// serving one Engine over pkg/grpc at substrate.listenAddr; a caller
// reaches it through internal/substrateclient. cmd/indexer and
// cmd/searcher do not connect to it: they always build their shards
// in-process and do not read substrate.mode or substrate.shardAddrs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kvstore/fulltext/internal/substrate"
	"github.com/kvstore/fulltext/pkg/config"
	"github.com/kvstore/fulltext/pkg/grpc"
	"github.com/kvstore/fulltext/pkg/logger"
	"github.com/kvstore/fulltext/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	dataDir := flag.String("data-dir", "", "overrides indexer.dataDir for this shard")
	listenAddr := flag.String("listen", "", "overrides substrate.listenAddr")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	engineCfg := cfg.Indexer
	if *dataDir != "" {
		engineCfg.DataDir = *dataDir
	}
	engine, err := substrate.NewEngine(engineCfg)
	if err != nil {
		slog.Error("failed to create substrate engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	if cfg.Metrics.Enabled {
		engine.AttachMetrics(metrics.New())
		metricsShutdown := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			if err := metricsShutdown(context.Background()); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	engine.StartFlushLoop(ctx)

	addr := cfg.Substrate.ListenAddr
	if *listenAddr != "" {
		addr = *listenAddr
	}

	server := grpc.NewServer()
	substrate.RegisterHandlers(server, engine)
	slog.Info("substrated methods registered", "count", server.MethodCount())

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		server.Stop()
	}()

	slog.Info("substrated listening", "addr", addr, "data_dir", engineCfg.DataDir)
	if err := server.Serve(addr); err != nil {
		slog.Error("substrated server error", "error", err)
		os.Exit(1)
	}
	slog.Info("substrated stopped")
}
