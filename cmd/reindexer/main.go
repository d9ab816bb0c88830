// Command reindexer replays every record of internal/recordstore, the
// hierarchical key/value table sitting behind the substrate, into its
// shard's full-text index as a fresh insert (no old value). It only adds
// postings: postings already in a shard's index are not cleared first,
// so words posted under earlier tokenizer settings that the current
// settings drop stay in the index. The normal ingest path
// (cmd/indexer + internal/ingest) only ever sees incremental diffs, so
// records that never passed through it (e.g. after restoring a shard from
// an empty data directory) are indexed only by this command.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kvstore/fulltext/internal/recordstore"
	"github.com/kvstore/fulltext/internal/substrate/shard"
	"github.com/kvstore/fulltext/pkg/config"
	ftindex "github.com/kvstore/fulltext/pkg/fulltext/index"
	"github.com/kvstore/fulltext/pkg/logger"
	"github.com/kvstore/fulltext/pkg/postgres"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	store := recordstore.NewStore(db)

	router, err := shard.NewRouter(cfg.Indexer, numShards)
	if err != nil {
		slog.Error("failed to create shard router", "error", err)
		os.Exit(1)
	}
	defer router.Close()

	indexCfg := ftindex.Config{
		Key:           cfg.Indexer.Index.Key,
		TextLocaleKey: cfg.Indexer.Index.TextLocaleKey,
		DefaultLocale: cfg.Indexer.Index.DefaultLocale,
		MinLength:     cfg.Indexer.Index.MinLength,
		MaxLength:     cfg.Indexer.Index.MaxLength,
		UseStoplist:   cfg.Indexer.Index.UseStoplist,
	}

	maintainers := make(map[int]*ftindex.Maintainer, router.NumShards())
	for shardID, engine := range router.All() {
		m, err := ftindex.New(indexCfg, engine)
		if err != nil {
			slog.Error("failed to build maintainer", "shard_id", shardID, "error", err)
			os.Exit(1)
		}
		maintainers[shardID] = m
	}

	var indexed, failed int
	err = store.ScanAll(ctx, func(path string, value map[string]any) error {
		shardID := router.ShardFor(path)
		m, ok := maintainers[shardID]
		if !ok {
			return fmt.Errorf("no maintainer for shard %d (path %s)", shardID, path)
		}
		if err := m.HandleRecordUpdate(ctx, path, nil, ftindex.Record(value)); err != nil {
			slog.Error("failed to index record", "path", path, "error", err)
			failed++
			return nil
		}
		indexed++
		return nil
	})
	if err != nil {
		slog.Error("reindex scan failed", "error", err)
		os.Exit(1)
	}
	slog.Info("reindex scan complete", "indexed", indexed, "failed", failed)

	slog.Info("flushing all shards")
	if err := router.FlushAll(); err != nil {
		slog.Error("final flush failed", "error", err)
	}
	slog.Info("reindexer stopped")
}
