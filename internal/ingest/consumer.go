// Package ingest wires Kafka record-update events into the full-text index
// maintainer, fanning each event out to the shard owning its record path.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kvstore/fulltext/internal/analytics"
	"github.com/kvstore/fulltext/internal/substrate/shard"
	apperrors "github.com/kvstore/fulltext/pkg/errors"
	"github.com/kvstore/fulltext/pkg/kafka"

	ftindex "github.com/kvstore/fulltext/pkg/fulltext/index"
)

// RecordUpdate is the wire shape for a single record change, as published
// by the ingestion gateway: oldValue/newValue carry the raw record fields,
// with a nil meaning "record did not exist"/"record was deleted".
type RecordUpdate struct {
	Path     string         `json:"path"`
	OldValue ftindex.Record `json:"oldValue"`
	NewValue ftindex.Record `json:"newValue"`
}

// Consumer drives one Maintainer per shard off a single Kafka topic,
// selecting the shard (and therefore the maintainer) by the record's path.
type Consumer struct {
	router      *shard.Router
	maintainers map[int]*ftindex.Maintainer
	reader      *kafka.Consumer
	collector   *analytics.Collector
	logger      *slog.Logger
}

// New builds a Consumer. indexCfg configures every shard's maintainer
// identically; routing itself is purely path-based via router. collector
// may be nil, in which case successfully indexed records are not reported
// to analytics.
func New(router *shard.Router, indexCfg ftindex.Config, kafkaConsumerFactory func(kafka.MessageHandler) *kafka.Consumer, collector *analytics.Collector) (*Consumer, error) {
	c := &Consumer{
		router:      router,
		maintainers: make(map[int]*ftindex.Maintainer, router.NumShards()),
		collector:   collector,
		logger:      slog.Default().With("component", "ingest-consumer"),
	}
	for id, engine := range router.All() {
		m, err := ftindex.New(indexCfg, engine)
		if err != nil {
			var invalidKey *ftindex.InvalidKeyError
			if errors.As(err, &invalidKey) {
				return nil, apperrors.Newf(apperrors.ErrInvalidKey, http.StatusBadRequest, "building maintainer for shard %d: %s", id, invalidKey.Error())
			}
			return nil, fmt.Errorf("building maintainer for shard %d: %w", id, err)
		}
		c.maintainers[id] = m
	}
	c.reader = kafkaConsumerFactory(c.handle)
	return c, nil
}

// Start runs the underlying Kafka consume loop until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("ingest consumer ready")
	return c.reader.Start(ctx)
}

func (c *Consumer) handle(ctx context.Context, key []byte, value []byte) error {
	start := time.Now()
	var update RecordUpdate
	if err := json.Unmarshal(value, &update); err != nil {
		return fmt.Errorf("decoding record update: %w", err)
	}
	shardID := c.router.ShardFor(update.Path)
	m, ok := c.maintainers[shardID]
	if !ok {
		return fmt.Errorf("no maintainer for shard %d (path %s)", shardID, update.Path)
	}
	if err := m.HandleRecordUpdate(ctx, update.Path, update.OldValue, update.NewValue); err != nil {
		return fmt.Errorf("indexing %s: %w", update.Path, err)
	}
	c.logger.Debug("record indexed", "path", update.Path, "shard_id", shardID)
	if c.collector != nil {
		c.collector.Track(analytics.RecordEvent{
			Type:      analytics.EventRecordIndexed,
			Path:      update.Path,
			ShardID:   shardID,
			WordCount: len(update.NewValue),
			LatencyMs: time.Since(start).Milliseconds(),
			Timestamp: time.Now().UTC(),
		})
	}
	return nil
}
