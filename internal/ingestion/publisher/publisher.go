// Package publisher writes records to internal/recordstore and publishes
// the resulting diff to Kafka for downstream indexing.
package publisher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kvstore/fulltext/internal/ingestion"
	"github.com/kvstore/fulltext/internal/recordstore"
	apperrors "github.com/kvstore/fulltext/pkg/errors"
	"github.com/kvstore/fulltext/pkg/kafka"
)

// Publisher coordinates record persistence and Kafka event production.
type Publisher struct {
	store    *recordstore.Store
	producer *kafka.Producer
	logger   *slog.Logger
}

// New creates a Publisher with the given record store and Kafka producer.
func New(store *recordstore.Store, producer *kafka.Producer) *Publisher {
	return &Publisher{
		store:    store,
		producer: producer,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Write upserts the record at path in recordstore and publishes a
// RecordUpdate carrying the old and new values so the indexer can diff
// them.
func (p *Publisher) Write(ctx context.Context, path string, req *ingestion.WriteRequest) (*ingestion.WriteResponse, error) {
	old, err := p.store.Put(ctx, path, req.Value)
	if err != nil {
		return nil, fmt.Errorf("writing record %s: %w", path, err)
	}

	event := kafka.Event{
		Key: path,
		Value: ingestion.RecordUpdate{
			Path:     path,
			OldValue: old,
			NewValue: req.Value,
		},
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		p.logger.Error("failed to publish record update, index will lag until next rebuild",
			"path", path,
			"error", err,
		)
	}
	return &ingestion.WriteResponse{Path: path, Status: "ACCEPTED"}, nil
}

// Delete removes the record at path and publishes a RecordUpdate with a nil
// new value so the indexer retires its postings. Returns a not-found error
// if the record doesn't exist.
func (p *Publisher) Delete(ctx context.Context, path string) (*ingestion.WriteResponse, error) {
	old, err := p.store.Delete(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("deleting record %s: %w", path, err)
	}
	if old == nil {
		return nil, apperrors.New(apperrors.ErrDocumentNotFound, 404, "record not found")
	}

	event := kafka.Event{
		Key: path,
		Value: ingestion.RecordUpdate{
			Path:     path,
			OldValue: old,
			NewValue: nil,
		},
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		p.logger.Error("failed to publish record deletion, index will lag until next rebuild",
			"path", path,
			"error", err,
		)
	}
	return &ingestion.WriteResponse{Path: path, Status: "DELETED"}, nil
}
