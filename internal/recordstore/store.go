// Package recordstore is the PostgreSQL-backed hierarchical key/value
// record table that sits behind the full-text substrate: every record is
// a path (the hierarchical key) and a JSON value, the same shape
// pkg/fulltext/index.Record diffs on either side of an update. It stands
// in for "the surrounding database" the full-text secondary index is
// built over.
package recordstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kvstore/fulltext/pkg/postgres"
)

// Store reads and writes records in PostgreSQL.
//
// It requires a `records` table:
//
//	CREATE TABLE records (
//	    path       TEXT PRIMARY KEY,
//	    value      JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "recordstore"),
	}
}

// Get returns the record at path, or nil, nil if it doesn't exist.
func (s *Store) Get(ctx context.Context, path string) (map[string]any, error) {
	var raw []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT value FROM records WHERE path = $1`, path,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying record %s: %w", path, err)
	}
	var value map[string]any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("unmarshaling record %s: %w", path, err)
	}
	return value, nil
}

// Put upserts the record at path, returning its previous value (nil if
// it didn't already exist) so callers can diff old against new the way
// index.Maintainer.HandleRecordUpdate expects.
func (s *Store) Put(ctx context.Context, path string, value map[string]any) (previous map[string]any, err error) {
	previous, err = s.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshaling record %s: %w", path, err)
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO records (path, value, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		path, raw,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting record %s: %w", path, err)
	}
	return previous, nil
}

// Delete removes the record at path, returning its value so the caller
// can retire its postings. Returns nil, nil if the record didn't exist.
func (s *Store) Delete(ctx context.Context, path string) (map[string]any, error) {
	previous, err := s.Get(ctx, path)
	if err != nil || previous == nil {
		return previous, err
	}
	if _, err := s.db.DB.ExecContext(ctx, `DELETE FROM records WHERE path = $1`, path); err != nil {
		return nil, fmt.Errorf("deleting record %s: %w", path, err)
	}
	return previous, nil
}

// ScanAll walks every record in path order, invoking fn once per row.
// cmd/reindexer uses this to drive a full index rebuild from scratch.
func (s *Store) ScanAll(ctx context.Context, fn func(path string, value map[string]any) error) error {
	rows, err := s.db.DB.QueryContext(ctx, `SELECT path, value FROM records ORDER BY path`)
	if err != nil {
		return fmt.Errorf("scanning records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var path string
		var raw []byte
		if err := rows.Scan(&path, &raw); err != nil {
			return fmt.Errorf("scanning record row: %w", err)
		}
		var value map[string]any
		if err := json.Unmarshal(raw, &value); err != nil {
			s.logger.Warn("skipping record with unparseable value", "path", path, "error", err)
			continue
		}
		if err := fn(path, value); err != nil {
			return fmt.Errorf("handling record %s: %w", path, err)
		}
	}
	return rows.Err()
}
