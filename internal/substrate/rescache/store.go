// Package rescache is the Redis-backed result cache substrate.Engine's
// Cache method defers to when one is attached, standing in for the
// in-memory map Engine falls back to otherwise: cached result sets
// survive process restarts and are shared across every searcher replica
// pointed at the same Redis instance, instead of each replica's Engine
// warming its own cache independently.
package rescache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	fts "github.com/kvstore/fulltext/pkg/fulltext/substrate"
	"github.com/kvstore/fulltext/pkg/metrics"
	pkgredis "github.com/kvstore/fulltext/pkg/redis"
)

// Store caches fts.ResultSet values in Redis, keyed by (op, value).
type Store struct {
	redis   *pkgredis.Client
	ttl     time.Duration
	prefix  string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewStore wraps an already-connected Redis client. prefix namespaces
// keys per shard so multiple Engines can share one Redis instance
// without colliding.
func NewStore(redis *pkgredis.Client, ttl time.Duration, prefix string) *Store {
	return &Store{
		redis:  redis,
		ttl:    ttl,
		prefix: prefix,
		logger: slog.Default().With("component", "substrate-rescache"),
	}
}

// AttachMetrics points Get's hit/miss accounting at m's CacheHitsTotal and
// CacheMissesTotal collectors instead of leaving them unobserved.
func (s *Store) AttachMetrics(m *metrics.Metrics) {
	s.metrics = m
}

func (s *Store) key(op, value string) string {
	return fmt.Sprintf("fulltext:rescache:%s:%s\x00%s", s.prefix, op, value)
}

// Get returns the cached result set for (op, value), or ok=false on a
// cache miss.
func (s *Store) Get(ctx context.Context, op, value string) (*fts.ResultSet, bool, error) {
	raw, err := s.redis.Get(ctx, s.key(op, value))
	if pkgredis.IsNilError(err) {
		s.observe(false)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading result cache: %w", err)
	}
	var rs fts.ResultSet
	if err := json.Unmarshal([]byte(raw), &rs); err != nil {
		return nil, false, fmt.Errorf("decoding cached result set: %w", err)
	}
	s.observe(true)
	return &rs, true, nil
}

// observe increments the attached metrics' cache hit/miss counters, if
// metrics were attached via AttachMetrics.
func (s *Store) observe(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHitsTotal.Inc()
		return
	}
	s.metrics.CacheMissesTotal.Inc()
}

// Set stores results under (op, value) with the store's TTL.
func (s *Store) Set(ctx context.Context, op, value string, results *fts.ResultSet) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encoding result set: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(op, value), raw, s.ttl); err != nil {
		return fmt.Errorf("writing result cache: %w", err)
	}
	return nil
}

// Invalidate drops every cached result for this prefix, for callers that
// rebuild or reindex a shard out from under a warm cache.
func (s *Store) Invalidate(ctx context.Context) error {
	n, err := s.redis.FlushByPattern(ctx, fmt.Sprintf("fulltext:rescache:%s:*", s.prefix))
	if err != nil {
		return fmt.Errorf("invalidating result cache: %w", err)
	}
	s.logger.Info("result cache invalidated", "keys_removed", n)
	return nil
}
