// Package shard provides hash-based shard routing across independent
// substrate engines. Each shard owns its own data directory; a record's
// path is hashed to pick its shard, so every word posted for that record
// always lands in the same engine.
package shard

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/kvstore/fulltext/internal/substrate"
	"github.com/kvstore/fulltext/pkg/config"
)

// Router maps record paths to dedicated substrate.Engine instances.
type Router struct {
	engines   map[int]*substrate.Engine
	mu        sync.RWMutex
	numShards int
	logger    *slog.Logger
}

// NewRouter creates numShards engines, each in its own sub-directory under
// baseCfg.DataDir.
func NewRouter(baseCfg config.IndexerConfig, numShards int) (*Router, error) {
	r := &Router{
		engines:   make(map[int]*substrate.Engine, numShards),
		numShards: numShards,
		logger:    slog.Default().With("component", "shard-router"),
	}
	for i := 0; i < numShards; i++ {
		shardCfg := baseCfg
		shardCfg.DataDir = filepath.Join(baseCfg.DataDir, fmt.Sprintf("shard-%d", i))
		engine, err := substrate.NewEngine(shardCfg)
		if err != nil {
			r.closeAll()
			return nil, fmt.Errorf("creating engine for shard %d: %w", i, err)
		}
		r.engines[i] = engine
		r.logger.Info("shard engine initialized", "shard_id", i, "data_dir", shardCfg.DataDir)
	}
	r.logger.Info("shard router ready", "num_shards", numShards)
	return r, nil
}

// ShardFor hashes a record path to its shard ID.
func (r *Router) ShardFor(path string) int {
	h := fnv.New32a()
	h.Write([]byte(path))
	return int(h.Sum32()) % r.numShards
}

// Route returns the Engine responsible for path.
func (r *Router) Route(path string) (*substrate.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id := r.ShardFor(path)
	engine, ok := r.engines[id]
	if !ok {
		return nil, fmt.Errorf("unknown shard ID %d (valid range: 0-%d)", id, r.numShards-1)
	}
	return engine, nil
}

// All returns a snapshot map of all shard engines, for fan-out queries
// that must union across every shard.
func (r *Router) All() map[int]*substrate.Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int]*substrate.Engine, len(r.engines))
	for id, engine := range r.engines {
		out[id] = engine
	}
	return out
}

func (r *Router) NumShards() int {
	return r.numShards
}

// FlushAll flushes every shard engine to disk.
func (r *Router) FlushAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var firstErr error
	for id, engine := range r.engines {
		if err := engine.Flush(); err != nil {
			r.logger.Error("flush failed", "shard_id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ReloadAll tells every shard engine to re-scan for newly flushed
// segments, returning the total number of new segments picked up.
func (r *Router) ReloadAll() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for id, engine := range r.engines {
		n, err := engine.Reload()
		if err != nil {
			r.logger.Error("reload failed", "shard_id", id, "error", err)
			continue
		}
		total += n
	}
	return total
}

func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeAll()
}

func (r *Router) closeAll() error {
	var firstErr error
	for id, engine := range r.engines {
		if err := engine.Close(); err != nil {
			r.logger.Error("close failed", "shard_id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
