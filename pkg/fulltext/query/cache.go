package query

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/kvstore/fulltext/pkg/fulltext/substrate"
)

// Cached wraps an Executor so that concurrent callers asking the same
// (operator, query) collapse into a single substrate round-trip, the way
// the cache key in spec.md's component H implies: only one of them should
// pay for execution, the rest should observe its result.
type Cached struct {
	exec  *Executor
	group singleflight.Group
}

func NewCached(exec *Executor) *Cached {
	return &Cached{exec: exec}
}

func (c *Cached) Execute(ctx context.Context, op Operator, raw string, opts Options) (*substrate.ResultSet, error) {
	key := string(op) + "\x00" + normalizeQueryKey(raw)
	val, err, _ := c.group.Do(key, func() (any, error) {
		return c.exec.Execute(ctx, op, raw, opts)
	})
	if err != nil {
		return nil, err
	}
	return val.(*substrate.ResultSet), nil
}
