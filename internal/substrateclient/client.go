// Package substrateclient implements pkg/fulltext/substrate.Substrate over
// an RPC connection to a cmd/substrated process, for deployments that want
// to run the substrate as its own process rather than in the indexer or
// searcher's address space. It speaks the same pkg/grpc JSON-over-TCP
// protocol the rest of the platform's internal RPC uses, framed with the
// messages in pkg/proto.
package substrateclient

import (
	"context"
	"fmt"
	"time"

	"github.com/kvstore/fulltext/pkg/grpc"
	"github.com/kvstore/fulltext/pkg/metrics"
	"github.com/kvstore/fulltext/pkg/proto"
	"github.com/kvstore/fulltext/pkg/resilience"

	fts "github.com/kvstore/fulltext/pkg/fulltext/substrate"
)

const rpcTimeout = 5 * time.Second

var retryConfig = resilience.RetryConfig{
	MaxAttempts:  3,
	InitialDelay: 50 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	Multiplier:   2.0,
}

// Client is a Substrate implementation backed by a remote cmd/substrated
// process. Every call is wrapped in a per-client circuit breaker, a bounded
// retry with backoff, and a timeout, since spec.md's concurrency model
// says substrate timeouts and cancellation are inherited by the caller and
// substrate errors propagate verbatim — over RPC those guarantees have to
// be enforced explicitly instead of falling out of an in-process call.
type Client struct {
	rpc     *grpc.Client
	breaker *resilience.CircuitBreaker
	addr    string
	metrics *metrics.Metrics
}

// AttachMetrics points the client's CircuitBreakerState gauge at m. The
// gauge is updated after every call, labeled by the dial address.
func (c *Client) AttachMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// Dial connects to a substrated instance at addr.
func Dial(addr string) (*Client, error) {
	rpc, err := grpc.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("dialing substrated at %s: %w", addr, err)
	}
	return &Client{
		rpc:     rpc,
		breaker: resilience.NewCircuitBreaker("substrateclient-"+addr, resilience.CircuitBreakerConfig{}),
		addr:    addr,
	}, nil
}

// call runs an RPC through the circuit breaker, retrying transient
// failures with backoff and bounding the whole attempt with rpcTimeout.
func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	err := resilience.WithTimeout(ctx, rpcTimeout, method, func(ctx context.Context) error {
		return c.breaker.Execute(func() error {
			return resilience.Retry(ctx, method, retryConfig, func() error {
				return c.rpc.Call(method, req, resp)
			})
		})
	})
	if c.metrics != nil {
		c.metrics.CircuitBreakerState.WithLabelValues(c.addr).Set(float64(c.breaker.GetState()))
	}
	return err
}

func (c *Client) Close() error {
	return c.rpc.Close()
}

var _ fts.Substrate = (*Client)(nil)

func (c *Client) HandleRecordUpdate(ctx context.Context, path string, word string, oldValue, newValue *string, meta map[string]string) error {
	req := proto.RecordUpdateRequest{Path: path, Word: word, OldValue: oldValue, NewValue: newValue, Meta: meta}
	var resp proto.RecordUpdateResponse
	if err := c.call(ctx, "Substrate.HandleRecordUpdate", &req, &resp); err != nil {
		return fmt.Errorf("rpc HandleRecordUpdate: %w", err)
	}
	return nil
}

func (c *Client) Count(ctx context.Context, op fts.Op, value string) (int, error) {
	req := proto.CountRequest{Op: string(op), Value: value}
	var resp proto.CountResponse
	if err := c.call(ctx, "Substrate.Count", &req, &resp); err != nil {
		return 0, fmt.Errorf("rpc Count: %w", err)
	}
	return resp.Count, nil
}

func (c *Client) Query(ctx context.Context, op fts.Op, value string, filter *fts.QueryFilter) (*fts.ResultSet, error) {
	req := proto.QueryRequest{Op: string(op), Value: value}
	if filter != nil {
		req.Filter = make([]string, 0, len(filter.Paths))
		for p := range filter.Paths {
			req.Filter = append(req.Filter, p)
		}
	}
	var resp proto.QueryResponse
	if err := c.call(ctx, "Substrate.Query", &req, &resp); err != nil {
		return nil, fmt.Errorf("rpc Query: %w", err)
	}
	return toResultSet(resp.Matches, resp.Stats), nil
}

// QueryBlacklisting runs cb against every word ListWords returns and
// ships only the matches back to ResolveBlacklist, since cb is a Go
// closure that can't itself cross the RPC boundary.
func (c *Client) QueryBlacklisting(ctx context.Context, cb fts.BlacklistingCallback) (*fts.ResultSet, error) {
	var words proto.ListWordsResponse
	if err := c.call(ctx, "Substrate.ListWords", struct{}{}, &words); err != nil {
		return nil, fmt.Errorf("rpc ListWords: %w", err)
	}

	matched := make([]string, 0, len(words.Words))
	for _, w := range words.Words {
		if cb(w) {
			matched = append(matched, w)
		}
	}

	req := proto.ResolveBlacklistRequest{MatchedWords: matched}
	var resp proto.ResolveBlacklistResponse
	if err := c.call(ctx, "Substrate.ResolveBlacklist", &req, &resp); err != nil {
		return nil, fmt.Errorf("rpc ResolveBlacklist: %w", err)
	}
	return toResultSet(resp.Matches, resp.Stats), nil
}

// Build runs scan locally and ships the resulting postings to the
// substrate in one batch, since scan's add callback has the same
// cross-the-wire problem QueryBlacklisting's predicate does.
func (c *Client) Build(ctx context.Context, scan func(ctx context.Context, add fts.AddCallback) error) error {
	var upserts []proto.Upsert
	add := func(word, path string, meta map[string]string) error {
		upserts = append(upserts, proto.Upsert{Word: word, Path: path, Meta: meta})
		return nil
	}
	if err := scan(ctx, add); err != nil {
		return fmt.Errorf("scanning records for remote rebuild: %w", err)
	}

	req := proto.RebuildRequest{Upserts: upserts}
	var resp proto.RebuildResponse
	if err := c.call(ctx, "Substrate.RebuildFromUpserts", &req, &resp); err != nil {
		return fmt.Errorf("rpc RebuildFromUpserts: %w", err)
	}
	return nil
}

func (c *Client) Cache(ctx context.Context, op string, value string, results *fts.ResultSet) (*fts.ResultSet, error) {
	req := proto.CacheRequest{Op: op, Value: value}
	if results != nil {
		req.Write = true
		req.Matches = fromMatches(results.Matches)
	}
	var resp proto.CacheResponse
	if err := c.call(ctx, "Substrate.Cache", &req, &resp); err != nil {
		return nil, fmt.Errorf("rpc Cache: %w", err)
	}
	if req.Write || !resp.Found {
		return nil, nil
	}
	return toResultSet(resp.Matches, resp.Stats), nil
}

func toResultSet(matches []proto.Match, stats map[string]int) *fts.ResultSet {
	rs := &fts.ResultSet{Stats: fts.Stats{}}
	for k, v := range stats {
		rs.Stats[k] = v
	}
	for _, m := range matches {
		rs.Matches = append(rs.Matches, fts.Match{Path: m.Path, Metadata: m.Metadata})
	}
	return rs
}

func fromMatches(matches []fts.Match) []proto.Match {
	out := make([]proto.Match, len(matches))
	for i, m := range matches {
		out[i] = proto.Match{Path: m.Path, Metadata: m.Metadata}
	}
	return out
}
