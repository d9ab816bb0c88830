// Package queryservice exposes the full-text query executor (pkg/fulltext/query)
// over HTTP, fanning a single query out across every shard and unioning the
// per-shard result sets.
package queryservice

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kvstore/fulltext/internal/analytics"
	"github.com/kvstore/fulltext/internal/substrate/shard"
	apperrors "github.com/kvstore/fulltext/pkg/errors"
	"github.com/kvstore/fulltext/pkg/fulltext/query"
	"github.com/kvstore/fulltext/pkg/fulltext/substrate"
	"github.com/kvstore/fulltext/pkg/fulltext/tokenize"
	"github.com/kvstore/fulltext/pkg/metrics"
	"github.com/kvstore/fulltext/pkg/tracing"
)

// Handler serves fulltext:contains / fulltext:!contains queries against
// every shard behind router, caching per-shard execution with a
// singleflight-backed query.Cached instance.
type Handler struct {
	router    *shard.Router
	executors map[int]*query.Cached
	collector *analytics.Collector
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func New(router *shard.Router, collector *analytics.Collector) *Handler {
	executors := make(map[int]*query.Cached, router.NumShards())
	for id, engine := range router.All() {
		executors[id] = query.NewCached(query.NewExecutor(engine))
	}
	return &Handler{
		router:    router,
		executors: executors,
		collector: collector,
		logger:    slog.Default().With("component", "queryservice-handler"),
	}
}

// AttachMetrics points the handler's search counters/histograms at m.
func (h *Handler) AttachMetrics(m *metrics.Metrics) {
	h.metrics = m
}

type searchResponse struct {
	Paths []string          `json:"paths"`
	Hints []substrate.Hint  `json:"hints,omitempty"`
	Stats substrate.Stats   `json:"stats"`
}

// Search handles GET /api/v1/fulltext/search?q=...&op=contains|!contains&locale=en
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "queryservice.Search", traceIDFor(r))
	defer func() {
		span.End()
		span.Log()
	}()

	start := time.Now()
	raw := r.URL.Query().Get("q")
	op := query.OpContains
	if r.URL.Query().Get("op") == "!contains" {
		op = query.OpNotContains
	}
	opts := query.Options{Locale: r.URL.Query().Get("locale")}
	if opts.Locale == "" {
		opts.Locale = "default"
	}
	if v := r.URL.Query().Get("useStoplist"); v != "" {
		opts.UseStoplist = v == "true" || v == "1"
	}
	span.SetAttr("query", raw)
	span.SetAttr("op", string(op))

	result, err := h.fanOut(ctx, op, raw, opts)
	if err != nil {
		appErr := translateQueryError(err)
		h.logger.Error("query execution failed", "error", err, "query", raw, "status_code", appErr.StatusCode)
		h.observe("error", 0, nil, time.Since(start))
		h.writeError(w, appErr.StatusCode, appErr.Error())
		return
	}

	elapsed := time.Since(start)
	resultType := "zero_result"
	if len(result.Matches) > 0 {
		resultType = "hit"
	}
	h.observe(resultType, len(result.Matches), result.Hints, elapsed)

	if h.collector != nil {
		h.collector.Track(analytics.SearchEvent{
			Type:       analytics.EventSearch,
			Query:      raw,
			Op:         string(op),
			TotalHits:  len(result.Matches),
			Returned:   len(result.Matches),
			LatencyMs:  elapsed.Milliseconds(),
			ShardCount: len(h.executors),
			Timestamp:  time.Now().UTC(),
			RequestID:  traceIDFor(r),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	resp := searchResponse{Paths: result.Paths(), Hints: result.Hints, Stats: result.Stats}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// observe records the search's result-type counter, result-count
// histogram, hint-type counters, and latency, if metrics were attached via
// AttachMetrics. The latency histogram's cache_status label is always
// "unknown" here, since query.Cached collapses concurrent identical
// queries but doesn't report whether this call rode in on an in-flight
// request or issued its own.
func (h *Handler) observe(resultType string, matchCount int, hints []substrate.Hint, elapsed time.Duration) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues("unknown").Observe(elapsed.Seconds())
	h.metrics.SearchResultsCount.WithLabelValues().Observe(float64(matchCount))
	for _, hint := range hints {
		h.metrics.QueryHintsTotal.WithLabelValues(string(hint.Type)).Inc()
	}
}

// CacheStats handles GET /api/v1/cache/stats, reporting the result cache
// backend active on each shard.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	backends := make(map[string]string, len(h.router.All()))
	for id, engine := range h.router.All() {
		backends[shardKey(id)] = engine.CacheBackend()
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"shards": backends})
}

// CacheInvalidate handles POST /api/v1/cache/invalidate, dropping every
// shard's cached result set. Operators call this after a full reindex
// makes a warm cache stale.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var failed []string
	for id, engine := range h.router.All() {
		if err := engine.InvalidateCache(ctx); err != nil {
			h.logger.Error("cache invalidation failed", "shard_id", id, "error", err)
			failed = append(failed, shardKey(id))
		}
	}
	if len(failed) > 0 {
		h.writeError(w, http.StatusServiceUnavailable, "invalidation failed for shards: "+strings.Join(failed, ","))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func shardKey(id int) string {
	return "shard" + strconv.Itoa(id)
}

// traceIDFor derives a trace ID for a root span from the request's
// X-Request-ID header (set by middleware.RequestID), falling back to the
// remote address when the header is absent.
func traceIDFor(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return r.RemoteAddr
}

// fanOut runs the same query against every shard concurrently and unions
// the resulting matches, deduplicated by path.
func (h *Handler) fanOut(ctx context.Context, op query.Operator, raw string, opts query.Options) (*substrate.ResultSet, error) {
	type shardResult struct {
		res *substrate.ResultSet
		err error
	}
	results := make([]shardResult, len(h.executors))

	var wg sync.WaitGroup
	i := 0
	indexed := make([]int, 0, len(h.executors))
	for id := range h.executors {
		indexed = append(indexed, id)
	}
	sort.Ints(indexed)
	for _, id := range indexed {
		wg.Add(1)
		go func(i, id int) {
			defer wg.Done()
			res, err := h.executors[id].Execute(ctx, op, raw, opts)
			results[i] = shardResult{res: res, err: err}
		}(i, id)
		i++
	}
	wg.Wait()

	union := &substrate.ResultSet{Stats: substrate.Stats{}}
	seen := make(map[string]struct{})
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		if r.res == nil {
			continue
		}
		for _, m := range r.res.Matches {
			if _, dup := seen[m.Path]; dup {
				continue
			}
			seen[m.Path] = struct{}{}
			union.Matches = append(union.Matches, m)
		}
		union.Hints = append(union.Hints, r.res.Hints...)
		for k, v := range r.res.Stats {
			union.Stats[k] += v
		}
	}
	sort.Slice(union.Matches, func(i, j int) bool { return union.Matches[i].Path < union.Matches[j].Path })
	return union, nil
}

// translateQueryError maps the pkg/fulltext/query and pkg/fulltext/tokenize
// error types this handler can see into an apperrors.AppError carrying the
// right sentinel and HTTP status, the same way internal/ingestion/handler
// translates validator/publisher errors at its own boundary. Anything
// unrecognized is assumed to be a substrate-layer failure.
func translateQueryError(err error) *apperrors.AppError {
	var unsupported *query.UnsupportedOperatorError
	if errors.As(err, &unsupported) {
		return apperrors.New(apperrors.ErrUnsupportedOperator, http.StatusBadRequest, unsupported.Error())
	}
	var notImplemented *query.NotImplementedError
	if errors.As(err, &notImplemented) {
		return apperrors.New(apperrors.ErrNotImplemented, http.StatusNotImplemented, notImplemented.Error())
	}
	var patternShape *tokenize.PatternShapeError
	if errors.As(err, &patternShape) {
		return apperrors.New(apperrors.ErrPatternShape, http.StatusBadRequest, patternShape.Error())
	}
	return apperrors.New(apperrors.ErrSubstrateError, http.StatusServiceUnavailable, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
