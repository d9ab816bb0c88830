// Package substrate is the reference implementation of the
// pkg/fulltext/substrate.Substrate contract: an in-memory posting map
// flushed periodically to immutable on-disk segments, queried by exact
// match, wildcard pattern, or blacklisting scan. Everything the full-text
// library needs from "the generic B+tree / record index" lives here;
// nothing in pkg/fulltext imports this package directly — it is wired in
// at the service boundary (or over RPC, via internal/substrateclient).
package substrate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	fts "github.com/kvstore/fulltext/pkg/fulltext/substrate"

	"github.com/kvstore/fulltext/internal/substrate/memstore"
	"github.com/kvstore/fulltext/internal/substrate/memstore/segment"
	"github.com/kvstore/fulltext/internal/substrate/rescache"
	"github.com/kvstore/fulltext/pkg/config"
	"github.com/kvstore/fulltext/pkg/metrics"
)

// Engine is the reference substrate: a flushable in-memory index plus a
// set of immutable on-disk segments, exposed through the contract
// pkg/fulltext/substrate declares.
type Engine struct {
	mem     *memstore.MemoryIndex
	writer  *segment.Writer
	readers []*segment.Reader
	readMu  sync.RWMutex

	cache   map[string]*fts.ResultSet
	cacheMu sync.Mutex

	resultCache *rescache.Store
	metrics     *metrics.Metrics

	cfg    config.IndexerConfig
	logger *slog.Logger
}

func NewEngine(cfg config.IndexerConfig) (*Engine, error) {
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating substrate data directory: %w", err)
		}
	}
	e := &Engine{
		mem:    memstore.NewMemoryIndex(),
		writer: segment.NewWriter(cfg.DataDir),
		cache:  make(map[string]*fts.ResultSet),
		cfg:    cfg,
		logger: slog.Default().With("component", "substrate"),
	}
	if cfg.DataDir != "" {
		if err := e.loadExistingSegments(); err != nil {
			return nil, fmt.Errorf("loading existing segments: %w", err)
		}
	}
	return e, nil
}

var _ fts.Substrate = (*Engine)(nil)

// HandleRecordUpdate adds or removes the posting (path -> word) depending
// on which of oldValue/newValue is nil. word is the normalized word being
// posted, not a record field name — the maintainer (component D) calls
// this once per word in its diff sets.
func (e *Engine) HandleRecordUpdate(ctx context.Context, path string, word string, oldValue, newValue *string, meta map[string]string) error {
	if newValue == nil {
		e.mem.Remove(word, path)
		return nil
	}
	e.mem.Upsert(word, path, meta)
	if e.metrics != nil {
		e.metrics.WordsIndexedTotal.Inc()
	}
	if e.cfg.SegmentMaxSize > 0 && e.mem.Size() >= e.cfg.SegmentMaxSize {
		if err := e.Flush(); err != nil {
			return fmt.Errorf("flushing substrate after update: %w", err)
		}
	}
	return nil
}

func (e *Engine) Count(ctx context.Context, op fts.Op, value string) (int, error) {
	if op == fts.OpLike {
		match, err := likeMatcher(value)
		if err != nil {
			return 0, err
		}
		return e.countLike(match), nil
	}
	return e.countExact(value), nil
}

func (e *Engine) Query(ctx context.Context, op fts.Op, value string, filter *fts.QueryFilter) (*fts.ResultSet, error) {
	var postings memstore.PostingList
	if op == fts.OpLike {
		match, err := likeMatcher(value)
		if err != nil {
			return nil, err
		}
		postings = e.searchLike(match)
	} else {
		postings = e.searchExact(value)
	}

	result := &fts.ResultSet{Stats: fts.Stats{}}
	for _, p := range postings {
		if filter != nil {
			if _, ok := filter.Paths[p.Path]; !ok {
				continue
			}
		}
		result.Matches = append(result.Matches, fts.Match{Path: p.Path, Metadata: p.Metadata})
	}
	result.Stats["cardinality"] = len(postings)
	return result, nil
}

// QueryBlacklisting scans every distinct word, invoking cb once per word.
// Every record path that has ever been posted under any word joins the
// index's record universe; any word cb reports as matching removes its
// posting paths from that universe. The result is universe minus
// excluded, i.e. every record that does NOT contain a matching word.
func (e *Engine) QueryBlacklisting(ctx context.Context, cb fts.BlacklistingCallback) (*fts.ResultSet, error) {
	start := time.Now()
	if e.metrics != nil {
		defer func() { e.metrics.BlacklistScanDuration.Observe(time.Since(start).Seconds()) }()
	}

	universe := make(map[string]struct{})
	excluded := make(map[string]struct{})

	visit := func(word string, postings memstore.PostingList) {
		matched := cb(word)
		for _, p := range postings {
			universe[p.Path] = struct{}{}
			if matched {
				excluded[p.Path] = struct{}{}
			}
		}
	}

	e.mem.Scan(visit)
	e.readMu.RLock()
	readers := append([]*segment.Reader(nil), e.readers...)
	e.readMu.RUnlock()
	for _, r := range readers {
		for _, word := range r.Words() {
			postings, err := r.Search(word)
			if err != nil {
				continue
			}
			visit(word, postings)
		}
	}

	result := &fts.ResultSet{Stats: fts.Stats{"universe": len(universe), "excluded": len(excluded)}}
	for path := range universe {
		if _, isExcluded := excluded[path]; isExcluded {
			continue
		}
		result.Matches = append(result.Matches, fts.Match{Path: path})
	}
	sort.Slice(result.Matches, func(i, j int) bool { return result.Matches[i].Path < result.Matches[j].Path })
	return result, nil
}

// Build performs a full rebuild: scan supplies raw records to the add
// callback, which posts them into a fresh in-memory index before it
// replaces the live one.
func (e *Engine) Build(ctx context.Context, scan func(ctx context.Context, add fts.AddCallback) error) error {
	fresh := memstore.NewMemoryIndex()
	add := func(word, path string, meta map[string]string) error {
		fresh.Upsert(word, path, meta)
		return nil
	}
	if err := scan(ctx, add); err != nil {
		return fmt.Errorf("rebuilding substrate: %w", err)
	}
	e.mem = fresh
	e.logger.Info("substrate rebuilt", "words", fresh.WordCount())
	return nil
}

// WordUpsert is one (word, path, meta) posting, the unit internal/
// substrateclient batches a Build scan into before shipping it to
// RebuildFromUpserts: a scan's add callback is a closure and can't cross
// an RPC boundary the way Build's signature assumes.
type WordUpsert struct {
	Word string
	Path string
	Meta map[string]string
}

// RebuildFromUpserts is the remote-substrate counterpart of Build: the
// caller runs its own scan locally and ships the resulting postings here
// in one batch instead of handing over a callback.
func (e *Engine) RebuildFromUpserts(ctx context.Context, upserts []WordUpsert) (int, error) {
	fresh := memstore.NewMemoryIndex()
	for _, u := range upserts {
		fresh.Upsert(u.Word, u.Path, u.Meta)
	}
	e.mem = fresh
	e.logger.Info("substrate rebuilt via rpc batch", "words", fresh.WordCount())
	return fresh.WordCount(), nil
}

// ListWords returns every distinct word currently posted, across the
// live in-memory index and all flushed segments. internal/substrateclient
// uses this to run a blacklisting predicate locally (it's a Go closure
// and can't cross the wire) before asking ResolveBlacklist to compute the
// excluded/universe sets against the words that matched.
func (e *Engine) ListWords(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	e.mem.Scan(func(word string, _ memstore.PostingList) { seen[word] = struct{}{} })
	e.readMu.RLock()
	readers := append([]*segment.Reader(nil), e.readers...)
	e.readMu.RUnlock()
	for _, r := range readers {
		for _, w := range r.Words() {
			seen[w] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	sort.Strings(out)
	return out, nil
}

// ResolveBlacklist is QueryBlacklisting with the predicate already
// applied: matchedWords is the subset of ListWords' output the caller's
// callback reported true for. It computes the same universe-minus-
// excluded result QueryBlacklisting does, just without holding a live
// callback across the scan.
func (e *Engine) ResolveBlacklist(ctx context.Context, matchedWords []string) (*fts.ResultSet, error) {
	matched := make(map[string]struct{}, len(matchedWords))
	for _, w := range matchedWords {
		matched[w] = struct{}{}
	}
	return e.QueryBlacklisting(ctx, func(word string) bool {
		_, ok := matched[word]
		return ok
	})
}

// AttachResultCache points Cache at a Redis-backed rescache.Store instead
// of the in-process map, so cached results survive restarts and are
// shared across every searcher replica pointed at the same Redis
// instance. cmd/searcher calls this once per shard at startup when Redis
// is configured and reachable.
func (e *Engine) AttachResultCache(store *rescache.Store) {
	e.resultCache = store
}

// AttachMetrics points WordsIndexedTotal, BlacklistScanDuration, and
// IndexFlushesTotal at m instead of leaving them unobserved. cmd/indexer
// and cmd/searcher call this once per shard's Engine at startup.
func (e *Engine) AttachMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// Cache reads (results == nil) or writes the cached ResultSet for
// (op, value), against the attached rescache.Store if cmd/searcher wired
// one in, or an in-process map otherwise.
func (e *Engine) Cache(ctx context.Context, op string, value string, results *fts.ResultSet) (*fts.ResultSet, error) {
	if e.resultCache != nil {
		if results != nil {
			return nil, e.resultCache.Set(ctx, op, value, results)
		}
		cached, ok, err := e.resultCache.Get(ctx, op, value)
		if err != nil {
			e.logger.Warn("result cache read failed, falling back to a live query", "error", err)
			return nil, nil
		}
		if !ok {
			return nil, nil
		}
		return cached, nil
	}

	key := op + "\x00" + value
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	if results != nil {
		e.cache[key] = results
		return nil, nil
	}
	return e.cache[key], nil
}

// CacheBackend reports which result cache backend is active, for
// diagnostics endpoints that don't otherwise have visibility into whether
// AttachResultCache was called.
func (e *Engine) CacheBackend() string {
	if e.resultCache != nil {
		return "redis"
	}
	return "in-process"
}

// InvalidateCache drops every cached result, against the attached
// rescache.Store if one was wired in, or the in-process map otherwise.
// internal/queryservice's CacheInvalidate handler
// (POST /api/v1/cache/invalidate) calls this for every shard.
func (e *Engine) InvalidateCache(ctx context.Context) error {
	if e.resultCache != nil {
		return e.resultCache.Invalidate(ctx)
	}
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.cache = make(map[string]*fts.ResultSet)
	return nil
}

func (e *Engine) countExact(word string) int {
	n := e.mem.Count(word)
	e.readMu.RLock()
	readers := append([]*segment.Reader(nil), e.readers...)
	e.readMu.RUnlock()
	for _, r := range readers {
		postings, err := r.Search(word)
		if err != nil {
			continue
		}
		n += len(postings)
	}
	return n
}

func (e *Engine) searchExact(word string) memstore.PostingList {
	out := e.mem.Search(word)
	e.readMu.RLock()
	readers := append([]*segment.Reader(nil), e.readers...)
	e.readMu.RUnlock()
	for _, r := range readers {
		postings, err := r.Search(word)
		if err != nil {
			e.logger.Error("segment search failed", "error", err)
			continue
		}
		out = append(out, postings...)
	}
	return dedupe(out)
}

func (e *Engine) countLike(match func(string) bool) int {
	return len(e.searchLike(match))
}

func (e *Engine) searchLike(match func(string) bool) memstore.PostingList {
	out := e.mem.SearchLike(match)
	e.readMu.RLock()
	readers := append([]*segment.Reader(nil), e.readers...)
	e.readMu.RUnlock()
	for _, r := range readers {
		for _, word := range r.Words() {
			if !match(word) {
				continue
			}
			postings, err := r.Search(word)
			if err != nil {
				continue
			}
			out = append(out, postings...)
		}
	}
	return dedupe(out)
}

func dedupe(postings memstore.PostingList) memstore.PostingList {
	if len(postings) <= 1 {
		return postings
	}
	seen := make(map[string]memstore.Posting, len(postings))
	for _, p := range postings {
		seen[p.Path] = p
	}
	out := make(memstore.PostingList, 0, len(seen))
	for _, p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// likeMatcher compiles a wildcard pattern ('*' -> any run, '?' -> single
// char) into a case-insensitive anchored matcher.
func likeMatcher(pattern string) (func(string) bool, error) {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("compiling wildcard pattern %q: %w", pattern, err)
	}
	return re.MatchString, nil
}

func (e *Engine) Flush() error {
	snapshot := e.mem.Snapshot()
	if len(snapshot) == 0 {
		return nil
	}
	name, err := e.writer.Write(snapshot)
	if err != nil {
		e.observeFlush("error")
		return fmt.Errorf("writing segment: %w", err)
	}
	reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, name))
	if err != nil {
		e.observeFlush("error")
		return fmt.Errorf("opening new segment: %w", err)
	}
	e.readMu.Lock()
	e.readers = append(e.readers, reader)
	e.readMu.Unlock()
	e.mem.Reset()
	e.observeFlush("ok")
	e.logger.Info("substrate segment flushed", "segment", name, "words", reader.TermCount())
	return nil
}

func (e *Engine) observeFlush(status string) {
	if e.metrics != nil {
		e.metrics.IndexFlushesTotal.WithLabelValues(status).Inc()
	}
}

func (e *Engine) StartFlushLoop(ctx context.Context) {
	if e.cfg.FlushInterval <= 0 {
		return
	}
	ticker := time.NewTicker(e.cfg.FlushInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				if err := e.Flush(); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if e.mem.WordCount() > 0 {
					if err := e.Flush(); err != nil {
						e.logger.Error("periodic flush failed", "error", err)
					}
				}
			}
		}
	}()
}

func (e *Engine) Close() error {
	if err := e.Flush(); err != nil {
		e.logger.Error("final flush on close failed", "error", err)
	}
	e.readMu.Lock()
	defer e.readMu.Unlock()
	for _, r := range e.readers {
		if err := r.Close(); err != nil {
			e.logger.Error("closing segment reader", "error", err)
		}
	}
	e.readers = nil
	return nil
}

// Reload rescans the data directory for segments written by another
// process (or a prior run) and opens any not already held, returning how
// many new segments were picked up.
func (e *Engine) Reload() (int, error) {
	before := len(e.readers)
	if err := e.loadExistingSegments(); err != nil {
		return 0, err
	}
	return len(e.readers) - before, nil
}

func (e *Engine) loadExistingSegments() error {
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading data directory: %w", err)
	}
	loaded := make(map[string]struct{}, len(e.readers))
	for _, r := range e.readers {
		loaded[filepath.Base(r.Path())] = struct{}{}
	}
	names := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".ftsg") {
			continue
		}
		if _, already := loaded[entry.Name()]; already {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, name))
		if err != nil {
			e.logger.Error("failed to open segment, skipping", "segment", name, "error", err)
			continue
		}
		e.readers = append(e.readers, reader)
	}
	e.logger.Info("segment recovery complete", "segments_loaded", len(e.readers))
	return nil
}
