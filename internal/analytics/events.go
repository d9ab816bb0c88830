package analytics

import "time"

type EventType string

const (
	EventSearch        EventType = "search"
	EventCacheHit      EventType = "cache_hit"
	EventCacheMiss     EventType = "cache_miss"
	EventRecordIndexed EventType = "record_indexed"
	EventZeroResult    EventType = "zero_result"
)

// SearchEvent is published by internal/queryservice after every successful
// fulltext query (a query that fails is not tracked), and consumed by Aggregator to compute AggregatedStats.
type SearchEvent struct {
	Type       EventType `json:"type"`
	Query      string    `json:"query"`
	Op         string    `json:"op"`
	TotalHits  int       `json:"total_hits"`
	Returned   int       `json:"returned"`
	LatencyMs  int64     `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	ShardCount int       `json:"shard_count"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
}

// RecordEvent is published by internal/ingest after a record update is
// successfully posted into a shard's substrate.
type RecordEvent struct {
	Type      EventType `json:"type"`
	Path      string    `json:"path"`
	ShardID   int       `json:"shard_id"`
	WordCount int       `json:"word_count"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}
