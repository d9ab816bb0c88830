// Package proto defines the wire message types exchanged between the
// full-text index library and a remote substrate, for deployments that
// run the substrate as its own process (cmd/substrated) instead of
// in-process with the indexer/searcher. They are hand-written JSON
// structs rather than generated from .proto files, for zero-dependency
// use over the platform's lightweight JSON-over-TCP RPC layer (see
// pkg/grpc).
package proto

// HealthCheckResponse mirrors the gRPC health check spec.
type HealthCheckResponse struct {
	Status string `json:"status"` // SERVING, NOT_SERVING, UNKNOWN
}

// ---------- Substrate.HandleRecordUpdate ----------

// RecordUpdateRequest carries one posting add/remove: a nil NewValue
// removes the posting, a nil OldValue adds it.
type RecordUpdateRequest struct {
	Path     string            `json:"path"`
	Word     string            `json:"word"`
	OldValue *string           `json:"old_value,omitempty"`
	NewValue *string           `json:"new_value,omitempty"`
	Meta     map[string]string `json:"meta,omitempty"`
}

type RecordUpdateResponse struct{}

// ---------- Substrate.Count ----------

type CountRequest struct {
	Op    string `json:"op"`
	Value string `json:"value"`
}

type CountResponse struct {
	Count int `json:"count"`
}

// ---------- Substrate.Query ----------

type QueryRequest struct {
	Op     string   `json:"op"`
	Value  string   `json:"value"`
	Filter []string `json:"filter,omitempty"` // paths a previous chained Query narrowed to
}

type Match struct {
	Path     string            `json:"path"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type QueryResponse struct {
	Matches []Match        `json:"matches"`
	Stats   map[string]int `json:"stats,omitempty"`
}

// ---------- Substrate.ListWords / ResolveBlacklist ----------
//
// A blacklisting-scan predicate is a Go closure and can't cross the
// wire, so the scan is split in two: the client fetches every distinct
// word with ListWords, runs its predicate locally, then ships back only
// the words that matched so the substrate can resolve them into
// excluded paths without ever seeing the predicate itself.

type ListWordsResponse struct {
	Words []string `json:"words"`
}

type ResolveBlacklistRequest struct {
	MatchedWords []string `json:"matched_words"`
}

type ResolveBlacklistResponse struct {
	Matches []Match        `json:"matches"`
	Stats   map[string]int `json:"stats,omitempty"`
}

// ---------- Substrate.RebuildFromUpserts ----------
//
// Build's scan callback has the same cross-the-wire problem as a
// blacklisting predicate: the client runs scan locally and batches the
// resulting (word, path, meta) triples into one request instead.

type Upsert struct {
	Word string            `json:"word"`
	Path string            `json:"path"`
	Meta map[string]string `json:"meta,omitempty"`
}

type RebuildRequest struct {
	Upserts []Upsert `json:"upserts"`
}

type RebuildResponse struct {
	WordsIndexed int `json:"words_indexed"`
}

// ---------- Substrate.Cache ----------

type CacheRequest struct {
	Op      string  `json:"op"`
	Value   string  `json:"value"`
	Matches []Match `json:"matches,omitempty"` // non-nil on a write
	Write   bool    `json:"write"`
}

type CacheResponse struct {
	Matches []Match        `json:"matches,omitempty"`
	Stats   map[string]int `json:"stats,omitempty"`
	Found   bool           `json:"found"`
}
