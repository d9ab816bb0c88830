// Package substrate declares the interface the full-text index consumes
// from the generic B+tree / record index substrate it is built on top of.
// Durability, on-disk layout, and concurrency inside the substrate are the
// substrate's concern; this package only specifies the contract.
package substrate

import "context"

// Op is a comparison operator the substrate understands for a posting
// lookup.
type Op string

const (
	OpEquals Op = "=="
	OpLike   Op = "like"
)

// Match is one entry returned by a query: the record pointer the posting
// was stored under, plus its metadata (the encoded "_occurs_" string,
// keyed by FieldName).
type Match struct {
	Path     string
	Metadata map[string]string
}

// Hint documents why a query returned fewer, or zero, results. Hints are
// not errors.
type Hint struct {
	Type HintType
	Word string
}

type HintType string

const (
	HintIgnoredWord HintType = "ignoredWord"
	HintMissingWord HintType = "missingWord"
)

// Stats carries counters a caller may want surfaced alongside a result.
type Stats map[string]int

// ResultSet is an ordered collection of matches plus the bookkeeping the
// query executor and cache attach to it.
type ResultSet struct {
	Matches   []Match
	FilterKey string
	Stats     Stats
	Hints     []Hint
}

// Paths returns the result set's match paths, in order.
func (r *ResultSet) Paths() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		out[i] = m.Path
	}
	return out
}

// AddHint appends a hint if one for the same type+word isn't already
// present.
func (r *ResultSet) AddHint(h Hint) {
	for _, existing := range r.Hints {
		if existing == h {
			return
		}
	}
	r.Hints = append(r.Hints, h)
}

// QueryFilter restricts a query to matches whose path also appears in the
// filter's set, used for the sequential cardinality-ordered AND fan-in.
type QueryFilter struct {
	Paths map[string]struct{}
}

// BlacklistingCallback is invoked once per distinct posting key during a
// blacklisting scan. It reports whether the key matches; the substrate
// itself resolves a matching key's own postings into excluded paths,
// since only the substrate knows what a key currently posts.
type BlacklistingCallback func(key string) bool

// AddCallback is supplied to Build; implementations call it once per word
// a raw value should be posted under.
type AddCallback func(word, path string, meta map[string]string) error

// Substrate is the generic record-index contract the full-text index is
// built against.
type Substrate interface {
	// HandleRecordUpdate adds or removes a posting keyed on the scalar
	// value held in oldValue/newValue under key. A nil newValue removes;
	// a nil oldValue adds.
	HandleRecordUpdate(ctx context.Context, path string, key string, oldValue, newValue *string, meta map[string]string) error

	// Count reports the cardinality of postings matching op/value.
	Count(ctx context.Context, op Op, value string) (int, error)

	// Query returns the matches for op/value, optionally restricted to a
	// filter produced by a previous Query call in the same chain.
	Query(ctx context.Context, op Op, value string, filter *QueryFilter) (*ResultSet, error)

	// QueryBlacklisting scans all postings, invoking cb once per distinct
	// key, and returns every indexed path that no matching key posts: the
	// universe of paths minus those any matching key reported.
	QueryBlacklisting(ctx context.Context, cb BlacklistingCallback) (*ResultSet, error)

	// Build performs a full rebuild, calling add for each word the raw
	// scan callback extracts from each record.
	Build(ctx context.Context, scan func(ctx context.Context, add AddCallback) error) error

	// Cache reads (results == nil) or writes (results != nil) the cached
	// ResultSet for (op, value).
	Cache(ctx context.Context, op string, value string, results *ResultSet) (*ResultSet, error)
}
