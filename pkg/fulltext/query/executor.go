package query

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kvstore/fulltext/pkg/fulltext/metadata"
	"github.com/kvstore/fulltext/pkg/fulltext/substrate"
	"github.com/kvstore/fulltext/pkg/fulltext/tokenize"
	"github.com/kvstore/fulltext/pkg/tracing"
)

// Operator is one of the two operators this index exposes.
type Operator string

const (
	OpContains    Operator = "fulltext:contains"
	OpNotContains Operator = "fulltext:!contains"

	// OpBlacklistingScan is never a legal caller-supplied operator; it
	// exists only so Execute can report NotImplemented the way spec.md
	// requires when a blacklisting-scan value reaches the query entry
	// point instead of going through OpNotContains.
	OpBlacklistingScan Operator = "blacklisting-scan"
)

// UnsupportedOperatorError is returned for any operator outside the
// allowed set.
type UnsupportedOperatorError struct{ Operator Operator }

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("fulltext: unsupported operator %q", e.Operator)
}

// NotImplementedError is returned when a blacklisting-scan value is
// passed directly as a query operator.
type NotImplementedError struct{ Reason string }

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("fulltext: not implemented: %s", e.Reason)
}

// Options configures execution: tokenizer settings mirroring the index's
// own configuration (so query words normalize the same way indexed words
// did), plus phrase/wildcard knobs.
type Options struct {
	Locale                    string
	MinLength                 int
	MaxLength                 int
	Blacklist                 map[string]struct{}
	Whitelist                 map[string]struct{}
	UseStoplist               bool
	Stemming                  func(word, locale string) (string, bool)
	MinimumWildcardWordLength int // default 2

	phrase bool // set internally for recursive phrase sub-queries
}

func (o Options) tokenizeOpts() tokenize.Options {
	return tokenize.Options{
		Locale:       o.Locale,
		IncludeChars: "*?",
		Stemming:     o.Stemming,
		MinLength:    o.MinLength,
		MaxLength:    o.MaxLength,
		Blacklist:    o.Blacklist,
		Whitelist:    o.Whitelist,
		UseStoplist:  o.UseStoplist,
	}
}

func (o Options) wildcardMinLen() int {
	if o.MinimumWildcardWordLength > 0 {
		return o.MinimumWildcardWordLength
	}
	return 2
}

// Executor runs parsed query trees against a substrate.
type Executor struct {
	sub substrate.Substrate
}

func NewExecutor(sub substrate.Substrate) *Executor {
	return &Executor{sub: sub}
}

// Execute parses raw and runs it under op, the public entry point
// matching spec.md's §6.2 operator surface.
func (e *Executor) Execute(ctx context.Context, op Operator, raw string, opts Options) (*substrate.ResultSet, error) {
	ctx, span := tracing.StartChildSpan(ctx, "query.Execute")
	span.SetAttr("op", string(op))
	defer span.End()

	if op == OpBlacklistingScan {
		return nil, &NotImplementedError{Reason: "query invoked with a blacklisting operator value"}
	}
	if op != OpContains && op != OpNotContains {
		return nil, &UnsupportedOperatorError{Operator: op}
	}

	_, parseSpan := tracing.StartChildSpan(ctx, "query.parse")
	tree := Parse(raw)
	parseSpan.End()

	if op == OpNotContains {
		return e.executeNotContains(ctx, tree, raw, opts)
	}
	return e.executeContains(ctx, tree, raw, opts)
}

func (e *Executor) executeContains(ctx context.Context, tree *Tree, raw string, opts Options) (*substrate.ResultSet, error) {
	cacheCtx, cacheSpan := tracing.StartChildSpan(ctx, "query.cache_get")
	cached, err := e.cacheGet(cacheCtx, OpContains, raw)
	cacheSpan.End()
	if err == nil && cached != nil {
		return cached, nil
	}

	branchCtx, branchSpan := tracing.StartChildSpan(ctx, "query.execute_branches")
	var union *substrate.ResultSet
	seen := make(map[string]struct{})
	for _, branch := range tree.Branches {
		result, err := e.executeBranch(branchCtx, branch, opts)
		if err != nil {
			branchSpan.End()
			return nil, err
		}
		if union == nil {
			union = &substrate.ResultSet{Stats: substrate.Stats{}}
		}
		for _, m := range result.Matches {
			if _, dup := seen[m.Path]; dup {
				continue
			}
			seen[m.Path] = struct{}{}
			union.Matches = append(union.Matches, m)
		}
		union.Hints = append(union.Hints, result.Hints...)
		for k, v := range result.Stats {
			union.Stats[k] += v
		}
	}
	branchSpan.End()
	if union == nil {
		union = &substrate.ResultSet{Stats: substrate.Stats{}}
	}
	e.cacheSet(ctx, OpContains, raw, union)
	return union, nil
}

func (e *Executor) executeBranch(ctx context.Context, branch *Branch, opts Options) (*substrate.ResultSet, error) {
	var subResults []*substrate.ResultSet

	for _, phrase := range branch.Phrases {
		phraseOpts := opts
		phraseOpts.phrase = true
		res, err := e.executeBareWords(ctx, phrase, phraseOpts)
		if err != nil {
			return nil, err
		}
		subResults = append(subResults, res)
	}

	if strings.TrimSpace(branch.Residual) != "" {
		res, err := e.executeBareWords(ctx, branch.Residual, opts)
		if err != nil {
			return nil, err
		}
		subResults = append(subResults, res)
	}

	if len(subResults) == 0 {
		return &substrate.ResultSet{Stats: substrate.Stats{}}, nil
	}
	if len(subResults) == 1 {
		return subResults[0], nil
	}
	return intersectResultSets(subResults), nil
}

func intersectResultSets(results []*substrate.ResultSet) *substrate.ResultSet {
	sort.Slice(results, func(i, j int) bool { return len(results[i].Matches) < len(results[j].Matches) })
	smallest := results[0]

	others := make([]map[string]struct{}, len(results)-1)
	for i, r := range results[1:] {
		set := make(map[string]struct{}, len(r.Matches))
		for _, m := range r.Matches {
			set[m.Path] = struct{}{}
		}
		others[i] = set
	}

	out := &substrate.ResultSet{Stats: substrate.Stats{}}
	for _, m := range smallest.Matches {
		inAll := true
		for _, set := range others {
			if _, ok := set[m.Path]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			out.Matches = append(out.Matches, m)
		}
	}
	for _, r := range results {
		out.Hints = append(out.Hints, r.Hints...)
		for k, v := range r.Stats {
			out.Stats[k] += v
		}
	}
	return out
}

// executeBareWords tokenizes queryText (preserving '*'/'?'), prunes
// wildcard-only and too-short wildcard tokens, looks up each surviving
// word's cardinality, and chains substrate queries smallest-first,
// passing each result as the next word's filter.
func (e *Executor) executeBareWords(ctx context.Context, queryText string, opts Options) (*substrate.ResultSet, error) {
	info, err := tokenize.Tokenize(queryText, opts.tokenizeOpts())
	if err != nil {
		return nil, fmt.Errorf("tokenizing query: %w", err)
	}

	out := &substrate.ResultSet{Stats: substrate.Stats{}}
	for _, w := range info.Ignored {
		out.AddHint(substrate.Hint{Type: substrate.HintIgnoredWord, Word: w})
	}

	words := pruneWildcards(info.ToArray(), opts.wildcardMinLen(), out)
	if len(words) == 0 {
		return out, nil
	}

	type wordCount struct {
		word  string
		op    substrate.Op
		count int
	}
	counts := make([]wordCount, 0, len(words))
	for _, w := range words {
		op := substrate.OpEquals
		if strings.ContainsAny(w, "*?") {
			op = substrate.OpLike
		}
		n, err := e.sub.Count(ctx, op, w)
		if err != nil {
			return nil, fmt.Errorf("counting word %q: %w", w, err)
		}
		if n == 0 {
			out.AddHint(substrate.Hint{Type: substrate.HintMissingWord, Word: w})
			return out, nil
		}
		counts = append(counts, wordCount{word: w, op: op, count: n})
	}

	sort.SliceStable(counts, func(i, j int) bool { return counts[i].count < counts[j].count })

	perWord := make(map[string]*substrate.ResultSet, len(counts))
	var filter *substrate.QueryFilter
	for _, wc := range counts {
		res, err := e.sub.Query(ctx, wc.op, wc.word, filter)
		if err != nil {
			return nil, fmt.Errorf("querying word %q: %w", wc.word, err)
		}
		perWord[wc.word] = res
		paths := make(map[string]struct{}, len(res.Matches))
		for _, m := range res.Matches {
			paths[m.Path] = struct{}{}
		}
		filter = &substrate.QueryFilter{Paths: paths}
	}

	// Re-index per-word result sets by original word order for the
	// phrase checker, then intersect by path across every word.
	inOrder := make([]*substrate.ResultSet, len(words))
	for i, w := range words {
		inOrder[i] = perWord[w]
	}
	merged := intersectResultSets(append([]*substrate.ResultSet(nil), inOrder...))
	merged.Hints = append(merged.Hints, out.Hints...)

	if opts.phrase {
		_, phraseSpan := tracing.StartChildSpan(ctx, "query.phrase_check")
		offsets := phraseOffsets(info, words)
		merged = filterByPhrase(merged, inOrder, offsets)
		phraseSpan.End()
	}

	return merged, nil
}

// phraseOffsets returns, for each surviving word of a phrase (in the
// order words lists them), the raw token slot its first occurrence held
// in the phrase — counting slots a stoplisted word consumed but never
// got indexed under. A word dropped from the middle of a phrase still
// reserves its slot this way, rather than letting the words after it
// slide down to fill the gap.
func phraseOffsets(info *tokenize.TextInfo, words []string) []int {
	offsets := make([]int, len(words))
	for i, w := range words {
		if wi, ok := info.Words[w]; ok && len(wi.RawIndexes) > 0 {
			offsets[i] = wi.RawIndexes[0]
			continue
		}
		offsets[i] = i
	}
	return offsets
}

// filterByPhrase drops matches whose decoded per-word positions don't
// contain a contiguous run anchored at the words' phrase-relative
// offsets.
func filterByPhrase(merged *substrate.ResultSet, perWordInOrder []*substrate.ResultSet, offsets []int) *substrate.ResultSet {
	metaByPath := make([]map[string]map[string]string, len(perWordInOrder))
	for i, rs := range perWordInOrder {
		m := make(map[string]map[string]string, len(rs.Matches))
		for _, match := range rs.Matches {
			m[match.Path] = match.Metadata
		}
		metaByPath[i] = m
	}

	out := &substrate.ResultSet{Stats: merged.Stats, Hints: merged.Hints}
	for _, match := range merged.Matches {
		positions := make([][]int, len(perWordInOrder))
		ok := true
		for i := range perWordInOrder {
			meta, found := metaByPath[i][match.Path]
			if !found {
				ok = false
				break
			}
			positions[i] = decodeOccurs(meta)
		}
		if ok && MatchesWithOffsets(positions, offsets) {
			out.Matches = append(out.Matches, match)
		}
	}
	return out
}

func decodeOccurs(meta map[string]string) []int {
	if meta == nil {
		return nil
	}
	return metadata.Decode(meta[metadata.FieldName])
}

func pruneWildcards(words []string, minLen int, hints *substrate.ResultSet) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		trimmed := strings.Trim(w, "*?")
		if trimmed == "" {
			continue // wildcard-only token, unconditionally ignored
		}
		if idx := strings.IndexByte(w, '*'); idx >= 0 && idx < minLen {
			hints.AddHint(substrate.Hint{Type: substrate.HintIgnoredWord, Word: w})
			continue
		}
		out = append(out, w)
	}
	return out
}

// executeNotContains implements the !contains path: build a per-word
// check (anchored regex for wildcard words, literal match otherwise) and
// run it through the substrate's blacklisting scan.
func (e *Executor) executeNotContains(ctx context.Context, tree *Tree, raw string, opts Options) (*substrate.ResultSet, error) {
	cacheCtx, cacheSpan := tracing.StartChildSpan(ctx, "query.cache_get")
	cached, err := e.cacheGet(cacheCtx, OpNotContains, raw)
	cacheSpan.End()
	if err == nil && cached != nil {
		return cached, nil
	}

	var words []string
	hints := &substrate.ResultSet{Stats: substrate.Stats{}}
	for _, branch := range tree.Branches {
		info, err := tokenize.Tokenize(branch.Residual, opts.tokenizeOpts())
		if err != nil {
			return nil, fmt.Errorf("tokenizing negated query: %w", err)
		}
		for _, w := range info.Ignored {
			hints.AddHint(substrate.Hint{Type: substrate.HintIgnoredWord, Word: w})
		}
		words = append(words, pruneWildcards(info.ToArray(), opts.wildcardMinLen(), hints)...)
		for _, phrase := range branch.Phrases {
			pinfo, err := tokenize.Tokenize(phrase, opts.tokenizeOpts())
			if err != nil {
				return nil, fmt.Errorf("tokenizing negated phrase: %w", err)
			}
			words = append(words, pruneWildcards(pinfo.ToArray(), opts.wildcardMinLen(), hints)...)
		}
	}

	checks := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		if strings.ContainsAny(w, "*?") {
			checks[i] = wildcardToRegex(w)
		}
	}

	result, err := e.sub.QueryBlacklisting(ctx, func(key string) bool {
		for i, w := range words {
			if checks[i] != nil {
				if checks[i].MatchString(key) {
					return true
				}
				continue
			}
			if strings.EqualFold(key, w) {
				return true
			}
		}
		return false
	})
	if err != nil {
		return nil, fmt.Errorf("blacklisting scan: %w", err)
	}
	result.Hints = append(result.Hints, hints.Hints...)
	e.cacheSet(ctx, OpNotContains, raw, result)
	return result, nil
}

func wildcardToRegex(word string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range word {
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
		return regexp.MustCompile("$^") // matches nothing
	}
	return re
}

func (e *Executor) cacheGet(ctx context.Context, op Operator, raw string) (*substrate.ResultSet, error) {
	return e.sub.Cache(ctx, string(op), normalizeQueryKey(raw), nil)
}

func (e *Executor) cacheSet(ctx context.Context, op Operator, raw string, result *substrate.ResultSet) {
	_, _ = e.sub.Cache(ctx, string(op), normalizeQueryKey(raw), result)
}

func normalizeQueryKey(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
