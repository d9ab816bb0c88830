// Package index implements the index maintainer (component D): it diffs
// the old and new value of a record's indexed text field and translates
// the diff into substrate posting mutations.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/kvstore/fulltext/pkg/fulltext/metadata"
	"github.com/kvstore/fulltext/pkg/fulltext/substrate"
	"github.com/kvstore/fulltext/pkg/fulltext/tokenize"
)

// ForbiddenKey is the literal key full-text indexes may never be
// constructed against (node keys can't be full-text indexed).
const ForbiddenKey = "{key}"

// InvalidKeyError is returned by New when key is ForbiddenKey.
type InvalidKeyError struct{ Key string }

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("fulltext: cannot construct an index on key %q", e.Key)
}

// Config configures a Maintainer: which record field to index, the
// locale field lookup, and the tokenizer options to apply on both sides
// of a diff.
type Config struct {
	Key            string // the record field holding the indexed text
	TextLocaleKey  string // record field holding a per-record locale override
	DefaultLocale  string
	MinLength      int
	MaxLength      int
	Blacklist      map[string]struct{}
	Whitelist      map[string]struct{}
	UseStoplist    bool
	Prepare        func(text, locale, keepChars string) string
	Stemming       func(word, locale string) (string, bool)
}

// Maintainer owns tokenization/diff logic only; durability and concurrency
// belong to the substrate it drives.
type Maintainer struct {
	cfg  Config
	sub  substrate.Substrate
	log  *slog.Logger
}

// New constructs a Maintainer. It fails if cfg.Key is the forbidden
// "{key}" sentinel.
func New(cfg Config, sub substrate.Substrate) (*Maintainer, error) {
	if cfg.Key == ForbiddenKey {
		return nil, &InvalidKeyError{Key: cfg.Key}
	}
	return &Maintainer{
		cfg: cfg,
		sub: sub,
		log: slog.Default().With("component", "fulltext-maintainer"),
	}, nil
}

// Record is the minimal view of a record the maintainer needs: field
// lookups by name. Callers adapt their own record representation to this.
type Record map[string]any

// textAndLocale extracts the indexed field's text (joining array values
// with a single space) and the record's locale override, if any.
func (m *Maintainer) textAndLocale(rec Record) (string, string) {
	if rec == nil {
		return "", m.cfg.DefaultLocale
	}
	var text string
	switch v := rec[m.cfg.Key].(type) {
	case nil:
		text = ""
	case string:
		text = v
	case []string:
		text = strings.Join(v, " ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		text = strings.Join(parts, " ")
	}
	locale := m.cfg.DefaultLocale
	if m.cfg.TextLocaleKey != "" {
		if l, ok := rec[m.cfg.TextLocaleKey].(string); ok && l != "" {
			locale = l
		}
	}
	return text, locale
}

func (m *Maintainer) tokenizeOpts(locale string) tokenize.Options {
	return tokenize.Options{
		Locale:      locale,
		Prepare:     m.cfg.Prepare,
		Stemming:    m.cfg.Stemming,
		MinLength:   m.cfg.MinLength,
		MaxLength:   m.cfg.MaxLength,
		Blacklist:   m.cfg.Blacklist,
		Whitelist:   m.cfg.Whitelist,
		UseStoplist: m.cfg.UseStoplist,
	}
}

// HandleRecordUpdate diffs the old and new text at path and issues the
// resulting add/remove posting mutations to the substrate, in parallel,
// returning only once every mutation has completed.
func (m *Maintainer) HandleRecordUpdate(ctx context.Context, path string, oldRecord, newRecord Record) error {
	oldText, oldLocale := m.textAndLocale(oldRecord)
	newText, newLocale := m.textAndLocale(newRecord)

	oldInfo, err := tokenize.Tokenize(oldText, m.tokenizeOpts(oldLocale))
	if err != nil {
		return fmt.Errorf("tokenizing old value at %s: %w", path, err)
	}
	newInfo, err := tokenize.Tokenize(newText, m.tokenizeOpts(newLocale))
	if err != nil {
		return fmt.Errorf("tokenizing new value at %s: %w", path, err)
	}

	removed, added := diff(oldInfo, newInfo)

	if len(added) == 0 && newInfo.UniqueWordCount() == 0 && newText != "" {
		m.log.Warn("record yields zero kept words", "path", path)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(removed)+len(added))

	i := 0
	for _, w := range removed {
		wg.Add(1)
		go func(i int, word string) {
			defer wg.Done()
			if err := m.sub.HandleRecordUpdate(ctx, path, word, strPtr(word), nil, nil); err != nil {
				errs[i] = fmt.Errorf("removing word %q at %s: %w", word, path, err)
			}
		}(i, w)
		i++
	}
	for _, w := range added {
		wg.Add(1)
		go func(i int, word string) {
			defer wg.Done()
			wi := newInfo.Words[word]
			encoded := metadata.Encode(wi.Indexes, word, path)
			meta := map[string]string{metadata.FieldName: encoded}
			if err := m.sub.HandleRecordUpdate(ctx, path, word, nil, strPtr(word), meta); err != nil {
				errs[i] = fmt.Errorf("adding word %q at %s: %w", word, path, err)
			}
		}(i, w)
		i++
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// diff computes removed = old\new, added = new\old, and changed (present
// in both but whose occurs/indexes differ), with changed members folded
// into both removed and added so the substrate sees a clean remove+add.
func diff(oldInfo, newInfo *tokenize.TextInfo) (removed, added []string) {
	removedSet := make(map[string]struct{})
	addedSet := make(map[string]struct{})

	for w := range oldInfo.Words {
		if _, ok := newInfo.Words[w]; !ok {
			removedSet[w] = struct{}{}
		}
	}
	for w := range newInfo.Words {
		if _, ok := oldInfo.Words[w]; !ok {
			addedSet[w] = struct{}{}
		}
	}
	for w, oldWI := range oldInfo.Words {
		newWI, ok := newInfo.Words[w]
		if !ok {
			continue
		}
		if oldWI.Occurs() != newWI.Occurs() || !sameIndexes(oldWI.Indexes, newWI.Indexes) {
			removedSet[w] = struct{}{}
			addedSet[w] = struct{}{}
		}
	}

	removed = setToSortedSlice(removedSet)
	added = setToSortedSlice(addedSet)
	return removed, added
}

func sameIndexes(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func setToSortedSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

func strPtr(s string) *string { return &s }
