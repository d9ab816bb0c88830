// Package tokenize implements the TextInfo tokenizer: text in, a map of
// normalized words to their ordered positions out, plus the list of
// tokens that were dropped along the way.
package tokenize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/kvstore/fulltext/pkg/fulltext/locale"
)

// WordInfo is the per-word position record for one normalized word in a
// TextInfo: the ordered list of kept-word indexes it occurs at, the
// ordered list of raw token slots (kept and ignored tokens both counted)
// each occurrence fell on, and the ordered list of byte offsets where each
// occurrence started. Those offsets index the text after transliteration
// and apostrophe removal, not the caller's original string.
type WordInfo struct {
	Indexes       []int
	RawIndexes    []int
	SourceIndexes []int
}

// Occurs returns the number of times the word occurs.
func (w *WordInfo) Occurs() int {
	return len(w.Indexes)
}

func (w *WordInfo) add(index, rawIndex, sourceIndex int) {
	w.Indexes = append(w.Indexes, index)
	w.RawIndexes = append(w.RawIndexes, rawIndex)
	w.SourceIndexes = append(w.SourceIndexes, sourceIndex)
}

// TextInfo is the tokenization result for one piece of text: a map from
// normalized word to its WordInfo, plus the insertion-ordered, deduplicated
// list of words that were dropped (stemming rejection or filter rejection).
type TextInfo struct {
	Words   map[string]*WordInfo
	Ignored []string

	ignoredSeen map[string]struct{}
	wordOrder   []string // insertion order of Words, for ToSequence/ToArray
	nextIndex   int
	rawIndex    int // advances for every matched token, kept or ignored
}

func newTextInfo() *TextInfo {
	return &TextInfo{
		Words:       make(map[string]*WordInfo),
		ignoredSeen: make(map[string]struct{}),
	}
}

// markIgnored records word as dropped and advances rawIndex: a dropped
// token still occupies a slot in the original token stream, which is
// what lets a phrase query recover the relative position a stoplisted
// word would have held without needing it in the index.
func (t *TextInfo) markIgnored(word string) {
	t.rawIndex++
	if _, seen := t.ignoredSeen[word]; seen {
		return
	}
	t.ignoredSeen[word] = struct{}{}
	t.Ignored = append(t.Ignored, word)
}

func (t *TextInfo) record(word string, sourceOffset int) {
	wi, ok := t.Words[word]
	if !ok {
		wi = &WordInfo{}
		t.Words[word] = wi
		t.wordOrder = append(t.wordOrder, word)
	}
	wi.add(t.nextIndex, t.rawIndex, sourceOffset)
	t.nextIndex++
	t.rawIndex++
}

// WordCount is the sum of every WordInfo's Occurs(): the total number of
// kept word slots.
func (t *TextInfo) WordCount() int {
	n := 0
	for _, wi := range t.Words {
		n += wi.Occurs()
	}
	return n
}

// UniqueWordCount is the number of distinct normalized words.
func (t *TextInfo) UniqueWordCount() int {
	return len(t.Words)
}

// ToArray returns the unique words, in first-occurrence order.
func (t *TextInfo) ToArray() []string {
	out := make([]string, len(t.wordOrder))
	copy(out, t.wordOrder)
	return out
}

// ToSequence reconstructs the dense-at-kept-indexes word array: slot i
// holds the word whose WordInfo contains index i. Ignored tokens never
// take a kept-word index, so the array has no gaps and holds only kept
// words; downstream phrase logic walks the per-word position lists, never
// this array directly.
func (t *TextInfo) ToSequence() []string {
	seq := make([]string, t.nextIndex)
	for word, wi := range t.Words {
		for _, idx := range wi.Indexes {
			seq[idx] = word
		}
	}
	return seq
}

// Options configures a single Tokenize call.
type Options struct {
	Locale       string
	Pattern      string // overrides the locale pattern if non-empty
	Flags        string // overrides the locale flags if non-empty
	IncludeChars string // characters to keep alive inside the pattern's class

	// Prepare, if set, replaces the text before matching. It receives the
	// locale and an opaque pass-through built from IncludeChars — its
	// historical "keepChars" argument is treated as opaque, not parsed.
	Prepare func(text, locale, keepChars string) string

	// Stemming, if set, is called per raw matched word before any other
	// filtering. A non-string-looking rejection is signalled by returning
	// ok=false; the word is then recorded as ignored without advancing
	// the position counter.
	Stemming func(word, locale string) (string, bool)

	MinLength   int // default 1
	MaxLength   int // default 25
	Blacklist   map[string]struct{}
	Whitelist   map[string]struct{}
	UseStoplist bool
}

// PatternShapeError is returned when IncludeChars is supplied but the
// effective pattern contains no character class to splice into.
type PatternShapeError struct {
	Pattern string
}

func (e *PatternShapeError) Error() string {
	return fmt.Sprintf("fulltext: pattern %q has no character class to receive includeChars", e.Pattern)
}

// Tokenize runs the full pipeline (locale resolution, pattern assembly,
// transliteration fixed-point, apostrophe removal, match iteration,
// stemming/filtering) over text and returns the resulting TextInfo.
//
// Nil-like input (empty string) yields an empty TextInfo, never an error.
func Tokenize(text string, opts Options) (*TextInfo, error) {
	info := newTextInfo()
	if text == "" {
		return info, nil
	}

	loc := locale.Get(opts.Locale)

	pattern := opts.Pattern
	if pattern == "" {
		pattern = loc.Pattern
	}
	if opts.IncludeChars != "" {
		spliced, err := spliceIncludeChars(pattern, opts.IncludeChars)
		if err != nil {
			return nil, err
		}
		pattern = spliced
	}

	flags := opts.Flags
	if flags == "" {
		flags = loc.Flags
	}

	blacklist := unionSets(opts.Blacklist, nil)
	if opts.UseStoplist {
		blacklist = unionSets(blacklist, loc.Stoplist)
	}

	if opts.Prepare != nil {
		text = opts.Prepare(text, opts.Locale, "\""+opts.IncludeChars)
	}

	text = translit(text)
	text = strings.ReplaceAll(text, "'", "")

	re, err := locale.Compile(pattern, flags)
	if err != nil {
		return nil, fmt.Errorf("fulltext: compiling tokenizer pattern: %w", err)
	}

	minLen := opts.MinLength
	if minLen == 0 {
		minLen = 1
	}
	maxLen := opts.MaxLength
	if maxLen == 0 {
		maxLen = 25
	}

	locs := re.FindAllStringIndex(text, -1)
	for _, loc := range locs {
		raw := text[loc[0]:loc[1]]
		word := raw

		if opts.Stemming != nil {
			stemmed, ok := opts.Stemming(word, opts.Locale)
			if !ok {
				info.markIgnored(word)
				continue
			}
			word = stemmed
		}

		word = strings.ToLower(word)

		if len(word) < minLen || inSet(blacklist, word) {
			if inSet(opts.Whitelist, word) {
				// accepted despite length/blacklist rejection
			} else {
				info.markIgnored(word)
				continue
			}
		} else if len(word) > maxLen {
			word = word[:maxLen]
		}

		info.record(word, loc[0])
	}

	return info, nil
}

func inSet(set map[string]struct{}, word string) bool {
	if set == nil {
		return false
	}
	_, ok := set[word]
	return ok
}

func unionSets(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for w := range a {
		out[w] = struct{}{}
	}
	for w := range b {
		out[w] = struct{}{}
	}
	return out
}

// spliceIncludeChars escapes each rune in includeChars and inserts the
// escaped run immediately after every '[' in pattern. Fails if pattern has
// no character class at all.
func spliceIncludeChars(pattern, includeChars string) (string, error) {
	if !strings.Contains(pattern, "[") {
		return "", &PatternShapeError{Pattern: pattern}
	}
	var escaped strings.Builder
	for _, r := range includeChars {
		escaped.WriteString(regexp.QuoteMeta(string(r)))
	}
	return strings.ReplaceAll(pattern, "[", "["+escaped.String()), nil
}

// translit applies a Unicode->ASCII transliteration repeatedly until a
// fixed point, so a second pass over already-normalized text is a no-op.
// This stands in for the external transliterator spec.md assumes exists;
// here it folds accented Latin-1 letters to ASCII through the fixed
// asciiFold table; other runes pass through unchanged.
func translit(s string) string {
	prev := s
	for i := 0; i < 8; i++ {
		next := transliterateOnce(prev)
		if next == prev {
			return next
		}
		prev = next
	}
	return prev
}

func transliterateOnce(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		b.WriteRune(foldRune(r))
	}
	return b.String()
}

func foldRune(r rune) rune {
	if r < unicode.MaxASCII {
		return r
	}
	if folded, ok := asciiFold[r]; ok {
		return folded
	}
	return r
}

var asciiFold = map[rune]rune{
	'à': 'a', 'á': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a', 'å': 'a',
	'è': 'e', 'é': 'e', 'ê': 'e', 'ë': 'e',
	'ì': 'i', 'í': 'i', 'î': 'i', 'ï': 'i',
	'ò': 'o', 'ó': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o',
	'ù': 'u', 'ú': 'u', 'û': 'u', 'ü': 'u',
	'ñ': 'n', 'ç': 'c', 'ý': 'y',
	'À': 'A', 'Á': 'A', 'Â': 'A', 'Ã': 'A', 'Ä': 'A', 'Å': 'A',
	'È': 'E', 'É': 'E', 'Ê': 'E', 'Ë': 'E',
	'Ì': 'I', 'Í': 'I', 'Î': 'I', 'Ï': 'I',
	'Ò': 'O', 'Ó': 'O', 'Ô': 'O', 'Õ': 'O', 'Ö': 'O',
	'Ù': 'U', 'Ú': 'U', 'Û': 'U', 'Ü': 'U',
	'Ñ': 'N', 'Ç': 'C', 'Ý': 'Y',
}
