package tokenize

import (
	"reflect"
	"strings"
	"testing"
)

func TestTokenizeEmptyText(t *testing.T) {
	info, err := Tokenize("", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.UniqueWordCount() != 0 {
		t.Fatalf("expected empty TextInfo, got %d words", info.UniqueWordCount())
	}
}

func TestTokenizeBasic(t *testing.T) {
	info, err := Tokenize("The quick brown fox", Options{Locale: "en"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"the", "quick", "brown", "fox"}
	for _, w := range want {
		if _, ok := info.Words[w]; !ok {
			t.Fatalf("expected word %q to be present", w)
		}
	}
	if info.WordCount() != 4 {
		t.Fatalf("expected word count 4, got %d", info.WordCount())
	}
}

func TestTokenizeStoplist(t *testing.T) {
	info, err := Tokenize("the quick brown fox", Options{Locale: "en", UseStoplist: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := info.Words["the"]; ok {
		t.Fatal(`expected "the" to be filtered by the stoplist`)
	}
	found := false
	for _, w := range info.Ignored {
		if w == "the" {
			found = true
		}
	}
	if !found {
		t.Fatal(`expected "the" to be recorded as ignored`)
	}
}

func TestTokenizeApostropheRemoval(t *testing.T) {
	info, err := Tokenize("don't stop", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := info.Words["dont"]; !ok {
		t.Fatalf("expected apostrophe to be stripped, words: %v", info.ToArray())
	}
}

func TestTokenizeMinMaxLength(t *testing.T) {
	info, err := Tokenize("a ab abcdefghijklmnopqrstuvwxyz", Options{MinLength: 2, MaxLength: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := info.Words["a"]; ok {
		t.Fatal(`"a" should have been dropped for being below minLength`)
	}
	if _, ok := info.Words["ab"]; !ok {
		t.Fatal(`"ab" should have been kept`)
	}
	if _, ok := info.Words["abcde"]; !ok {
		t.Fatalf("expected the long word truncated to maxLength, words: %v", info.ToArray())
	}
}

func TestTokenizeWhitelistOverridesBlacklist(t *testing.T) {
	info, err := Tokenize("ok nope", Options{
		Blacklist: map[string]struct{}{"nope": {}},
		Whitelist: map[string]struct{}{"nope": {}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := info.Words["nope"]; !ok {
		t.Fatal("expected whitelist to override blacklist rejection")
	}
}

func TestTokenizeStemmingRejectionDoesNotAdvancePosition(t *testing.T) {
	info, err := Tokenize("alpha skip beta", Options{
		Stemming: func(word, locale string) (string, bool) {
			if word == "skip" {
				return "", false
			}
			return word, true
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	alpha := info.Words["alpha"]
	beta := info.Words["beta"]
	if alpha.Indexes[0] != 0 || beta.Indexes[0] != 1 {
		t.Fatalf("expected dense kept-word indexes 0,1; got alpha=%v beta=%v", alpha.Indexes, beta.Indexes)
	}
	found := false
	for _, w := range info.Ignored {
		if w == "skip" {
			found = true
		}
	}
	if !found {
		t.Fatal(`expected "skip" in ignored`)
	}
	if alpha.RawIndexes[0] != 0 || beta.RawIndexes[0] != 2 {
		t.Fatalf("expected raw slots 0,2 (skip still occupies slot 1); got alpha=%v beta=%v", alpha.RawIndexes, beta.RawIndexes)
	}
}

func TestTokenizeIncludeCharsForWildcards(t *testing.T) {
	info, err := Tokenize("br* f?x", Options{IncludeChars: "*?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := info.Words["br*"]; !ok {
		t.Fatalf("expected wildcard token preserved, words: %v", info.ToArray())
	}
	if _, ok := info.Words["f?x"]; !ok {
		t.Fatalf("expected wildcard token preserved, words: %v", info.ToArray())
	}
}

func TestTokenizeIncludeCharsRequiresCharacterClass(t *testing.T) {
	_, err := Tokenize("anything", Options{Pattern: `\w+`, IncludeChars: "*"})
	if err == nil {
		t.Fatal("expected PatternShapeError")
	}
	if _, ok := err.(*PatternShapeError); !ok {
		t.Fatalf("expected *PatternShapeError, got %T", err)
	}
}

func TestToSequenceOmitsIgnored(t *testing.T) {
	info, err := Tokenize("alpha skip beta", Options{
		Stemming: func(word, locale string) (string, bool) {
			if word == "skip" {
				return "", false
			}
			return word, true
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seq := info.ToSequence()
	if len(seq) != 2 {
		t.Fatalf("expected sequence length 2 (kept words only advance the index), got %v", seq)
	}
	if seq[0] != "alpha" || seq[1] != "beta" {
		t.Fatalf("unexpected sequence: %v", seq)
	}
}

func TestTokenizeIdempotent(t *testing.T) {
	text := "Distributed search engines process queries"
	first, err := Tokenize(text, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rejoined := strings.Join(first.ToSequence(), " ")
	second, err := Tokenize(rejoined, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(firstWords(first), firstWords(second)) {
		t.Fatalf("expected idempotent tokenization, got %v vs %v", firstWords(first), firstWords(second))
	}
}

func firstWords(info *TextInfo) map[string]int {
	out := make(map[string]int, len(info.Words))
	for w, wi := range info.Words {
		out[w] = wi.Occurs()
	}
	return out
}
