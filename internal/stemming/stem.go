// Package stemming provides an optional suffix-stripping stemmer that can
// be plugged into the tokenizer's Options.Stemming hook. Full-text indexes
// are free to run without it (the default is no stemming at all); it
// exists for callers who want English suffix normalization on top of the
// tokenizer's own blacklist/stoplist handling.
package stemming

import "strings"

var commonWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {},
}

type suffixRule struct {
	suffix      string
	replacement string
	minLen      int
}

var suffixRules = []suffixRule{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"s", "", 3},
}

// Stem matches the tokenize.Options.Stemming signature: it rejects a
// handful of function words outright (ok=false, mirroring the tokenizer's
// own "non-string stemming result" sentinel) and otherwise applies a
// suffix-stripping stem. locale is accepted for signature compatibility
// but not consulted — this stemmer only knows English morphology.
func Stem(word, locale string) (string, bool) {
	lower := strings.ToLower(word)
	if _, isCommon := commonWords[lower]; isCommon {
		return "", false
	}
	return stemWord(lower), true
}

func stemWord(word string) string {
	for _, rule := range suffixRules {
		if strings.HasSuffix(word, rule.suffix) {
			stemmed := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(stemmed) >= rule.minLen {
				return stemmed
			}
		}
	}
	return word
}
