package query

import (
	"context"
	"testing"

	"github.com/kvstore/fulltext/internal/substrate"
	"github.com/kvstore/fulltext/pkg/config"
	ftindex "github.com/kvstore/fulltext/pkg/fulltext/index"
	ftsub "github.com/kvstore/fulltext/pkg/fulltext/substrate"
)

// seedR1R2R3 builds the three-record dataset spec scenarios are run
// against: R1 "The quick brown fox", R2 "Quick brown dogs jump", R3 "slow
// green turtles", default en locale, no stoplist.
func seedR1R2R3(t *testing.T) (*substrate.Engine, *Executor) {
	t.Helper()
	eng, err := substrate.NewEngine(config.IndexerConfig{})
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}
	m, err := ftindex.New(ftindex.Config{Key: "text", DefaultLocale: "en"}, eng)
	if err != nil {
		t.Fatalf("creating maintainer: %v", err)
	}
	ctx := context.Background()
	records := map[string]string{
		"/R1": "The quick brown fox",
		"/R2": "Quick brown dogs jump",
		"/R3": "slow green turtles",
	}
	for path, text := range records {
		if err := m.HandleRecordUpdate(ctx, path, nil, ftindex.Record{"text": text}); err != nil {
			t.Fatalf("indexing %s: %v", path, err)
		}
	}
	return eng, NewExecutor(eng)
}

func paths(rs *ftsub.ResultSet) []string {
	return rs.Paths()
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

func TestEndToEndScenarios(t *testing.T) {
	_, exec := seedR1R2R3(t)
	ctx := context.Background()
	opts := Options{Locale: "en"}

	cases := []struct {
		name     string
		op       Operator
		query    string
		opts     Options
		expected []string
	}{
		{"brown contains", OpContains, "brown", opts, []string{"/R1", "/R2"}},
		{"brown fox bag of words", OpContains, "brown fox", opts, []string{"/R1"}},
		{"brown fox phrase", OpContains, `"brown fox"`, opts, []string{"/R1"}},
		{"fox brown phrase wrong order", OpContains, `"fox brown"`, opts, nil},
		{"OR query", OpContains, "quick OR turtles", opts, []string{"/R1", "/R2", "/R3"}},
		{"negated brown", OpNotContains, "brown", opts, []string{"/R3"}},
		{"wildcard br*", OpContains, "br*", opts, []string{"/R1", "/R2"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := exec.Execute(ctx, tc.op, tc.query, tc.opts)
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			got := paths(result)
			if len(got) != len(tc.expected) {
				t.Fatalf("expected %v, got %v", tc.expected, got)
			}
			for _, want := range tc.expected {
				if !contains(got, want) {
					t.Fatalf("expected %v to contain %q, got %v", tc.expected, want, got)
				}
			}
		})
	}
}

func TestWildcardBelowMinimumLengthIsIgnored(t *testing.T) {
	_, exec := seedR1R2R3(t)
	ctx := context.Background()
	result, err := exec.Execute(ctx, OpContains, "a*", Options{Locale: "en", MinimumWildcardWordLength: 2})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Matches) != 0 {
		t.Fatalf("expected no matches, got %v", result.Paths())
	}
	found := false
	for _, h := range result.Hints {
		if h.Type == ftsub.HintIgnoredWord && h.Word == "a*" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an ignoredWord hint for a*, got %+v", result.Hints)
	}
}

func TestStoplistCollapsesPhrase(t *testing.T) {
	_, exec := seedR1R2R3(t)
	ctx := context.Background()
	result, err := exec.Execute(ctx, OpContains, `"the quick"`, Options{Locale: "en", UseStoplist: true})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	got := result.Paths()
	if len(got) != 1 || got[0] != "/R1" {
		t.Fatalf("expected only /R1, got %v", got)
	}
}

// TestStoplistPreservesMidPhraseGap checks that a stoplisted word in the
// middle of a phrase reserves its slot rather than letting the word
// after it slide down: "brown the fox" isn't literal text in any of the
// seeded records, but once "the" is dropped the remaining words keep
// their offsets (brown=0, fox=2), so fox has to sit exactly two slots
// after brown. R1 ("The quick brown fox") is the only record with both
// words, and there fox directly follows brown (2 and 3), so nothing
// matches; a plain bag-of-words match would have returned R1.
func TestStoplistPreservesMidPhraseGap(t *testing.T) {
	_, exec := seedR1R2R3(t)
	ctx := context.Background()
	result, err := exec.Execute(ctx, OpContains, `"brown the fox"`, Options{Locale: "en", UseStoplist: true})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	got := result.Paths()
	if len(got) != 0 {
		t.Fatalf("expected no matches (brown,fox are adjacent in R1, not two slots apart), got %v", got)
	}
}

func TestUnsupportedOperator(t *testing.T) {
	_, exec := seedR1R2R3(t)
	_, err := exec.Execute(context.Background(), Operator("fulltext:frobnicate"), "brown", Options{})
	if _, ok := err.(*UnsupportedOperatorError); !ok {
		t.Fatalf("expected UnsupportedOperatorError, got %v", err)
	}
}

func TestBlacklistingScanNotImplementedAsDirectOperator(t *testing.T) {
	_, exec := seedR1R2R3(t)
	_, err := exec.Execute(context.Background(), OpBlacklistingScan, "brown", Options{})
	if _, ok := err.(*NotImplementedError); !ok {
		t.Fatalf("expected NotImplementedError, got %v", err)
	}
}
