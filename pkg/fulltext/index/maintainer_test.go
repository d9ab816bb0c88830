package index

import (
	"context"
	"testing"

	"github.com/kvstore/fulltext/internal/substrate"
	"github.com/kvstore/fulltext/pkg/config"
	ftsub "github.com/kvstore/fulltext/pkg/fulltext/substrate"
)

func newTestMaintainer(t *testing.T, cfg Config) (*substrate.Engine, *Maintainer) {
	t.Helper()
	eng, err := substrate.NewEngine(config.IndexerConfig{})
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}
	if cfg.Key == "" {
		cfg.Key = "text"
	}
	if cfg.DefaultLocale == "" {
		cfg.DefaultLocale = "en"
	}
	m, err := New(cfg, eng)
	if err != nil {
		t.Fatalf("creating maintainer: %v", err)
	}
	return eng, m
}

func TestNewRejectsForbiddenKey(t *testing.T) {
	eng, err := substrate.NewEngine(config.IndexerConfig{})
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}
	_, err = New(Config{Key: ForbiddenKey}, eng)
	if _, ok := err.(*InvalidKeyError); !ok {
		t.Fatalf("expected InvalidKeyError, got %v", err)
	}
}

func TestHandleRecordUpdateAddsWords(t *testing.T) {
	eng, m := newTestMaintainer(t, Config{})
	ctx := context.Background()

	if err := m.HandleRecordUpdate(ctx, "/R1", nil, Record{"text": "quick brown fox"}); err != nil {
		t.Fatalf("indexing: %v", err)
	}

	n, err := eng.Count(ctx, ftsub.OpEquals, "brown")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 posting for brown, got %d", n)
	}
}

func TestHandleRecordUpdateRemovesStaleWords(t *testing.T) {
	eng, m := newTestMaintainer(t, Config{})
	ctx := context.Background()

	old := Record{"text": "quick brown fox"}
	if err := m.HandleRecordUpdate(ctx, "/R1", nil, old); err != nil {
		t.Fatalf("indexing: %v", err)
	}
	updated := Record{"text": "slow green turtle"}
	if err := m.HandleRecordUpdate(ctx, "/R1", old, updated); err != nil {
		t.Fatalf("updating: %v", err)
	}

	if n, _ := eng.Count(ctx, ftsub.OpEquals, "brown"); n != 0 {
		t.Fatalf("expected brown posting removed, got count %d", n)
	}
	if n, _ := eng.Count(ctx, ftsub.OpEquals, "turtle"); n != 1 {
		t.Fatalf("expected turtle posting added, got count %d", n)
	}
}

func TestHandleRecordUpdateDeleteClearsAllWords(t *testing.T) {
	eng, m := newTestMaintainer(t, Config{})
	ctx := context.Background()

	old := Record{"text": "quick brown fox"}
	if err := m.HandleRecordUpdate(ctx, "/R1", nil, old); err != nil {
		t.Fatalf("indexing: %v", err)
	}
	if err := m.HandleRecordUpdate(ctx, "/R1", old, nil); err != nil {
		t.Fatalf("deleting: %v", err)
	}

	for _, w := range []string{"quick", "brown", "fox"} {
		if n, _ := eng.Count(ctx, ftsub.OpEquals, w); n != 0 {
			t.Fatalf("expected %q posting removed after delete, got count %d", w, n)
		}
	}
}

func TestHandleRecordUpdateKeepsUnchangedWord(t *testing.T) {
	eng, m := newTestMaintainer(t, Config{})
	ctx := context.Background()

	old := Record{"text": "quick brown fox"}
	if err := m.HandleRecordUpdate(ctx, "/R1", nil, old); err != nil {
		t.Fatalf("indexing: %v", err)
	}
	updated := Record{"text": "quick brown hare"}
	if err := m.HandleRecordUpdate(ctx, "/R1", old, updated); err != nil {
		t.Fatalf("updating: %v", err)
	}

	if n, _ := eng.Count(ctx, ftsub.OpEquals, "quick"); n != 1 {
		t.Fatalf("expected quick posting count 1, got %d", n)
	}
	if n, _ := eng.Count(ctx, ftsub.OpEquals, "fox"); n != 0 {
		t.Fatalf("expected fox posting removed, got count %d", n)
	}
	if n, _ := eng.Count(ctx, ftsub.OpEquals, "hare"); n != 1 {
		t.Fatalf("expected hare posting added, got count %d", n)
	}
}

func TestHandleRecordUpdateUsesPerRecordLocale(t *testing.T) {
	eng, m := newTestMaintainer(t, Config{TextLocaleKey: "locale", DefaultLocale: "default", UseStoplist: true})
	ctx := context.Background()

	rec := Record{"text": "the quick fox", "locale": "en"}
	if err := m.HandleRecordUpdate(ctx, "/R1", nil, rec); err != nil {
		t.Fatalf("indexing: %v", err)
	}

	if n, _ := eng.Count(ctx, ftsub.OpEquals, "the"); n != 0 {
		t.Fatalf("expected stoplisted word 'the' dropped under en locale, got count %d", n)
	}
	if n, _ := eng.Count(ctx, ftsub.OpEquals, "quick"); n != 1 {
		t.Fatalf("expected quick indexed, got count %d", n)
	}
}
