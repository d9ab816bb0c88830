// Package benchmark contains Go benchmarks for the substrate engine, memory
// index, and query pipeline, measuring throughput and allocation behaviour.
package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/kvstore/fulltext/internal/substrate"
	"github.com/kvstore/fulltext/internal/substrate/memstore"
	"github.com/kvstore/fulltext/pkg/config"
)

// BenchmarkMemoryIndexUpsert measures per-posting insert throughput into the
// in-memory inverted index.
func BenchmarkMemoryIndexUpsert(b *testing.B) {
	mi := memstore.NewMemoryIndex()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		path := fmt.Sprintf("/doc-%d", i)
		mi.Upsert("benchmark", path, nil)
	}
}

// BenchmarkMemoryIndexSearch measures single-word lookup latency over 10 000
// postings.
func BenchmarkMemoryIndexSearch(b *testing.B) {
	mi := memstore.NewMemoryIndex()
	for i := 0; i < 10000; i++ {
		path := fmt.Sprintf("/doc-%d", i)
		mi.Upsert("search", path, nil)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		results := mi.Search("search")
		_ = results
	}
}

// BenchmarkMemoryIndexSearchParallel measures concurrent read throughput.
func BenchmarkMemoryIndexSearchParallel(b *testing.B) {
	mi := memstore.NewMemoryIndex()
	for i := 0; i < 10000; i++ {
		path := fmt.Sprintf("/doc-%d", i)
		mi.Upsert("search", path, nil)
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			results := mi.Search("search")
			_ = results
		}
	})
}

// BenchmarkMemoryIndexSnapshot measures the cost of snapshotting the index
// before a segment flush.
func BenchmarkMemoryIndexSnapshot(b *testing.B) {
	mi := memstore.NewMemoryIndex()
	for i := 0; i < 5000; i++ {
		path := fmt.Sprintf("/doc-%d", i)
		mi.Upsert("snapshot", path, nil)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		snapshot := mi.Snapshot()
		_ = snapshot
	}
}

// BenchmarkEngineHandleRecordUpdate measures substrate posting-update
// throughput at various pre-loaded word counts.
func BenchmarkEngineHandleRecordUpdate(b *testing.B) {
	sizes := []int{100, 1000, 5000}
	for _, preload := range sizes {
		b.Run(fmt.Sprintf("preload_%d", preload), func(b *testing.B) {
			cfg := config.IndexerConfig{DataDir: b.TempDir(), FlushInterval: 0}
			engine, err := substrate.NewEngine(cfg)
			if err != nil {
				b.Fatal(err)
			}
			defer engine.Close()

			ctx := context.Background()
			for i := 0; i < preload; i++ {
				path := fmt.Sprintf("/preload-%d", i)
				word := "preload"
				if err := engine.HandleRecordUpdate(ctx, path, word, nil, &word, nil); err != nil {
					b.Fatal(err)
				}
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				path := fmt.Sprintf("/bench-%d", i)
				word := "benchmark"
				if err := engine.HandleRecordUpdate(ctx, path, word, nil, &word, nil); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
