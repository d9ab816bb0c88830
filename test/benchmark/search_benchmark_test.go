package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/kvstore/fulltext/internal/substrate"
	"github.com/kvstore/fulltext/internal/substrate/shard"
	"github.com/kvstore/fulltext/pkg/config"
	ftindex "github.com/kvstore/fulltext/pkg/fulltext/index"
	"github.com/kvstore/fulltext/pkg/fulltext/query"
)

// BenchmarkQueryParse measures query parsing latency for queries of varying
// complexity.
func BenchmarkQueryParse(b *testing.B) {
	queries := []struct {
		name  string
		query string
	}{
		{"simple", "distributed systems"},
		{"or", "search OR analytics OR platform"},
		{"phrase", `"distributed search"`},
		{"wildcard", "distr* an?lytics"},
		{"long", "distributed search analytics platform indexing query processing caching sharding"},
	}

	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				tree := query.Parse(q.query)
				_ = tree
			}
		})
	}
}

func seedEngine(b *testing.B, numRecords int) *substrate.Engine {
	b.Helper()
	cfg := config.IndexerConfig{DataDir: b.TempDir(), FlushInterval: 0}
	eng, err := substrate.NewEngine(cfg)
	if err != nil {
		b.Fatal(err)
	}
	m, err := ftindex.New(ftindex.Config{Key: "text", DefaultLocale: "en"}, eng)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	for i := 0; i < numRecords; i++ {
		path := fmt.Sprintf("/doc-%d", i)
		text := "distributed search analytics platform with indexing and query processing"
		if err := m.HandleRecordUpdate(ctx, path, nil, ftindex.Record{"text": text}); err != nil {
			b.Fatal(err)
		}
	}
	return eng
}

// BenchmarkContainsExecute measures end-to-end fulltext:contains execution
// against in-memory posting sets of increasing size.
func BenchmarkContainsExecute(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	for _, n := range sizes {
		b.Run(fmt.Sprintf("records_%d", n), func(b *testing.B) {
			eng := seedEngine(b, n)
			defer eng.Close()
			exec := query.NewExecutor(eng)
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				result, err := exec.Execute(ctx, query.OpContains, "distributed analytics", query.Options{Locale: "en"})
				if err != nil {
					b.Fatal(err)
				}
				_ = result
			}
		})
	}
}

// BenchmarkShardedRouterExecute exercises the path-sharded substrate router
// with varying shard counts.
func BenchmarkShardedRouterExecute(b *testing.B) {
	shardCounts := []int{1, 4, 8}
	for _, numShards := range shardCounts {
		b.Run(fmt.Sprintf("shards_%d", numShards), func(b *testing.B) {
			router, err := shard.NewRouter(config.IndexerConfig{DataDir: b.TempDir(), FlushInterval: 0}, numShards)
			if err != nil {
				b.Fatal(err)
			}
			defer router.Close()

			ctx := context.Background()
			for d := 0; d < 1000; d++ {
				path := fmt.Sprintf("/shard-doc-%d", d)
				eng, err := router.Route(path)
				if err != nil {
					b.Fatal(err)
				}
				m, err := ftindex.New(ftindex.Config{Key: "text", DefaultLocale: "en"}, eng)
				if err != nil {
					b.Fatal(err)
				}
				if err := m.HandleRecordUpdate(ctx, path, nil, ftindex.Record{"text": "distributed search analytics platform"}); err != nil {
					b.Fatal(err)
				}
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				eng, err := router.Route("/shard-doc-0")
				if err != nil {
					b.Fatal(err)
				}
				exec := query.NewExecutor(eng)
				result, err := exec.Execute(ctx, query.OpContains, "distributed search", query.Options{Locale: "en"})
				if err != nil {
					b.Fatal(err)
				}
				_ = result
			}
		})
	}
}
