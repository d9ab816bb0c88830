package substrateclient

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/kvstore/fulltext/internal/substrate"
	"github.com/kvstore/fulltext/pkg/config"
	fts "github.com/kvstore/fulltext/pkg/fulltext/substrate"
	"github.com/kvstore/fulltext/pkg/grpc"
)

// startTestSubstrated boots a real substrate.Engine behind a real
// grpc.Server on a loopback port and returns a dialed Client, so this
// test exercises the full RPC round-trip rather than calling handlers
// directly in-process.
func startTestSubstrated(t *testing.T) *Client {
	t.Helper()

	engine, err := substrate.NewEngine(config.IndexerConfig{})
	if err != nil {
		t.Fatalf("creating engine: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving a port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	server := grpc.NewServer()
	substrate.RegisterHandlers(server, engine)

	go func() {
		if err := server.Serve(addr); err != nil {
			t.Logf("server.Serve: %v", err)
		}
	}()
	t.Cleanup(server.Stop)

	var client *Client
	for i := 0; i < 50; i++ {
		client, err = Dial(addr)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dialing substrated: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClientRoundTripsHandleUpdateCountAndQuery(t *testing.T) {
	client := startTestSubstrated(t)
	ctx := context.Background()

	newVal := "brown"
	if err := client.HandleRecordUpdate(ctx, "/R1", "brown", nil, &newVal, map[string]string{"_occurs_": "2"}); err != nil {
		t.Fatalf("HandleRecordUpdate: %v", err)
	}
	if err := client.HandleRecordUpdate(ctx, "/R2", "brown", nil, &newVal, map[string]string{"_occurs_": "1"}); err != nil {
		t.Fatalf("HandleRecordUpdate: %v", err)
	}

	n, err := client.Count(ctx, fts.OpEquals, "brown")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected cardinality 2, got %d", n)
	}

	res, err := client.Query(ctx, fts.OpEquals, "brown", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %v", res.Paths())
	}
}

func TestClientQueryBlacklistingResolvesExcludedOverRPC(t *testing.T) {
	client := startTestSubstrated(t)
	ctx := context.Background()

	brown := "brown"
	slow := "slow"
	mustUpdate := func(path, word string) {
		if err := client.HandleRecordUpdate(ctx, path, word, nil, &word, nil); err != nil {
			t.Fatalf("HandleRecordUpdate(%s,%s): %v", path, word, err)
		}
	}
	mustUpdate("/R1", brown)
	mustUpdate("/R2", brown)
	mustUpdate("/R3", slow)

	res, err := client.QueryBlacklisting(ctx, func(word string) bool { return word == "brown" })
	if err != nil {
		t.Fatalf("QueryBlacklisting: %v", err)
	}
	paths := res.Paths()
	if len(paths) != 1 || paths[0] != "/R3" {
		t.Fatalf("expected only /R3 (the record without 'brown'), got %v", paths)
	}
}

func TestClientCacheRoundTripsOverRPC(t *testing.T) {
	client := startTestSubstrated(t)
	ctx := context.Background()

	if cached, err := client.Cache(ctx, "fulltext:contains", "brown", nil); err != nil || cached != nil {
		t.Fatalf("expected a cache miss, got %v, %v", cached, err)
	}

	write := &fts.ResultSet{Matches: []fts.Match{{Path: "/R1"}}}
	if _, err := client.Cache(ctx, "fulltext:contains", "brown", write); err != nil {
		t.Fatalf("Cache write: %v", err)
	}

	cached, err := client.Cache(ctx, "fulltext:contains", "brown", nil)
	if err != nil {
		t.Fatalf("Cache read: %v", err)
	}
	if cached == nil || len(cached.Matches) != 1 || cached.Matches[0].Path != "/R1" {
		t.Fatalf("expected the cached write back, got %v", cached)
	}
}
