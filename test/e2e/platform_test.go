// Package e2e contains end-to-end tests that exercise the full platform
// stack: gateway → ingestion → indexer → search, with real Kafka, PostgreSQL,
// and Redis.
//
// Prerequisites:
//   - PostgreSQL running with schema applied
//   - Kafka (with Zookeeper) running
//   - Redis running
//
// Run with:
//
//	go test -v -tags=e2e -timeout=120s ./test/e2e/...
package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

type e2eConfig struct {
	GatewayURL   string
	IngestionURL string
	SearcherURL  string
}

func loadE2EConfig() e2eConfig {
	return e2eConfig{
		GatewayURL:   envOrDefault("E2E_GATEWAY_URL", "http://localhost:8082"),
		IngestionURL: envOrDefault("E2E_INGESTION_URL", "http://localhost:8081"),
		SearcherURL:  envOrDefault("E2E_SEARCHER_URL", "http://localhost:8080"),
	}
}

type searchResponse struct {
	Paths []string `json:"paths"`
	Hints []struct {
		Type string `json:"type"`
	} `json:"hints"`
	Stats map[string]int `json:"stats"`
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestPlatformHealth verifies all services respond to health checks.
func TestPlatformHealth(t *testing.T) {
	cfg := loadE2EConfig()

	services := []struct {
		name string
		url  string
	}{
		{"search /health/live", cfg.SearcherURL + "/health/live"},
		{"search /health/ready", cfg.SearcherURL + "/health/ready"},
		{"ingestion /health", cfg.IngestionURL + "/health"},
		{"gateway /health", cfg.GatewayURL + "/health"},
	}

	client := &http.Client{Timeout: 5 * time.Second}

	for _, svc := range services {
		t.Run(svc.name, func(t *testing.T) {
			resp, err := client.Get(svc.url)
			if err != nil {
				t.Skipf("service unavailable: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("expected 200, got %d: %s", resp.StatusCode, body)
			}
		})
	}
}

// writeRecord PUTs a record's value through the ingestion service, failing
// the test on anything other than a 202.
func writeRecord(t *testing.T, client *http.Client, ingestionURL, path string, value map[string]any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"value": value})
	if err != nil {
		t.Fatalf("marshaling write request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPut, ingestionURL+"/api/v1/records"+path, strings.NewReader(string(raw)))
	if err != nil {
		t.Fatalf("building write request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("write request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 202 writing %s, got %d: %s", path, resp.StatusCode, body)
	}
}

func search(t *testing.T, client *http.Client, searcherURL, query, op string) (*searchResponse, error) {
	t.Helper()
	u := fmt.Sprintf("%s/api/v1/fulltext/search?q=%s", searcherURL, url.QueryEscape(query))
	if op != "" {
		u += "&op=" + url.QueryEscape(op)
	}
	resp, err := client.Get(u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search %q: expected 200, got %d: %s", query, resp.StatusCode, body)
	}
	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return &out, nil
}

func containsPath(paths []string, target string) bool {
	for _, p := range paths {
		if p == target {
			return true
		}
	}
	return false
}

// TestWriteAndSearch exercises the full record lifecycle: write → wait for
// indexing → phrase/OR/wildcard/negation queries → verify results.
func TestWriteAndSearch(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 10 * time.Second}

	if _, err := client.Get(cfg.IngestionURL + "/health"); err != nil {
		t.Skipf("ingestion service unavailable: %v", err)
	}

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	pathA := "/e2e/" + suffix + "/alpha"
	pathB := "/e2e/" + suffix + "/bravo"
	uniqueWord := "e2etoken" + suffix

	writeRecord(t, client, cfg.IngestionURL, pathA, map[string]any{
		"body": fmt.Sprintf("the quick brown fox jumps near %s", uniqueWord),
	})
	writeRecord(t, client, cfg.IngestionURL, pathB, map[string]any{
		"body": "a slow turtle naps in the shade",
	})

	var indexed bool
	for attempt := 0; attempt < 30; attempt++ {
		time.Sleep(1 * time.Second)
		res, err := search(t, client, cfg.SearcherURL, uniqueWord, "")
		if err != nil {
			t.Logf("attempt %d: %v", attempt, err)
			continue
		}
		if containsPath(res.Paths, pathA) {
			indexed = true
			t.Logf("record indexed after %ds", attempt+1)
			break
		}
	}
	if !indexed {
		t.Fatalf("record at %s never appeared in search within 30s", pathA)
	}

	t.Run("phrase match", func(t *testing.T) {
		res, err := search(t, client, cfg.SearcherURL, `"quick brown"`, "")
		if err != nil {
			t.Fatalf("phrase search failed: %v", err)
		}
		if !containsPath(res.Paths, pathA) {
			t.Errorf("expected %s in phrase match results, got %v", pathA, res.Paths)
		}
	})

	t.Run("reversed phrase does not match", func(t *testing.T) {
		res, err := search(t, client, cfg.SearcherURL, `"brown quick"`, "")
		if err != nil {
			t.Fatalf("phrase search failed: %v", err)
		}
		if containsPath(res.Paths, pathA) {
			t.Errorf("reversed phrase unexpectedly matched %s", pathA)
		}
	})

	t.Run("OR query", func(t *testing.T) {
		res, err := search(t, client, cfg.SearcherURL, uniqueWord+" OR turtle", "")
		if err != nil {
			t.Fatalf("OR search failed: %v", err)
		}
		if !containsPath(res.Paths, pathA) || !containsPath(res.Paths, pathB) {
			t.Errorf("expected both %s and %s in OR results, got %v", pathA, pathB, res.Paths)
		}
	})

	t.Run("wildcard match", func(t *testing.T) {
		res, err := search(t, client, cfg.SearcherURL, "e2etok*", "")
		if err != nil {
			t.Fatalf("wildcard search failed: %v", err)
		}
		if !containsPath(res.Paths, pathA) {
			t.Errorf("expected %s in wildcard results, got %v", pathA, res.Paths)
		}
	})

	t.Run("negation excludes matching record", func(t *testing.T) {
		res, err := search(t, client, cfg.SearcherURL, "turtle", "!contains")
		if err != nil {
			t.Fatalf("negated search failed: %v", err)
		}
		if containsPath(res.Paths, pathB) {
			t.Errorf("expected %s excluded from !contains turtle, got %v", pathB, res.Paths)
		}
		if !containsPath(res.Paths, pathA) {
			t.Errorf("expected %s present in !contains turtle, got %v", pathA, res.Paths)
		}
	})

	t.Run("delete retires postings", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodDelete, cfg.IngestionURL+"/api/v1/records"+pathB, nil)
		if err != nil {
			t.Fatalf("building delete request: %v", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("delete request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 deleting %s, got %d", pathB, resp.StatusCode)
		}

		var gone bool
		for attempt := 0; attempt < 15; attempt++ {
			time.Sleep(1 * time.Second)
			res, err := search(t, client, cfg.SearcherURL, "turtle", "")
			if err != nil {
				continue
			}
			if !containsPath(res.Paths, pathB) {
				gone = true
				break
			}
		}
		if !gone {
			t.Errorf("expected %s to disappear from search after delete", pathB)
		}
	})
}

// TestSearchAnalytics verifies that search queries generate analytics events.
func TestSearchAnalytics(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	if _, err := search(t, client, cfg.SearcherURL, "analytics test", ""); err != nil {
		t.Skipf("search service unavailable: %v", err)
	}

	// Give time for the analytics event to be collected and aggregated.
	time.Sleep(2 * time.Second)

	analyticsResp, err := client.Get(cfg.SearcherURL + "/api/v1/analytics")
	if err != nil {
		t.Fatalf("analytics request failed: %v", err)
	}
	defer analyticsResp.Body.Close()

	var stats map[string]any
	if err := json.NewDecoder(analyticsResp.Body).Decode(&stats); err != nil {
		t.Fatalf("decoding analytics response: %v", err)
	}

	totalSearches, _ := stats["total_searches"].(float64)
	if totalSearches < 1 {
		t.Errorf("expected at least 1 search recorded in analytics, got %v", stats["total_searches"])
	}
}

// TestSearchCacheStats verifies that cache statistics are reported per shard.
func TestSearchCacheStats(t *testing.T) {
	cfg := loadE2EConfig()
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(cfg.SearcherURL + "/api/v1/cache/stats")
	if err != nil {
		t.Skipf("search service unavailable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var stats struct {
		Shards map[string]string `json:"shards"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decoding cache stats response: %v", err)
	}
	if len(stats.Shards) == 0 {
		t.Error("expected at least one shard in cache stats")
	}
	for shardID, backend := range stats.Shards {
		if backend != "redis" && backend != "in-process" {
			t.Errorf("shard %s: unexpected cache backend %q", shardID, backend)
		}
	}
}

// ---------------------------------------------------------------------------
// Env helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
