// Package router wires up all API gateway routes and applies the middleware
// chain (RequestID → CORS → Auth → RateLimit).
package router

import (
	"net/http"

	"github.com/kvstore/fulltext/internal/auth/apikey"
	"github.com/kvstore/fulltext/internal/auth/ratelimit"
	gwhandler "github.com/kvstore/fulltext/internal/gateway/handler"
	gwmw "github.com/kvstore/fulltext/internal/gateway/middleware"
	pkgmw "github.com/kvstore/fulltext/pkg/middleware"
)

// New builds the full gateway HTTP handler with all routes and middleware.
//
// Route table:
//
//	PUT    /api/v1/records/{path...}   → ingestion service (proxy, write)
//	DELETE /api/v1/records/{path...}   → ingestion service (proxy, delete)
//	GET    /api/v1/records/{path...}   → get record        (direct DB)
//	GET    /api/v1/records             → list records      (direct DB)
//	GET    /api/v1/fulltext/search     → search service    (proxy)
//	GET    /api/v1/analytics           → search service    (proxy)
//	GET    /api/v1/analytics/history   → search service    (proxy)
//	GET    /api/v1/cache/stats         → search service    (proxy)
//	POST   /api/v1/cache/invalidate    → search service    (proxy)
//	POST   /api/v1/admin/keys          → create API key    (direct DB)
//	GET    /api/v1/admin/keys          → list API keys     (direct DB)
//	GET    /health                     → gateway health
//
// Middleware chain (outermost first):
//
//	RequestID → CORS → Auth → RateLimit → handler
func New(h *gwhandler.Handler, validator *apikey.Validator, limiter *ratelimit.Limiter) http.Handler {
	mux := http.NewServeMux()

	// Health (unauthenticated)
	mux.HandleFunc("GET /health", h.Health)

	// Record API
	mux.HandleFunc("PUT /api/v1/records/{path...}", h.ProxyWrite)
	mux.HandleFunc("DELETE /api/v1/records/{path...}", h.ProxyWrite)
	mux.HandleFunc("GET /api/v1/records/{path...}", h.GetRecord)
	mux.HandleFunc("GET /api/v1/records", h.ListRecords)

	// Search API
	mux.HandleFunc("GET /api/v1/fulltext/search", h.ProxySearch)

	// Analytics API
	mux.HandleFunc("GET /api/v1/analytics", h.ProxyAnalytics)
	mux.HandleFunc("GET /api/v1/analytics/history", h.ProxyAnalytics)

	// Cache API
	mux.HandleFunc("GET /api/v1/cache/stats", h.ProxyCacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.ProxyCacheInvalidate)

	// Admin API
	mux.HandleFunc("POST /api/v1/admin/keys", h.CreateAPIKey)
	mux.HandleFunc("GET /api/v1/admin/keys", h.ListAPIKeys)

	// Middleware chain — applied inside-out:
	// request → RequestID → CORS → Auth → RateLimit → mux
	var chain http.Handler = mux
	chain = gwmw.RateLimit(limiter)(chain)
	chain = gwmw.Auth(validator)(chain)
	chain = gwmw.CORS(gwmw.DefaultCORSConfig())(chain)
	chain = pkgmw.RequestID(chain)

	return chain
}
