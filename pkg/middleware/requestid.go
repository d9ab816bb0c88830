package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/kvstore/fulltext/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID wraps next so that every request carries a request ID, either
// forwarded from the X-Request-ID header or generated fresh, threaded into
// the request context via pkg/logger and echoed back on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = newRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := logger.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newRequestID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b[:])
}
