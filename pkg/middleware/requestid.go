// Package middleware provides reusable HTTP middleware for request IDs,
// access logging, panic recovery, Prometheus metrics, request timeouts,
// CORS and per-client rate limiting.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/hrdatainsights/salary-platform/pkg/logger"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID propagates the caller's request ID or generates a new one, and
// stores it in the context for logging.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

// GetRequestID returns the request ID stored by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	return logger.RequestID(ctx)
}
