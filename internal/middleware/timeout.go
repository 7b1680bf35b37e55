package middleware

import (
	"context"
	"net/http"
	"time"
)

// DefaultRequestTimeout bounds a request when no explicit timeout is
// configured.
const DefaultRequestTimeout = 30 * time.Second

// Timeout applies a deadline to the request context. Unlike
// http.TimeoutHandler the response is not buffered, so the middleware
// is safe in front of the SSE streaming endpoint; handlers cancel by
// honoring the context.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
