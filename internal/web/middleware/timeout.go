package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout bounds the request context. Handlers pass that context to the
// store, so a slow query is cancelled and surfaces as an error reply.
func Timeout(timeout time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
