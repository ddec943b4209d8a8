package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	webcontext "github.com/citymind/urbanlink/internal/web/context"
	"github.com/citymind/urbanlink/internal/web/ratelimit"
	"github.com/citymind/urbanlink/internal/web/response"
)

// RateLimitConfig holds configuration for rate limiting middleware
type RateLimitConfig struct {
	Limiter ratelimit.RateLimiter
	// KeyFunc extracts the rate limit key from the request
	KeyFunc RateLimitKeyFunc
	// BypassFunc skips limiting when it returns true
	BypassFunc RateLimitBypassFunc
	// FailOpen lets requests through when the limiter errors
	FailOpen bool
	Logger   *zap.Logger
	now      func() time.Time
}

// RateLimitKeyFunc extracts a rate limit key from a request
type RateLimitKeyFunc func(*http.Request) string

// RateLimitBypassFunc determines if rate limiting should be bypassed
type RateLimitBypassFunc func(*http.Request) bool

// RateLimit limits per caller, keyed by principal when authenticated
func RateLimit(limiter ratelimit.RateLimiter, logger *zap.Logger) Middleware {
	return RateLimitWithConfig(RateLimitConfig{
		Limiter:  limiter,
		KeyFunc:  PrincipalOrIPKeyFunc,
		FailOpen: true,
		Logger:   logger,
	})
}

// RateLimitWithConfig creates a rate limiting middleware with custom configuration
func RateLimitWithConfig(config RateLimitConfig) Middleware {
	if config.KeyFunc == nil {
		config.KeyFunc = IPKeyFunc
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.now == nil {
		config.now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.BypassFunc != nil && config.BypassFunc(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := config.KeyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			info, err := config.Limiter.Allow(r.Context(), key)
			if err != nil {
				config.Logger.Warn("rate limiter unavailable",
					zap.String("request_id", webcontext.GetRequestID(r.Context())),
					zap.Error(err))
				if config.FailOpen {
					next.ServeHTTP(w, r)
				} else {
					response.RenderError(w, response.ServiceUnavailable("rate limiter unavailable"))
				}
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))

			if !info.Allowed {
				response.RenderTooManyRequests(w, info.RetryAfter(config.now()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IPKeyFunc keys on the client address. X-Forwarded-For and X-Real-IP are
// honoured first since the API normally runs behind a load balancer.
func IPKeyFunc(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return "ip:" + ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return "ip:" + xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// PrincipalOrIPKeyFunc keys on the caller's id, falling back to the address
func PrincipalOrIPKeyFunc(r *http.Request) string {
	if p := webcontext.GetPrincipal(r.Context()); p != nil {
		return "user:" + p.ID.String()
	}
	return IPKeyFunc(r)
}

// AdminBypassFunc bypasses rate limiting for platform admins
func AdminBypassFunc(r *http.Request) bool {
	p := webcontext.GetPrincipal(r.Context())
	return p != nil && p.HasRole("admin")
}
