// Package api exposes the services over HTTP.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/citymind/urbanlink/internal/service"
	"github.com/citymind/urbanlink/internal/web/middleware"
	"github.com/citymind/urbanlink/internal/web/ratelimit"
	"github.com/citymind/urbanlink/internal/web/request"
	"github.com/citymind/urbanlink/internal/web/websocket"
)

// DefaultPrefix is where the API is mounted when Config.Prefix is empty
const DefaultPrefix = "/api/v1"

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the HTTP surface settings
type Config struct {
	Prefix         string
	AllowedOrigins []string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// Deps are the collaborators the router dispatches to. Limiter, Hub and
// Gatherer are optional.
type Deps struct {
	Services *service.Services
	Tokens   middleware.TokenValidator
	Limiter  ratelimit.RateLimiter
	Hub      *websocket.Hub
	Health   Pinger
	Metrics  *middleware.HTTPMetrics
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
	Now      func() time.Time
}

// NewRouter builds the full route tree
func NewRouter(cfg Config, d Deps) http.Handler {
	prefix := strings.TrimSuffix(cfg.Prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Metrics == nil {
		d.Metrics = middleware.NewHTTPMetrics(nil)
	}
	parser := request.NewParser()
	if cfg.MaxBodyBytes > 0 {
		parser = request.NewParserWithMaxSize(cfg.MaxBodyBytes)
	}
	h := &handler{
		svc:    d.Services,
		parser: parser,
		health: d.Health,
		logger: d.Logger.Named("api"),
		now:    d.Now,
	}

	chain := middleware.NewChain(
		middleware.Recovery(d.Logger),
		middleware.RequestID(),
		middleware.Metrics(d.Metrics),
		middleware.Logging(d.Logger, prefix+"/health", prefix+"/metrics"),
		middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins...)),
	)
	if d.Limiter != nil {
		chain.Use(middleware.RateLimitWithConfig(middleware.RateLimitConfig{
			Limiter:    d.Limiter,
			KeyFunc:    middleware.IPKeyFunc,
			BypassFunc: func(r *http.Request) bool { return r.URL.Path == prefix+"/health" },
			FailOpen:   true,
			Logger:     d.Logger,
		}))
	}
	timeout := middleware.Timeout(cfg.RequestTimeout)

	r := chi.NewRouter()
	r.Use(chain.Middlewares()...)
	r.NotFound(h.notFound)
	r.MethodNotAllowed(h.methodNotAllowed)

	r.Route(prefix, func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		if d.Gatherer != nil {
			r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
		}

		r.Group(func(r chi.Router) {
			r.Use(timeout)
			r.Post("/auth/register", h.register)
			r.Post("/auth/login", h.login)
		})

		if d.Hub != nil {
			stream := websocket.NewHandler(d.Hub, websocket.Config{AllowedOrigins: cfg.AllowedOrigins})
			r.With(middleware.AuthWithConfig(middleware.AuthConfig{Tokens: d.Tokens, QueryParam: "token"})).
				Get("/notifications/stream", stream.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(d.Tokens), timeout)
			h.profileRoutes(r)
			h.solutionRoutes(r)
			h.connectionRoutes(r)
			h.projectRoutes(r)
			h.rfpRoutes(r)
			h.fundingRoutes(r)
			h.workflowRoutes(r)
			h.insightRoutes(r)
			h.notificationRoutes(r)
		})
	})
	return r
}
