package commands

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/citymind/urbanlink/internal/cli/config"
	"github.com/citymind/urbanlink/internal/events"
	"github.com/citymind/urbanlink/internal/service"
	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/web/auth"
	"github.com/citymind/urbanlink/internal/web/cache"
	"github.com/citymind/urbanlink/internal/web/jobs"
	"github.com/citymind/urbanlink/internal/web/websocket"
)

// app is the set of long-lived collaborators a command runs against
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	db       *sql.DB
	store    *store.Store
	redis    *redis.Client
	events   events.Publisher
	hub      *websocket.Hub
	tokens   *auth.TokenService
	services *service.Services
	registry *prometheus.Registry

	closers []closer
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// appOptions selects the optional parts of an app
type appOptions struct {
	// Realtime creates the notification hub. The caller runs it.
	Realtime bool
	// Remote connects redis and NATS when they are configured
	Remote bool
}

// openApp connects to the database and wires the services. Close releases
// everything in reverse order.
func openApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts appOptions) (*app, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	pool := store.DefaultPoolConfig(cfg.Database.URL)
	if cfg.Database.MaxOpenConns > 0 {
		pool.MaxOpenConns = cfg.Database.MaxOpenConns
	}
	if cfg.Database.MaxIdleConns > 0 {
		pool.MaxIdleConns = cfg.Database.MaxIdleConns
	}
	db, err := store.Open(ctx, pool)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		store:    store.New(db),
		events:   events.Noop{},
		registry: prometheus.NewRegistry(),
	}
	a.onClose("database", func(context.Context) error { return db.Close() })
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "citymind"),
	)

	var c cache.Cache
	if opts.Remote && cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.onClose("redis", func(context.Context) error { return a.redis.Close() })
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		c = cache.NewRedisCache(a.redis, cache.DefaultCacheConfig())
		logger.Info("using redis cache", zap.String("addr", cfg.Redis.Addr))
	}

	if opts.Remote && cfg.NATS.URL != "" {
		pub, err := events.Connect(cfg.NATS.URL, logger)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.events = pub
		a.onClose("events", func(context.Context) error { return pub.Close() })
		logger.Info("publishing events to nats", zap.String("url", cfg.NATS.URL))
	}

	if len(cfg.Auth.JWTSecret) >= config.MinSecretLength {
		a.tokens, err = auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
	}

	deps := service.Deps{
		Store:  a.store,
		Cache:  c,
		Events: a.events,
		Tokens: a.tokens,
		Logger: logger,
	}
	if opts.Realtime {
		a.hub = websocket.NewHub(logger)
		deps.Notifier = a.hub
	}
	a.services = service.New(deps)
	return a, nil
}

func (a *app) onClose(name string, fn func(ctx context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Close releases resources in reverse order of acquisition
func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.logger.Warn("close failed", zap.String("resource", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}

// workers builds the job pool and the recurring scheduler over the app's
// database. Neither is started.
func (a *app) workers() (*jobs.WorkerPool, *jobs.Scheduler, error) {
	queue := jobs.NewQueue(a.db)
	pool := jobs.NewWorkerPool(queue, jobs.PoolConfig{
		Workers:      a.cfg.Jobs.Workers,
		PollInterval: a.cfg.Jobs.PollInterval,
	}, a.logger, jobs.NewMetrics(a.registry))
	service.RegisterJobs(pool, a.services, a.cfg.Jobs.FundingReminderDays)

	scheduler := jobs.NewScheduler(queue, a.logger)
	for _, s := range service.JobSchedules() {
		if err := scheduler.Add(s); err != nil {
			return nil, nil, err
		}
	}
	return pool, scheduler, nil
}

// redisOrNil keeps a missing client a nil interface
func redisOrNil(a *app) redis.UniversalClient {
	if a.redis == nil {
		return nil
	}
	return a.redis
}

// shutdownContext bounds cleanup after the command context is cancelled
func shutdownContext(d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), d)
}
