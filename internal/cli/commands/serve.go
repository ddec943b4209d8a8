package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/citymind/urbanlink/internal/api"
	"github.com/citymind/urbanlink/internal/cli/ui"
	"github.com/citymind/urbanlink/internal/web/middleware"
	"github.com/citymind/urbanlink/internal/web/ratelimit"
	"github.com/citymind/urbanlink/internal/web/server"
)

// maxRequestBody caps JSON request bodies
const maxRequestBody = 1 << 20

func newServeCommand(opts *rootOptions) *cobra.Command {
	var noWorkers bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Start the REST API, the realtime notification stream and, unless
--no-workers is given, the background job workers.

The server drains in-flight requests on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.RequireServe(); err != nil {
				return err
			}

			ctx, stop := server.SignalContext(cmd.Context())
			defer stop()

			a, err := openApp(ctx, cfg, logger, appOptions{Realtime: true, Remote: true})
			if err != nil {
				return err
			}
			defer func() {
				sctx, cancel := shutdownContext(cfg.Server.ShutdownTimeout)
				defer cancel()
				a.Close(sctx)
			}()

			handler, err := buildHandler(a)
			if err != nil {
				return err
			}

			srvCfg := server.DefaultConfig(handler)
			srvCfg.Address = cfg.Server.Address()
			srvCfg.ReadTimeout = cfg.Server.ReadTimeout
			srvCfg.WriteTimeout = cfg.Server.WriteTimeout
			srvCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
			srv, err := server.New(srvCfg, logger)
			if err != nil {
				return err
			}

			hubCtx, stopHub := context.WithCancel(context.Background())
			defer stopHub()
			go a.hub.Run(hubCtx)
			srv.OnShutdown("notification hub", func(ctx context.Context) error {
				stopHub()
				select {
				case <-a.hub.Done():
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})

			if !noWorkers {
				pool, scheduler, err := a.workers()
				if err != nil {
					return err
				}
				workCtx, stopWork := context.WithCancel(context.Background())
				pool.Start(workCtx)
				scheduler.Start(workCtx)
				srv.OnShutdown("job workers", func(context.Context) error {
					scheduler.Stop()
					pool.Stop()
					stopWork()
					return nil
				})
			}

			kv := ui.NewKeyValues(cmd.OutOrStdout(), opts.noColor)
			kv.Add("Address", srvCfg.Address)
			kv.Add("API prefix", cfg.Server.APIPrefix)
			kv.Add("Workers", workerSummary(noWorkers, cfg.Jobs.Workers))
			kv.Add("Cache", backend(a.redis != nil, "redis", "memory"))
			kv.Add("Events", backend(cfg.NATS.URL != "", "nats", "disabled"))
			kv.Render()

			logger.Info("starting citymind api", zap.String("version", Version), zap.String("addr", srvCfg.Address))
			return srv.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&noWorkers, "no-workers", false, "Do not run background job workers in this process")
	return cmd
}

// buildHandler assembles the router and the middleware dependencies
func buildHandler(a *app) (http.Handler, error) {
	limiter, err := ratelimit.New(ratelimit.Config{
		Requests: a.cfg.RateLimit.Requests,
		Window:   a.cfg.RateLimit.Window,
	}, redisOrNil(a))
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	if c, ok := limiter.(interface{ Close() error }); ok {
		a.onClose("rate limiter", func(context.Context) error { return c.Close() })
	}

	return api.NewRouter(api.Config{
		Prefix:         a.cfg.Server.APIPrefix,
		AllowedOrigins: a.cfg.CORS.AllowedOrigins,
		RequestTimeout: a.cfg.Server.RequestTimeout,
		MaxBodyBytes:   maxRequestBody,
	}, api.Deps{
		Services: a.services,
		Tokens:   a.tokens,
		Limiter:  limiter,
		Hub:      a.hub,
		Health:   a.store,
		Metrics:  middleware.NewHTTPMetrics(a.registry),
		Gatherer: a.registry,
		Logger:   a.logger,
	}), nil
}

func workerSummary(disabled bool, n int) string {
	if disabled {
		return "disabled"
	}
	return fmt.Sprintf("%d", n)
}

func backend(on bool, yes, no string) string {
	if on {
		return yes
	}
	return no
}
