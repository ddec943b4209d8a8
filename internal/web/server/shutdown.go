package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// ShutdownHook runs after the HTTP server stops accepting requests. Hooks
// close what the handlers depend on: worker pools, the hub, database pools.
type ShutdownHook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// OnShutdown registers a hook. Hooks run in registration order.
func (s *Server) OnShutdown(name string, fn func(ctx context.Context) error) {
	s.hooks = append(s.hooks, ShutdownHook{Name: name, Fn: fn})
}

func (s *Server) shutdown(errCh <-chan error) error {
	s.logger.Info("shutting down", zap.Duration("timeout", s.config.ShutdownTimeout))

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	<-errCh

	for _, hook := range s.hooks {
		if err := hook.Fn(ctx); err != nil {
			// keep going so later hooks still release their resources
			s.logger.Error("shutdown hook failed", zap.String("hook", hook.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", hook.Name, err))
		}
	}

	if len(errs) == 0 {
		s.logger.Info("shutdown complete")
	}
	return errors.Join(errs...)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
