// Package events publishes domain events to subscribers outside the API
// process.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectPrefix is prepended to every subject published by this service
const SubjectPrefix = "citymind"

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, subject string, v interface{}) error
	Close() error
}

// Subject builds a dotted subject below SubjectPrefix. Empty and unsafe
// tokens are replaced so a caller-supplied value can never widen the subject.
func Subject(parts ...string) string {
	tokens := make([]string, 0, len(parts)+1)
	tokens = append(tokens, SubjectPrefix)
	for _, p := range parts {
		p = strings.Map(func(r rune) rune {
			switch r {
			case '.', '*', '>', ' ', '\t', '\n', '\r':
				return '_'
			}
			return r
		}, p)
		if p == "" {
			p = "_"
		}
		tokens = append(tokens, p)
	}
	return strings.Join(tokens, ".")
}

// Noop discards every event
type Noop struct{}

func (Noop) Publish(context.Context, string, interface{}) error { return nil }
func (Noop) Close() error                                       { return nil }

// conn is the part of *nats.Conn the publisher uses
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
	IsConnected() bool
}

// NATSPublisher publishes JSON-encoded events over a NATS connection
type NATSPublisher struct {
	nc     conn
	logger *zap.Logger
}

// Connect dials url and returns a publisher that reconnects indefinitely
func Connect(url string, logger *zap.Logger) (*NATSPublisher, error) {
	logger = logger.Named("events")
	nc, err := nats.Connect(url,
		nats.Name("citymind-api"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return newNATSPublisher(nc, logger), nil
}

func newNATSPublisher(nc conn, logger *zap.Logger) *NATSPublisher {
	return &NATSPublisher{nc: nc, logger: logger}
}

// Publish encodes v as JSON and publishes it on subject. Publishing is
// buffered by the client, so ctx only guards the encoding step.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event for %s: %w", subject, err)
	}
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Connected reports whether the underlying connection is up
func (p *NATSPublisher) Connected() bool {
	return p.nc.IsConnected()
}

// Close flushes pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
