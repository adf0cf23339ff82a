// Package nats publishes session events to a NATS JetStream stream.
package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/phantasma-ai/specky/pkg/logger"
)

const (
	// DefaultMaxAge is how long events are retained when Config.MaxAge is zero.
	DefaultMaxAge = 30 * 24 * time.Hour

	// DuplicateWindow is how long JetStream remembers event ids.
	DuplicateWindow = 2 * time.Minute

	connectTimeout = 5 * time.Second
	drainTimeout   = 5 * time.Second
)

// Config holds the event publisher connection and stream settings.
type Config struct {
	URL      string
	CAFile   string
	CertFile string
	KeyFile  string
	Token    string

	// MaxAge bounds event retention in the stream.
	MaxAge time.Duration
	// Replicas is the stream replica count; zero means one.
	Replicas int
}

// Client owns the connection used to publish session events.
type Client struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream jetstream.StreamConfig
	logger *logger.Logger
}

// Connect dials NATS and makes sure the events stream exists with the
// configured retention. The connection keeps reconnecting in the
// background; publishes made while disconnected fail and are logged by the
// caller.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	log = log.With(zap.String("component", "events"))

	timeout := connectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	opts := []nats.Option{
		nats.Name("specky-events"),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("event bus disconnected, events will be dropped", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("event bus reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error("event bus error", zap.Error(err))
		}),
	}

	if cfg.CAFile != "" {
		opts = append(opts, nats.RootCAs(cfg.CAFile))
	}
	if cfg.CertFile != "" || cfg.KeyFile != "" {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return nil, errors.New("NATS client certificate needs both a cert and a key file")
		}
		opts = append(opts, nats.ClientCert(cfg.CertFile, cfg.KeyFile))
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	c := &Client{
		conn:   nc,
		js:     js,
		stream: streamConfig(cfg),
		logger: log,
	}
	if err := c.EnsureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}

	log.Info("event stream ready",
		zap.String("url", nc.ConnectedUrl()),
		zap.String("stream", StreamName),
		zap.Duration("max_age", c.stream.MaxAge),
	)
	return c, nil
}

// JetStream returns the JetStream context.
func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

// Close drains pending publishes and closes the connection.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
		return
	}

	deadline := time.Now().Add(drainTimeout)
	for !c.conn.IsClosed() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	c.conn.Close()
}

// IsConnected returns true if connected to NATS.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}
