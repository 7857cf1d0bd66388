// Package broker owns the message broker connections shared by the monitor,
// notification and location adapters.
package broker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/careradius/internal/config"
	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
	"git.home.luguber.info/inful/careradius/internal/logfields"
)

// NATS holds one NATS connection and its JetStream context.
type NATS struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	timeout time.Duration
}

// ConnectNATS dials the server and creates the JetStream context.
func ConnectNATS(cfg config.NATSConfig) (*NATS, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("careradius"),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", logfields.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("NATS reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to connect to NATS").
			WithContext("url", cfg.URL).
			Retryable().
			Build()
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to create JetStream context").Build()
	}

	slog.Info("NATS connection established", slog.String("url", cfg.URL))
	return &NATS{conn: conn, js: js, timeout: cfg.Timeout}, nil
}

// Conn returns the core connection for plain subscriptions.
func (n *NATS) Conn() *nats.Conn { return n.conn }

// JetStream returns the JetStream context.
func (n *NATS) JetStream() jetstream.JetStream { return n.js }

// KeyValue returns the bucket, creating it with history 1 when missing.
func (n *NATS) KeyValue(ctx context.Context, bucket, description string) (jetstream.KeyValue, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	kv, err := n.js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to open KV bucket").
			WithContext("bucket", bucket).
			Build()
	}

	kv, err = n.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: description,
		History:     1,
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to create KV bucket").
			WithContext("bucket", bucket).
			Build()
	}
	slog.Info("Created KV bucket", slog.String("bucket", bucket))
	return kv, nil
}

// Close drains subscriptions and closes the connection.
func (n *NATS) Close() error {
	if n == nil || n.conn == nil {
		return nil
	}
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}
