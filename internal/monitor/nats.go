package monitor

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/careradius/internal/broker"
	"git.home.luguber.info/inful/careradius/internal/logfields"
)

const regionKeyPrefix = "zone."

// NATS keeps the active-region list in a JetStream KV bucket and consumes
// transitions published on a subject by an external monitoring service.
type NATS struct {
	conn       subscriber
	kv         regionBucket
	subject    string
	permission PermissionChecker
	maxRegions int
	timeout    time.Duration

	done chan struct{}
	once sync.Once
}

// subscriber is the part of *nats.Conn the adapter uses.
type subscriber interface {
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// regionBucket is the subset of jetstream.KeyValue the adapter uses.
type regionBucket interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error
	ListKeys(ctx context.Context, opts ...jetstream.WatchOpt) (jetstream.KeyLister, error)
}

// NATSOptions tunes the NATS adapter.
type NATSOptions struct {
	Bucket     string
	Subject    string
	Permission PermissionChecker
	MaxRegions int
	Timeout    time.Duration
}

// NewNATS opens (or creates) the regions bucket on nc.
func NewNATS(ctx context.Context, nc *broker.NATS, opts NATSOptions) (*NATS, error) {
	kv, err := nc.KeyValue(ctx, opts.Bucket, "careradius active regions")
	if err != nil {
		return nil, err
	}
	return newNATS(nc.Conn(), kv, opts), nil
}

func newNATS(conn subscriber, kv regionBucket, opts NATSOptions) *NATS {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &NATS{
		conn:       conn,
		kv:         kv,
		subject:    opts.Subject,
		permission: opts.Permission,
		maxRegions: opts.MaxRegions,
		timeout:    opts.Timeout,
		done:       make(chan struct{}),
	}
}

func (n *NATS) Name() string { return "nats" }

func regionKey(zoneID int64) string {
	return regionKeyPrefix + strconv.FormatInt(zoneID, 10)
}

func zoneIDFromKey(key string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(key, regionKeyPrefix), 10, 64)
	return id, err == nil && strings.HasPrefix(key, regionKeyPrefix)
}

// Register implements Adapter.
func (n *NATS) Register(ctx context.Context, r Region) error {
	if err := checkPermission(ctx, n.permission, r.ZoneID); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if n.maxRegions > 0 {
		ids, err := n.activeIDs(ctx)
		if err != nil {
			return platformError(ErrRegistrationFailed, err, r.ZoneID)
		}
		if _, exists := ids[r.ZoneID]; !exists && len(ids) >= n.maxRegions {
			return ErrQuotaExceeded.
				WithContext("zone_id", r.ZoneID).
				WithContext("max_regions", n.maxRegions)
		}
	}

	data, err := encodeRegion(r)
	if err != nil {
		return platformError(ErrRegistrationFailed, err, r.ZoneID)
	}
	if _, err := n.kv.Put(ctx, regionKey(r.ZoneID), data); err != nil {
		return platformError(ErrRegistrationFailed, err, r.ZoneID)
	}
	return nil
}

// Unregister implements Adapter.
func (n *NATS) Unregister(ctx context.Context, zoneID int64) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	err := n.kv.Delete(ctx, regionKey(zoneID))
	if err == nil || errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return platformError(ErrUnregistrationFailed, err, zoneID)
}

// Regions lists the registrations stored in the bucket.
func (n *NATS) Regions(ctx context.Context) ([]Region, error) {
	ids, err := n.activeIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Region, 0, len(ids))
	for id := range ids {
		entry, err := n.kv.Get(ctx, regionKey(id))
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		r, err := decodeRegion(entry.Value())
		if err != nil {
			slog.Warn("Skipping undecodable region", logfields.ZoneID(id), logfields.Error(err))
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (n *NATS) activeIDs(ctx context.Context) (map[int64]struct{}, error) {
	ids := make(map[int64]struct{})
	lister, err := n.kv.ListKeys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return ids, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = lister.Stop() }()
	for key := range lister.Keys() {
		if id, ok := zoneIDFromKey(key); ok {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

// Run implements Adapter. Each message is handled on its own goroutine.
func (n *NATS) Run(ctx context.Context, sink Sink) error {
	var inflight dispatcher
	sub, err := n.conn.Subscribe(n.subject, func(msg *nats.Msg) {
		t, err := DecodeTransition(msg.Data)
		if err != nil {
			slog.Warn("Ignoring invalid transition message",
				slog.String("subject", msg.Subject),
				logfields.Error(err))
			return
		}
		inflight.dispatch(ctx, sink, t)
	})
	if err != nil {
		return subscribeError(err, n.subject)
	}
	slog.Info("Consuming transitions", logfields.Monitor(n.Name()), slog.String("subject", n.subject))

	select {
	case <-ctx.Done():
	case <-n.done:
	}
	if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		slog.Warn("Failed to unsubscribe transitions", logfields.Error(err))
	}
	inflight.drain()
	return nil
}

// Close stops Run. The shared connection is owned by the caller.
func (n *NATS) Close() error {
	n.once.Do(func() { close(n.done) })
	return nil
}
