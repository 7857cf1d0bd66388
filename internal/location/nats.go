package location

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
	"git.home.luguber.info/inful/careradius/internal/geo"
)

// Fix is the position record kept in the KV bucket.
type Fix struct {
	geo.Position
	RecordedAt time.Time `json:"recorded_at"`
}

// KeyValue is the subset of jetstream.KeyValue the NATS provider uses.
type KeyValue interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
}

// NATS reads the device position that a tracker publishes into a KV bucket.
type NATS struct {
	kv     KeyValue
	key    string
	maxAge time.Duration
	now    func() time.Time
}

// NewNATS returns a provider reading key. Fixes older than maxAge are treated
// as unavailable; 0 accepts any age.
func NewNATS(kv KeyValue, key string, maxAge time.Duration) *NATS {
	return &NATS{kv: kv, key: key, maxAge: maxAge, now: time.Now}
}

func (n *NATS) CurrentPosition(ctx context.Context) (geo.Position, error) {
	entry, err := n.kv.Get(ctx, n.key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return geo.Position{}, ErrUnavailable
	}
	if err != nil {
		return geo.Position{}, ferrors.WrapError(err, ferrors.CategoryLocation, ErrUnavailable.Message()).
			WithContext("key", n.key).
			Build()
	}

	var fix Fix
	if err := json.Unmarshal(entry.Value(), &fix); err != nil {
		return geo.Position{}, ErrUnavailable.WithContext("cause", err.Error())
	}
	if fix.RecordedAt.IsZero() {
		fix.RecordedAt = entry.Created()
	}
	if n.maxAge > 0 && n.now().Sub(fix.RecordedAt) > n.maxAge {
		return geo.Position{}, ErrUnavailable.WithContext("recorded_at", fix.RecordedAt)
	}
	if err := fix.Validate(); err != nil {
		return geo.Position{}, ErrUnavailable.WithContext("cause", err.Error())
	}
	return fix.Position, nil
}

// Record stores p as the current fix.
func (n *NATS) Record(ctx context.Context, p geo.Position) error {
	data, err := json.Marshal(Fix{Position: p, RecordedAt: n.now()})
	if err != nil {
		return err
	}
	if _, err := n.kv.Put(ctx, n.key, data); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "failed to record position").
			WithContext("key", n.key).
			Build()
	}
	return nil
}
