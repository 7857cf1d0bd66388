package monitor

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"git.home.luguber.info/inful/careradius/internal/logfields"
)

// MQTT publishes the active-region list as retained messages under
// <prefix>/regions/<zone id> and subscribes to <prefix>/transitions.
type MQTT struct {
	client     mqtt.Client
	prefix     string
	qos        byte
	permission PermissionChecker
	maxRegions int
	timeout    time.Duration

	mu     sync.Mutex
	active map[int64]struct{}

	done chan struct{}
	once sync.Once
}

// MQTTOptions tunes the MQTT adapter.
type MQTTOptions struct {
	TopicPrefix string
	QoS         byte
	Permission  PermissionChecker
	MaxRegions  int
	Timeout     time.Duration
}

// NewMQTT wraps a connected client.
func NewMQTT(client mqtt.Client, opts MQTTOptions) *MQTT {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &MQTT{
		client:     client,
		prefix:     opts.TopicPrefix,
		qos:        opts.QoS,
		permission: opts.Permission,
		maxRegions: opts.MaxRegions,
		timeout:    opts.Timeout,
		active:     make(map[int64]struct{}),
		done:       make(chan struct{}),
	}
}

func (m *MQTT) Name() string { return "mqtt" }

func (m *MQTT) regionTopic(zoneID int64) string {
	return m.prefix + "/regions/" + strconv.FormatInt(zoneID, 10)
}

func (m *MQTT) transitionsTopic() string {
	return m.prefix + "/transitions"
}

// wait blocks on token for at most the adapter timeout.
func (m *MQTT) wait(token mqtt.Token) error {
	if !token.WaitTimeout(m.timeout) {
		return context.DeadlineExceeded
	}
	return token.Error()
}

// Register implements Adapter.
func (m *MQTT) Register(ctx context.Context, r Region) error {
	if err := checkPermission(ctx, m.permission, r.ZoneID); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[r.ZoneID]; !exists && m.maxRegions > 0 && len(m.active) >= m.maxRegions {
		return ErrQuotaExceeded.
			WithContext("zone_id", r.ZoneID).
			WithContext("max_regions", m.maxRegions)
	}

	data, err := encodeRegion(r)
	if err != nil {
		return platformError(ErrRegistrationFailed, err, r.ZoneID)
	}
	if err := m.wait(m.client.Publish(m.regionTopic(r.ZoneID), m.qos, true, data)); err != nil {
		return platformError(ErrRegistrationFailed, err, r.ZoneID)
	}
	m.active[r.ZoneID] = struct{}{}
	return nil
}

// Unregister implements Adapter. An empty retained payload clears the region.
func (m *MQTT) Unregister(_ context.Context, zoneID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.wait(m.client.Publish(m.regionTopic(zoneID), m.qos, true, []byte{})); err != nil {
		return platformError(ErrUnregistrationFailed, err, zoneID)
	}
	delete(m.active, zoneID)
	return nil
}

// Active returns the zone ids registered through this client.
func (m *MQTT) Active() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.active))
}

// Run implements Adapter.
func (m *MQTT) Run(ctx context.Context, sink Sink) error {
	var inflight dispatcher
	topic := m.transitionsTopic()

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		t, err := DecodeTransition(msg.Payload())
		if err != nil {
			slog.Warn("Ignoring invalid transition message",
				slog.String("topic", msg.Topic()),
				logfields.Error(err))
			return
		}
		inflight.dispatch(ctx, sink, t)
	}
	if err := m.wait(m.client.Subscribe(topic, m.qos, handler)); err != nil {
		return subscribeError(err, topic)
	}
	slog.Info("Consuming transitions", logfields.Monitor(m.Name()), slog.String("topic", topic))

	select {
	case <-ctx.Done():
	case <-m.done:
	}
	if err := m.wait(m.client.Unsubscribe(topic)); err != nil {
		slog.Warn("Failed to unsubscribe transitions", logfields.Error(err))
	}
	inflight.drain()
	return nil
}

// Close stops Run and disconnects the client.
func (m *MQTT) Close() error {
	m.once.Do(func() {
		close(m.done)
		m.client.Disconnect(250)
	})
	return nil
}
