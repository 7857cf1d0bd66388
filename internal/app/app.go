// Package app is the composition root. Build wires every collaborator from the
// configuration; nothing else in the tree constructs shared instances.
package app

import (
	"context"
	"errors"
	"log/slog"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/careradius/internal/broker"
	"git.home.luguber.info/inful/careradius/internal/config"
	"git.home.luguber.info/inful/careradius/internal/events"
	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
	"git.home.luguber.info/inful/careradius/internal/geo"
	"git.home.luguber.info/inful/careradius/internal/lifecycle"
	"git.home.luguber.info/inful/careradius/internal/location"
	"git.home.luguber.info/inful/careradius/internal/logfields"
	"git.home.luguber.info/inful/careradius/internal/metrics"
	"git.home.luguber.info/inful/careradius/internal/monitor"
	"git.home.luguber.info/inful/careradius/internal/notify"
	"git.home.luguber.info/inful/careradius/internal/reconcile"
	"git.home.luguber.info/inful/careradius/internal/retry"
	"git.home.luguber.info/inful/careradius/internal/store"
	"git.home.luguber.info/inful/careradius/internal/transition"
	"git.home.luguber.info/inful/careradius/internal/zones"
)

// ErrPositionFeedUnsupported is returned by UpdatePosition when no configured
// component consumes positions.
var ErrPositionFeedUnsupported = ferrors.ValidationError("no position consumer configured").Build()

// App holds the wired subsystem.
type App struct {
	Config      *config.Config
	Store       *store.SQLiteStore
	Bus         *events.Bus
	Monitor     monitor.Adapter
	Permission  *monitor.StaticPermission
	Location    location.Provider
	Notifier    *notify.Gated
	Registry    *prom.Registry
	Recorder    metrics.Recorder
	Handler     *transition.Handler
	Coordinator *lifecycle.Coordinator
	Reconciler  *reconcile.Reconciler
	Zones       *zones.Service

	local     *monitor.Local
	natsFixes *location.NATS
	natsConn  *broker.NATS
	closers   []func() error
}

// Option customizes Build, mostly for tests.
type Option func(*options)

type options struct {
	adapter     monitor.Adapter
	storeOpts   []store.Option
	handlerOpts []transition.Option
}

// WithAdapter replaces the configured region monitor.
func WithAdapter(a monitor.Adapter) Option {
	return func(o *options) { o.adapter = a }
}

// WithStoreOptions passes extra options to store.Open.
func WithStoreOptions(opts ...store.Option) Option {
	return func(o *options) { o.storeOpts = append(o.storeOpts, opts...) }
}

// WithHandlerOptions passes extra options to transition.New.
func WithHandlerOptions(opts ...transition.Option) Option {
	return func(o *options) { o.handlerOpts = append(o.handlerOpts, opts...) }
}

// Build opens the store and wires every component described by cfg.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Config:     cfg,
		Bus:        events.NewBus(),
		Permission: monitor.NewStaticPermission(cfg.Monitor.BackgroundLocation),
		Registry:   prom.NewRegistry(),
	}
	a.closers = append(a.closers, func() error { a.Bus.Close(); return nil })
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Recorder = metrics.NewPrometheusRecorder(a.Registry)

	a.Store, err = store.Open(ctx, cfg.Database.Path, append([]store.Option{store.WithChangeBus(a.Bus)}, o.storeOpts...)...)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Store.Close)

	if o.adapter != nil {
		a.Monitor = o.adapter
	} else if a.Monitor, err = a.buildMonitor(ctx); err != nil {
		return nil, err
	}
	if l, ok := a.Monitor.(*monitor.Local); ok {
		a.local = l
	}
	a.closers = append(a.closers, a.Monitor.Close)

	if a.Location, err = a.buildLocation(ctx); err != nil {
		return nil, err
	}

	sink, err := a.buildNotifier()
	if err != nil {
		return nil, err
	}
	a.Notifier = notify.NewGated(notify.Timeout(sink, cfg.Notifications.Timeout), cfg.Notifications.Enabled)

	a.Handler = transition.New(a.Store, append([]transition.Option{
		transition.WithNotifier(a.Notifier),
		transition.WithRecorder(a.Recorder),
		transition.WithBus(a.Bus),
	}, o.handlerOpts...)...)

	a.Coordinator = lifecycle.New(a.Monitor, a.Store,
		lifecycle.WithRegisterTimeout(cfg.Monitor.RegisterTimeout),
		lifecycle.WithConcurrency(cfg.Recovery.Concurrency),
		lifecycle.WithRetryPolicy(retry.FromConfig(cfg.Monitor.Retry)),
		lifecycle.WithRecorder(a.Recorder))

	a.Reconciler = reconcile.New(a.Store, a.Handler, a.Coordinator, a.Location,
		reconcile.WithLocationTimeout(cfg.Location.Timeout),
		reconcile.WithRecorder(a.Recorder))

	a.Zones = zones.NewService(a.Store, a.Coordinator, a.Reconciler)

	slog.Debug("Application wired",
		logfields.Monitor(a.Monitor.Name()),
		slog.String("location", string(cfg.Location.Provider)),
		slog.String("database", cfg.Database.Path))
	return a, nil
}

func (a *App) nats() (*broker.NATS, error) {
	if a.natsConn != nil {
		return a.natsConn, nil
	}
	nc, err := broker.ConnectNATS(a.Config.NATS)
	if err != nil {
		return nil, err
	}
	a.natsConn = nc
	a.closers = append(a.closers, nc.Close)
	return nc, nil
}

func (a *App) buildMonitor(ctx context.Context) (monitor.Adapter, error) {
	mc := a.Config.Monitor
	switch mc.Type {
	case config.MonitorNATS:
		nc, err := a.nats()
		if err != nil {
			return nil, err
		}
		return monitor.NewNATS(ctx, nc, monitor.NATSOptions{
			Bucket:     a.Config.NATS.RegionsBucket,
			Subject:    a.Config.NATS.TransitionsSubject,
			Permission: a.Permission,
			MaxRegions: mc.MaxRegions,
			Timeout:    mc.RegisterTimeout,
		})
	case config.MonitorMQTT:
		client, err := broker.ConnectMQTT(a.Config.MQTT)
		if err != nil {
			return nil, err
		}
		return monitor.NewMQTT(client, monitor.MQTTOptions{
			TopicPrefix: a.Config.MQTT.TopicPrefix,
			QoS:         a.Config.MQTT.QoS,
			Permission:  a.Permission,
			MaxRegions:  mc.MaxRegions,
			Timeout:     mc.RegisterTimeout,
		}), nil
	default:
		return monitor.NewLocal(
			monitor.WithPermission(a.Permission),
			monitor.WithMaxRegions(mc.MaxRegions),
			monitor.WithInitialEnter(mc.InitialEnter),
			monitor.WithEventBuffer(mc.EventBuffer),
		), nil
	}
}

func (a *App) buildLocation(ctx context.Context) (location.Provider, error) {
	lc := a.Config.Location
	switch lc.Provider {
	case config.LocationFixed:
		return location.Fixed(geo.Position{Latitude: lc.Latitude, Longitude: lc.Longitude}), nil
	case config.LocationMonitor:
		if a.local == nil {
			slog.Warn("Location provider 'monitor' needs the local monitor; positions will be unavailable",
				logfields.Monitor(a.Monitor.Name()))
			return location.None{}, nil
		}
		return location.FromLastKnown(a.local), nil
	case config.LocationNATS:
		nc, err := a.nats()
		if err != nil {
			return nil, err
		}
		kv, err := nc.KeyValue(ctx, a.Config.NATS.PositionBucket, "careradius device position")
		if err != nil {
			return nil, err
		}
		a.natsFixes = location.NewNATS(kv, a.Config.NATS.PositionKey, lc.MaxAge)
		return a.natsFixes, nil
	default:
		return location.None{}, nil
	}
}

func (a *App) buildNotifier() (notify.Notifier, error) {
	var sinks notify.Multi
	for _, s := range a.Config.Notifications.Sinks {
		switch s {
		case config.NotificationSinkNATS:
			nc, err := a.nats()
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, notify.NewNATS(nc.Conn(), a.Config.NATS.NotificationsSubject))
		default:
			sinks = append(sinks, notify.NewLog(nil))
		}
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sinks, nil
}

// UpdatePosition feeds a device position to every configured consumer: the
// local monitor derives transitions from it and the NATS position bucket keeps
// it for the reconciler.
func (a *App) UpdatePosition(ctx context.Context, p geo.Position) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if a.local == nil && a.natsFixes == nil {
		return ErrPositionFeedUnsupported.WithContext("monitor", a.Monitor.Name())
	}
	if a.local != nil {
		a.local.UpdatePosition(p)
	}
	if a.natsFixes != nil {
		return a.natsFixes.Record(ctx, p)
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
