// Package daemon runs careradius as a long-lived service: it feeds region
// monitor callbacks into the visit ledger, keeps every zone registered across
// restarts and reboots, and serves the admin API.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/careradius/internal/app"
	"git.home.luguber.info/inful/careradius/internal/config"
	"git.home.luguber.info/inful/careradius/internal/events"
	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
	"git.home.luguber.info/inful/careradius/internal/logfields"
	"git.home.luguber.info/inful/careradius/internal/server/responses"
)

// Status is the daemon lifecycle state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

func (s Status) String() string { return string(s) }

// Recovery reasons carried by events.RecoveryRequested.
const (
	ReasonStartup    = "startup"
	ReasonBoot       = "boot"
	ReasonSchedule   = "schedule"
	ReasonManual     = "manual"
	ReasonPermission = "permission"
)

const zoneChangeBuffer = 64

// Daemon owns the wired application and its background workers.
type Daemon struct {
	app    *app.App
	cfg    *config.Config
	status atomic.Value

	startedAt atomic.Int64

	mu          sync.Mutex
	cancel      context.CancelFunc
	workers     WorkerGroup
	unsubscribe []func()
	scheduler   *Scheduler
	bootWatcher *BootWatcher
	httpServer  *HTTPServer

	zones          zoneSnapshot
	lastRecovery   atomic.Pointer[responses.RecoveryResponse]
	lastTransition atomic.Pointer[responses.LastTransition]
}

// New builds the application from cfg and returns a stopped daemon.
func New(ctx context.Context, cfg *config.Config, opts ...app.Option) (*Daemon, error) {
	a, err := app.Build(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return NewWithApp(a), nil
}

// NewWithApp wraps an already built application.
func NewWithApp(a *app.App) *Daemon {
	d := &Daemon{app: a, cfg: a.Config}
	d.status.Store(StatusStopped)
	return d
}

// App exposes the wired application.
func (d *Daemon) App() *app.App { return d.app }

func (d *Daemon) GetStatus() Status {
	return d.status.Load().(Status)
}

// HTTPAddr is the bound admin API address, or "" when the API is disabled.
func (d *Daemon) HTTPAddr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.httpServer == nil {
		return ""
	}
	return d.httpServer.Addr()
}

// Start launches the transition loop, the zone and visit event consumers, the recovery
// worker with a startup pass, the health check job, the boot marker watcher
// and the admin API. It returns once everything is running.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s := d.GetStatus(); s != StatusStopped {
		return ferrors.DaemonError("daemon is not stopped").WithContext("status", string(s)).Build()
	}
	d.status.Store(StatusStarting)
	d.startedAt.Store(time.Now().UnixNano())
	d.lastRecovery.Store(nil)
	d.workers.Reset()

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.start(runCtx); err != nil {
		_ = d.shutdown(context.Background())
		d.status.Store(StatusError)
		return err
	}

	d.status.Store(StatusRunning)
	slog.Info("Daemon started",
		logfields.Monitor(d.app.Monitor.Name()),
		slog.String("http", d.cfg.HTTP.Addr),
		slog.Bool("http_enabled", d.cfg.HTTP.Enabled))
	return nil
}

func (d *Daemon) start(ctx context.Context) error {
	if err := d.refreshZones(ctx); err != nil {
		return err
	}
	if err := d.refreshOpenVisits(ctx); err != nil {
		return err
	}

	zoneCh, unsubZones := events.Subscribe[events.ZoneChanged](d.app.Bus, zoneChangeBuffer)
	visitCh, unsubVisits := events.Subscribe[events.VisitEvent](d.app.Bus, visitEventBuffer)
	// One slot: a request arriving while one is pending is already covered by it.
	recoveryCh, unsubRecovery := events.Subscribe[events.RecoveryRequested](d.app.Bus, 1)
	d.unsubscribe = append(d.unsubscribe, unsubZones, unsubVisits, unsubRecovery)

	d.workers.Go(func() { d.runMonitor(ctx) })
	d.workers.Go(func() { d.consumeZoneChanges(ctx, zoneCh) })
	d.workers.Go(func() { d.consumeVisitEvents(ctx, visitCh) })
	d.workers.Go(func() { d.consumeRecovery(ctx, recoveryCh) })
	d.RequestRecovery(ReasonStartup)

	if interval := d.cfg.Recovery.ReregisterInterval; interval > 0 {
		s, err := NewScheduler()
		if err != nil {
			return err
		}
		if _, err := s.ScheduleEvery("reregister-health-check", interval, func() {
			d.RequestRecovery(ReasonSchedule)
		}); err != nil {
			_ = s.Stop()
			return err
		}
		s.Start()
		d.scheduler = s
	}

	if marker := d.cfg.Recovery.BootMarker; marker != "" {
		bw, err := NewBootWatcher(marker, func() { d.RequestRecovery(ReasonBoot) })
		if err != nil {
			return err
		}
		d.bootWatcher = bw
		if err := bw.Start(ctx); err != nil {
			return err
		}
	}

	if d.cfg.HTTP.Enabled {
		srv := NewHTTPServer(d.cfg.HTTP.Addr, d)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		d.httpServer = srv
	}
	return nil
}

// Run starts the daemon, blocks until ctx is done, then stops it within stopTimeout.
func (d *Daemon) Run(ctx context.Context, stopTimeout time.Duration) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	slog.Info("Shutdown requested", logfields.Reason(context.Cause(ctx).Error()))

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return d.Stop(stopCtx)
}

// Stop shuts everything down in reverse start order. Stopping a stopped daemon
// is a no-op.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.GetStatus() == StatusStopped {
		return nil
	}
	d.status.Store(StatusStopping)
	err := d.shutdown(ctx)
	d.status.Store(StatusStopped)
	if err != nil {
		slog.Warn("Daemon stopped with errors", logfields.Error(err))
		return err
	}
	slog.Info("Daemon stopped", slog.Duration("uptime", d.uptime()))
	return nil
}

// shutdown must be called with d.mu held.
func (d *Daemon) shutdown(ctx context.Context) error {
	var errs []error
	if d.httpServer != nil {
		if err := d.httpServer.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
		d.httpServer = nil
	}
	if d.bootWatcher != nil {
		if err := d.bootWatcher.Stop(); err != nil {
			errs = append(errs, err)
		}
		d.bootWatcher = nil
	}
	if d.scheduler != nil {
		if err := d.scheduler.Stop(); err != nil {
			errs = append(errs, err)
		}
		d.scheduler = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	for _, unsubscribe := range d.unsubscribe {
		unsubscribe()
	}
	d.unsubscribe = nil
	if err := d.workers.StopAndWait(ctx); err != nil {
		errs = append(errs, ferrors.WrapError(err, ferrors.CategoryDaemon, "workers did not stop in time").Build())
	}
	return errors.Join(errs...)
}

func (d *Daemon) uptime() time.Duration {
	started := d.startedAt.Load()
	if started == 0 {
		return 0
	}
	return time.Since(time.Unix(0, started)).Truncate(time.Second)
}

// Close releases the application. Call it after Stop.
func (d *Daemon) Close() error {
	return d.app.Close()
}

func (d *Daemon) runMonitor(ctx context.Context) {
	err := d.app.Monitor.Run(ctx, d.app.Handler)
	if err != nil && ctx.Err() == nil {
		slog.Error("Region monitor stopped delivering transitions",
			logfields.Monitor(d.app.Monitor.Name()),
			logfields.Error(err))
		d.status.CompareAndSwap(StatusRunning, StatusError)
	}
}

func (d *Daemon) consumeZoneChanges(ctx context.Context, ch <-chan events.ZoneChanged) {
	for evt := range ch {
		// A burst of writes needs one refresh.
		pending := len(ch)
		for range pending {
			<-ch
		}
		if err := d.refreshZones(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Zone snapshot refresh failed",
				logfields.ZoneID(evt.ZoneID),
				logfields.Error(err))
		}
	}
}

func (d *Daemon) refreshZones(ctx context.Context) error {
	n, err := d.zones.refresh(ctx, d.app.Store)
	if err != nil {
		return err
	}
	d.app.Recorder.SetZones(n)
	return nil
}

func (d *Daemon) consumeRecovery(ctx context.Context, ch <-chan events.RecoveryRequested) {
	for req := range ch {
		if ctx.Err() != nil {
			return
		}
		d.Reregister(ctx, req.Reason)
	}
}

// RequestRecovery queues a background re-registration pass. It never blocks;
// a request made while another is pending is dropped.
func (d *Daemon) RequestRecovery(reason string) {
	dropped := d.app.Bus.Offer(events.RecoveryRequested{Reason: reason, RequestedAt: time.Now()})
	if dropped > 0 {
		slog.Debug("Re-registration already pending", logfields.Reason(reason))
	}
}

// Reregister runs a re-registration pass now and records it for health checks.
func (d *Daemon) Reregister(ctx context.Context, reason string) responses.RecoveryResponse {
	report := responses.RecoveryResponse{Reason: reason, StartedAt: time.Now()}
	summary, err := d.app.Coordinator.ReregisterAll(ctx)
	report.Summary = summary
	if err != nil {
		report.Error = err.Error()
		slog.Warn("Re-registration pass failed", logfields.Reason(reason), logfields.Error(err))
	} else {
		slog.Info("Re-registration pass finished",
			logfields.Reason(reason),
			logfields.Count(summary.Zones),
			slog.Int("monitored", summary.Monitored),
			slog.Int("permission_denied", summary.PermissionDenied),
			slog.Int("failed", summary.Failed))
	}
	d.lastRecovery.Store(&report)
	return report
}

// SetBackgroundLocation flips the background location grant. Regaining it
// triggers a re-registration pass.
func (d *Daemon) SetBackgroundLocation(granted bool) {
	d.app.Permission.Set(granted)
	slog.Info("Background location permission changed", slog.Bool("granted", granted))
	if granted {
		d.RequestRecovery(ReasonPermission)
	}
}

// SetNotificationsEnabled toggles notification delivery. The ledger is unaffected.
func (d *Daemon) SetNotificationsEnabled(enabled bool) {
	d.app.Notifier.SetEnabled(enabled)
	slog.Info("Notifications toggled", slog.Bool("enabled", enabled))
}
