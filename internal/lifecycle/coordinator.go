// Package lifecycle keeps the region monitor's active-region list in step with
// the persisted zones.
//
// Storage and the monitor are not updated atomically. Whatever drifts apart (a
// crash between the two calls, a reboot that wiped the monitor) is healed by the
// next ReregisterAll, which is safe to run at any time and any number of times.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
	"git.home.luguber.info/inful/careradius/internal/geofence"
	"git.home.luguber.info/inful/careradius/internal/logfields"
	"git.home.luguber.info/inful/careradius/internal/metrics"
	"git.home.luguber.info/inful/careradius/internal/monitor"
	"git.home.luguber.info/inful/careradius/internal/retry"
)

// Reasons a zone ended up unmonitored.
const (
	ReasonPermissionDenied = "permission_denied"
	ReasonPlatformError    = "platform_error"
)

// Registration is the monitoring state of one zone after RegisterZone.
type Registration struct {
	ZoneID    int64  `json:"zone_id"`
	Monitored bool   `json:"monitored"`
	Reason    string `json:"reason,omitempty"`
}

// Summary describes one ReregisterAll pass.
type Summary struct {
	Zones            int           `json:"zones"`
	Monitored        int           `json:"monitored"`
	PermissionDenied int           `json:"permission_denied"`
	Failed           int           `json:"failed"`
	Duration         time.Duration `json:"duration"`
}

// ZoneLister reads every persisted zone.
type ZoneLister interface {
	ListZones(ctx context.Context) ([]geofence.Zone, error)
}

// Coordinator drives the region monitor on behalf of zone mutations and
// recovery passes.
type Coordinator struct {
	adapter     monitor.Adapter
	zones       ZoneLister
	recorder    metrics.Recorder
	timeout     time.Duration
	concurrency int
	retry       retry.Policy

	// pass serializes ReregisterAll runs triggered from different sources.
	pass sync.Mutex
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRegisterTimeout bounds every Register and Unregister call.
func WithRegisterTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

// WithConcurrency limits parallel registrations during ReregisterAll.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) { c.concurrency = n }
}

// WithRetryPolicy retries transient service rejections before a zone is
// reported as unmonitored.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Coordinator) { c.retry = p }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Coordinator) { c.recorder = metrics.OrNoop(r) }
}

// New creates a Coordinator.
func New(adapter monitor.Adapter, zones ZoneLister, opts ...Option) *Coordinator {
	c := &Coordinator{
		adapter:     adapter,
		zones:       zones,
		recorder:    metrics.NoopRecorder{},
		timeout:     5 * time.Second,
		concurrency: 4,
		retry:       retry.NoRetry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.concurrency < 1 {
		c.concurrency = 1
	}
	return c
}

func (c *Coordinator) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// RegisterZone starts monitoring z. A missing location permission leaves the zone
// unmonitored and returns the permission error so the caller can surface it. A
// service rejection is logged and reported through Registration only.
func (c *Coordinator) RegisterZone(ctx context.Context, z geofence.Zone) (Registration, error) {
	reg := Registration{ZoneID: z.ID}

	region := monitor.RegionFor(z)
	attempts := 0
	err := c.retry.Do(ctx, transient, func(ctx context.Context) error {
		attempts++
		rctx, cancel := c.bounded(ctx)
		defer cancel()
		return c.adapter.Register(rctx, region)
	})

	switch {
	case err == nil:
		reg.Monitored = true
		c.recorder.IncRegistration(metrics.ResultMonitored)
		slog.Debug("Zone registered",
			logfields.ZoneID(z.ID),
			logfields.Radius(z.RadiusMeters),
			logfields.Monitor(c.adapter.Name()))
		return reg, nil

	case monitor.IsPermissionDenied(err):
		reg.Reason = ReasonPermissionDenied
		c.recorder.IncRegistration(metrics.ResultUnmonitored)
		slog.Warn("Zone saved but not monitored: background location not granted",
			logfields.ZoneID(z.ID))
		return reg, err

	default:
		if !ferrors.IsClassified(err) {
			err = ferrors.WrapError(err, ferrors.CategoryPlatform, monitor.ErrRegistrationFailed.Message()).
				Warning().
				Retryable().
				WithContext("zone_id", z.ID).
				Build()
		}
		reg.Reason = ReasonPlatformError
		c.recorder.IncRegistration(metrics.ResultFailed)
		slog.Warn("Zone registration rejected by region monitor",
			logfields.ZoneID(z.ID),
			logfields.Monitor(c.adapter.Name()),
			slog.Int("attempts", attempts),
			logfields.Error(err))
		return reg, nil
	}
}

// transient reports whether a Register failure may succeed on a later attempt.
// A full quota and a missing permission will not.
func transient(err error) bool {
	if monitor.IsPermissionDenied(err) || errors.Is(err, monitor.ErrQuotaExceeded) {
		return false
	}
	classified, ok := ferrors.AsClassified(err)
	return !ok || classified.CanRetry()
}

// UnregisterZone stops monitoring zoneID. Failures are logged and swallowed.
func (c *Coordinator) UnregisterZone(ctx context.Context, zoneID int64) {
	uctx, cancel := c.bounded(ctx)
	defer cancel()

	if err := c.adapter.Unregister(uctx, zoneID); err != nil {
		c.recorder.IncUnregistration(metrics.ResultFailed)
		slog.Warn("Zone unregistration failed",
			logfields.ZoneID(zoneID),
			logfields.Monitor(c.adapter.Name()),
			logfields.Error(err))
		return
	}
	c.recorder.IncUnregistration(metrics.ResultSuccess)
}

// ReregisterAll registers every persisted zone again. Per-zone failures are
// counted in the Summary and never abort the pass; only a failure to read the
// zones or cancellation of ctx is returned.
func (c *Coordinator) ReregisterAll(ctx context.Context) (Summary, error) {
	c.pass.Lock()
	defer c.pass.Unlock()

	start := time.Now()
	zones, err := c.zones.ListZones(ctx)
	if err != nil {
		return Summary{}, err
	}

	var monitored, denied, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for _, z := range zones {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			reg, _ := c.RegisterZone(ctx, z)
			switch {
			case reg.Monitored:
				monitored.Add(1)
			case reg.Reason == ReasonPermissionDenied:
				denied.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{
		Zones:            len(zones),
		Monitored:        int(monitored.Load()),
		PermissionDenied: int(denied.Load()),
		Failed:           int(failed.Load()),
		Duration:         time.Since(start),
	}
	c.recorder.ObserveReregisterAll(summary.Duration, summary.Zones)
	slog.Info("Re-registration pass complete",
		logfields.Count(summary.Zones),
		slog.Int("monitored", summary.Monitored),
		slog.Int("permission_denied", summary.PermissionDenied),
		slog.Int("failed", summary.Failed),
		logfields.Elapsed(start))
	return summary, ctx.Err()
}
