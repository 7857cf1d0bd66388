// Package reconcile keeps the visit ledger truthful when a zone's geometry
// changes or the zone is deleted.
//
// A shrink or a move can leave the device outside a zone it still has an open
// visit for; the monitor will never send the EXIT for it, so the reconciler
// closes the visit itself. Widening never opens a visit.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/careradius/internal/geo"
	"git.home.luguber.info/inful/careradius/internal/geofence"
	"git.home.luguber.info/inful/careradius/internal/lifecycle"
	"git.home.luguber.info/inful/careradius/internal/location"
	"git.home.luguber.info/inful/careradius/internal/logfields"
	"git.home.luguber.info/inful/careradius/internal/metrics"
	"git.home.luguber.info/inful/careradius/internal/store"
)

// Skip reasons reported in Result.Skipped.
const (
	SkipLocationUnavailable = "location_unavailable"
	SkipLocationFailed      = "location_failed"
	SkipInside              = "inside"
	SkipNoOpenVisit         = "no_open_visit"
)

// VisitCloser performs the EXIT ledger step without notifying.
type VisitCloser interface {
	CloseOpenVisit(ctx context.Context, zoneID int64) (*geofence.Visit, error)
}

// Registrar is the subset of the lifecycle coordinator the reconciler uses.
type Registrar interface {
	RegisterZone(ctx context.Context, z geofence.Zone) (lifecycle.Registration, error)
	UnregisterZone(ctx context.Context, zoneID int64)
}

// Result is the outcome of CloseIfOutside.
type Result struct {
	// Skipped is empty when a visit was closed.
	Skipped        string          `json:"skipped,omitempty"`
	DistanceMeters *float64        `json:"distance_m,omitempty"`
	Closed         *geofence.Visit `json:"closed,omitempty"`
}

// EditResult is the outcome of ApplyEdit.
type EditResult struct {
	Zone         geofence.Zone          `json:"zone"`
	Checked      bool                   `json:"checked"`
	Reconcile    Result                 `json:"reconcile"`
	Registration lifecycle.Registration `json:"registration"`
	// RegistrationErr is the permission error RegisterZone surfaced, if any.
	RegistrationErr error `json:"-"`
}

// Reconciler applies zone edits and deletions.
type Reconciler struct {
	zones     store.ZoneStore
	closer    VisitCloser
	registrar Registrar
	position  location.Provider
	recorder  metrics.Recorder
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLocationTimeout bounds every position read.
func WithLocationTimeout(d time.Duration) Option {
	return func(r *Reconciler) { r.position = location.Bounded(r.position, d) }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Reconciler) { r.recorder = metrics.OrNoop(rec) }
}

// New creates a Reconciler. A nil provider means the position is never known.
func New(zones store.ZoneStore, closer VisitCloser, registrar Registrar, position location.Provider, opts ...Option) *Reconciler {
	if position == nil {
		position = location.None{}
	}
	r := &Reconciler{
		zones:     zones,
		closer:    closer,
		registrar: registrar,
		position:  position,
		recorder:  metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NeedsCheck reports whether replacing old with updated may have left the
// device outside the zone.
func NeedsCheck(old, updated geofence.Zone) bool {
	return updated.GeometryNarrowed(old)
}

// CloseIfOutside closes the open visit of zone when the device is currently
// outside its geometry. An unknown position skips the check, and so does a
// failing provider; neither fails the edit.
func (r *Reconciler) CloseIfOutside(ctx context.Context, zone geofence.Zone) (Result, error) {
	pos, err := r.position.CurrentPosition(ctx)
	switch {
	case err == nil:
	case location.IsUnavailable(err):
		r.recorder.IncReconcile(metrics.ResultUnavailable)
		slog.Info("Position unavailable, open visit left as is",
			logfields.ZoneID(zone.ID), logfields.Error(err))
		return Result{Skipped: SkipLocationUnavailable}, nil
	default:
		r.recorder.IncReconcile(metrics.ResultFailed)
		slog.Warn("Position provider failed, open visit left as is",
			logfields.ZoneID(zone.ID), logfields.Error(err))
		return Result{Skipped: SkipLocationFailed}, nil
	}

	distance := geo.DistanceMeters(pos, zone.Center)
	res := Result{DistanceMeters: &distance}
	if distance <= zone.RadiusMeters {
		r.recorder.IncReconcile(metrics.ResultInside)
		res.Skipped = SkipInside
		return res, nil
	}

	closed, err := r.closer.CloseOpenVisit(ctx, zone.ID)
	if err != nil {
		r.recorder.IncReconcile(metrics.ResultFailed)
		return res, err
	}
	if closed == nil {
		r.recorder.IncReconcile(metrics.ResultSkipped)
		res.Skipped = SkipNoOpenVisit
		return res, nil
	}

	r.recorder.IncReconcile(metrics.ResultClosed)
	slog.Info("Closed visit after zone edit left the device outside",
		logfields.ZoneID(zone.ID),
		logfields.VisitID(closed.ID),
		logfields.Distance(distance),
		logfields.Radius(zone.RadiusMeters))
	res.Closed = closed
	return res, nil
}

// ApplyEdit replaces the zone with updated.ID by updated. The open visit is
// checked against the new geometry before the write, then the region is
// registered again.
func (r *Reconciler) ApplyEdit(ctx context.Context, updated geofence.Zone) (EditResult, error) {
	old, err := r.zones.GetZone(ctx, updated.ID)
	if err != nil {
		return EditResult{}, err
	}

	updated = updated.Normalize()
	if err := updated.Validate(); err != nil {
		return EditResult{}, err
	}
	if updated.CreatedAt.IsZero() {
		updated.CreatedAt = old.CreatedAt
	}

	var result EditResult
	if NeedsCheck(old, updated) {
		result.Checked = true
		result.Reconcile, err = r.CloseIfOutside(ctx, updated)
		if err != nil {
			return result, err
		}
	}

	stored, err := r.zones.UpsertZone(ctx, updated)
	if err != nil {
		return result, err
	}
	result.Zone = stored

	r.registrar.UnregisterZone(ctx, stored.ID)
	result.Registration, result.RegistrationErr = r.registrar.RegisterZone(ctx, stored)
	return result, nil
}

// Delete stops monitoring the zone and removes it. Its visits stay in the
// ledger with the zone reference cleared.
func (r *Reconciler) Delete(ctx context.Context, zoneID int64) error {
	r.registrar.UnregisterZone(ctx, zoneID)
	if err := r.zones.DeleteZone(ctx, zoneID); err != nil {
		return err
	}
	slog.Info("Zone deleted", logfields.ZoneID(zoneID))
	return nil
}
