// Package transition turns region monitor callbacks into visit records.
//
// The handler is the only place that deduplicates: a second ENTER while a visit
// is open and an EXIT without an open visit are both no-ops. The ledger row is
// the state, so the behavior survives restarts.
package transition

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/careradius/internal/events"
	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
	"git.home.luguber.info/inful/careradius/internal/geofence"
	"git.home.luguber.info/inful/careradius/internal/logfields"
	"git.home.luguber.info/inful/careradius/internal/metrics"
	"git.home.luguber.info/inful/careradius/internal/monitor"
	"git.home.luguber.info/inful/careradius/internal/notify"
	"git.home.luguber.info/inful/careradius/internal/store"
)

// Outcome is what a delivered transition did to the ledger.
type Outcome string

const (
	OutcomeOpened         Outcome = "opened"
	OutcomeClosed         Outcome = "closed"
	OutcomeDuplicateEnter Outcome = "duplicate_enter"
	OutcomeStrayExit      Outcome = "stray_exit"
	// OutcomeUnknownZone is an ENTER for a zone that no longer exists. No visit
	// is written: visits.zone_id references zones(id), so a row naming the
	// deleted id would be rejected, and a row without one could never be closed
	// by the matching EXIT.
	OutcomeUnknownZone Outcome = "unknown_zone"
	outcomeFailed      Outcome = "failed"
)

// Changed reports whether the ledger was written.
func (o Outcome) Changed() bool {
	return o == OutcomeOpened || o == OutcomeClosed
}

// Handler applies transitions to the visit ledger.
type Handler struct {
	store    store.Store
	notifier notify.Notifier
	recorder metrics.Recorder
	bus      *events.Bus
	now      func() time.Time
	locks    *keyedMutex
}

// Option configures a Handler.
type Option func(*Handler)

// WithNotifier sets the notification sink.
func WithNotifier(n notify.Notifier) Option {
	return func(h *Handler) { h.notifier = n }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(h *Handler) { h.recorder = metrics.OrNoop(r) }
}

// WithBus publishes VisitOpened and VisitClosed after each ledger write.
func WithBus(b *events.Bus) Option {
	return func(h *Handler) { h.bus = b }
}

// WithClock overrides the time source for entry and exit timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// New creates a Handler over st.
func New(st store.Store, opts ...Option) *Handler {
	h := &Handler{
		store:    st,
		notifier: notify.Noop{},
		recorder: metrics.NoopRecorder{},
		now:      time.Now,
		locks:    newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleTransition implements monitor.Sink.
func (h *Handler) HandleTransition(ctx context.Context, t monitor.Transition) error {
	outcome, err := h.Deliver(ctx, t.ZoneID, t.Kind)
	if err != nil {
		return err
	}
	slog.Debug("Transition handled",
		logfields.TransitionID(t.ID),
		logfields.ZoneID(t.ZoneID),
		logfields.Transition(t.Kind.String()),
		logfields.Outcome(string(outcome)))
	return nil
}

// Deliver applies one transition for zoneID.
func (h *Handler) Deliver(ctx context.Context, zoneID int64, kind geofence.TransitionKind) (Outcome, error) {
	start := time.Now()
	var (
		outcome Outcome
		err     error
	)
	switch kind {
	case geofence.Enter:
		outcome, err = h.enter(ctx, zoneID)
	case geofence.Exit:
		outcome, err = h.exit(ctx, zoneID)
	default:
		return "", ferrors.ValidationError("unknown transition kind").WithContext("kind", string(kind)).Build()
	}
	if err != nil {
		outcome = outcomeFailed
		slog.Error("Transition failed",
			logfields.ZoneID(zoneID),
			logfields.Transition(kind.String()),
			logfields.Error(err))
	}
	h.recorder.IncTransition(kind.String(), string(outcome))
	h.recorder.ObserveTransitionDuration(time.Since(start))
	return outcome, err
}

func (h *Handler) enter(ctx context.Context, zoneID int64) (Outcome, error) {
	unlock := h.locks.Lock(zoneID)

	var (
		outcome = OutcomeOpened
		opened  geofence.Visit
		zone    geofence.Zone
	)
	err := h.store.InTx(ctx, func(tx store.Store) error {
		open, err := tx.OpenVisitForZone(ctx, zoneID)
		if err != nil {
			return err
		}
		if open != nil {
			outcome = OutcomeDuplicateEnter
			return nil
		}

		zone, err = tx.GetZone(ctx, zoneID)
		switch {
		case errors.Is(err, store.ErrZoneNotFound):
			outcome = OutcomeUnknownZone
			return nil
		case err != nil:
			slog.Warn("Zone lookup failed, recording visit without a name",
				logfields.ZoneID(zoneID), logfields.Error(err))
			zone = geofence.Zone{ID: zoneID, Name: geofence.UnknownZoneName}
		}

		opened, err = tx.InsertVisit(ctx, geofence.OpenVisit(zoneID, zone.Name, h.now()))
		return err
	})
	unlock()
	if err != nil {
		return "", err
	}

	switch outcome {
	case OutcomeOpened:
		slog.Info("Visit opened",
			logfields.VisitID(opened.ID),
			logfields.ZoneID(zoneID),
			logfields.ZoneName(opened.ZoneName))
		h.bus.Offer(events.VisitOpened{
			VisitID:   opened.ID,
			ZoneID:    zoneID,
			ZoneName:  opened.ZoneName,
			EntryTime: opened.EntryTime,
		})
		h.notify(ctx, notify.ForTransition(geofence.Enter, zoneID, opened.ZoneName, zone.EntryMessage, opened.EntryTime))
	case OutcomeUnknownZone:
		slog.Warn("ENTER for unknown zone ignored", logfields.ZoneID(zoneID))
	}
	return outcome, nil
}

func (h *Handler) exit(ctx context.Context, zoneID int64) (Outcome, error) {
	closed, zone, err := h.closeOpen(ctx, zoneID, false)
	if err != nil {
		return "", err
	}
	if closed == nil {
		return OutcomeStrayExit, nil
	}

	name, message := closed.ZoneName, ""
	if zone != nil {
		name, message = zone.Name, zone.ExitMessage
	}
	h.notify(ctx, notify.ForTransition(geofence.Exit, zoneID, name, message, *closed.ExitTime))
	return OutcomeClosed, nil
}

// CloseOpenVisit closes the open visit of zoneID, if any, without notifying.
// It returns nil when there was nothing to close.
func (h *Handler) CloseOpenVisit(ctx context.Context, zoneID int64) (*geofence.Visit, error) {
	closed, _, err := h.closeOpen(ctx, zoneID, true)
	return closed, err
}

// closeOpen performs the EXIT ledger step and returns the closed visit together
// with the zone's current row when it still exists. synthetic marks closes that
// did not come from the monitor.
func (h *Handler) closeOpen(ctx context.Context, zoneID int64, synthetic bool) (*geofence.Visit, *geofence.Zone, error) {
	unlock := h.locks.Lock(zoneID)

	var (
		closed *geofence.Visit
		zone   *geofence.Zone
	)
	err := h.store.InTx(ctx, func(tx store.Store) error {
		open, err := tx.OpenVisitForZone(ctx, zoneID)
		if err != nil || open == nil {
			return err
		}

		v, err := open.Close(h.now())
		if err != nil {
			return err
		}
		if err := tx.UpdateVisit(ctx, v); err != nil {
			return err
		}
		closed = &v

		if z, err := tx.GetZone(ctx, zoneID); err == nil {
			zone = &z
		}
		return nil
	})
	unlock()
	if err != nil || closed == nil {
		return nil, nil, err
	}

	slog.Info("Visit closed",
		logfields.VisitID(closed.ID),
		logfields.ZoneID(zoneID),
		logfields.ZoneName(closed.ZoneName),
		logfields.DurationMS(float64(*closed.DurationMillis)),
		slog.Bool("synthetic", synthetic))
	h.bus.Offer(events.VisitClosed{
		VisitID:        closed.ID,
		ZoneID:         zoneID,
		ZoneName:       closed.ZoneName,
		ExitTime:       *closed.ExitTime,
		DurationMillis: *closed.DurationMillis,
		Synthetic:      synthetic,
	})
	return closed, zone, nil
}

// notify delivers n; failures are logged and counted, the ledger write stands.
func (h *Handler) notify(ctx context.Context, n notify.Notification) {
	if err := h.notifier.Notify(ctx, n); err != nil {
		h.recorder.IncNotification(metrics.ResultFailed)
		slog.Warn("Notification failed",
			logfields.ZoneID(n.ZoneID),
			logfields.Transition(n.Kind.String()),
			logfields.Error(err))
		return
	}
	h.recorder.IncNotification(metrics.ResultSuccess)
}
