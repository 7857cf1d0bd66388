// Package zones is the application service behind the CLI and the admin API.
// It sequences storage, the lifecycle coordinator and the edit reconciler for
// every user-facing zone and visit operation.
package zones

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/careradius/internal/geo"
	"git.home.luguber.info/inful/careradius/internal/geofence"
	"git.home.luguber.info/inful/careradius/internal/lifecycle"
	"git.home.luguber.info/inful/careradius/internal/logfields"
	"git.home.luguber.info/inful/careradius/internal/reconcile"
	"git.home.luguber.info/inful/careradius/internal/store"
)

// Registrar registers a newly created zone with the region monitor.
type Registrar interface {
	RegisterZone(ctx context.Context, z geofence.Zone) (lifecycle.Registration, error)
}

// Editor applies zone edits and deletions.
type Editor interface {
	ApplyEdit(ctx context.Context, updated geofence.Zone) (reconcile.EditResult, error)
	CloseIfOutside(ctx context.Context, zone geofence.Zone) (reconcile.Result, error)
	Delete(ctx context.Context, zoneID int64) error
}

// Result is returned by zone mutations.
type Result struct {
	Zone         geofence.Zone          `json:"zone"`
	Registration lifecycle.Registration `json:"registration"`
	Reconcile    *reconcile.Result      `json:"reconcile,omitempty"`
	// Warning explains why the zone is saved but not monitored.
	Warning string `json:"warning,omitempty"`
}

// Service implements zone and visit use cases.
type Service struct {
	store     store.Store
	registrar Registrar
	editor    Editor
}

// NewService wires the service.
func NewService(st store.Store, registrar Registrar, editor Editor) *Service {
	return &Service{store: st, registrar: registrar, editor: editor}
}

// Create persists a new zone and starts monitoring it. The zone stays saved
// when the monitor refuses it.
func (s *Service) Create(ctx context.Context, z geofence.Zone) (Result, error) {
	z.ID = 0
	created, err := s.store.UpsertZone(ctx, z)
	if err != nil {
		return Result{}, err
	}
	slog.Info("Zone created",
		logfields.ZoneID(created.ID),
		logfields.ZoneName(created.Name),
		logfields.Radius(created.RadiusMeters))

	res := Result{Zone: created}
	res.Registration, err = s.registrar.RegisterZone(ctx, created)
	res.Warning = warning(res.Registration, err)
	return res, nil
}

// Update replaces the zone with z.ID by z.
func (s *Service) Update(ctx context.Context, z geofence.Zone) (Result, error) {
	edit, err := s.editor.ApplyEdit(ctx, z)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		Zone:         edit.Zone,
		Registration: edit.Registration,
		Warning:      warning(edit.Registration, edit.RegistrationErr),
	}
	if edit.Checked {
		res.Reconcile = &edit.Reconcile
	}
	return res, nil
}

// Move changes only the zone's center.
func (s *Service) Move(ctx context.Context, id int64, center geo.Position) (Result, error) {
	z, err := s.store.GetZone(ctx, id)
	if err != nil {
		return Result{}, err
	}
	z.Center = center
	return s.Update(ctx, z)
}

// Delete removes the zone and keeps its visit history.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.editor.Delete(ctx, id)
}

// Check closes the zone's open visit when the device is outside it.
func (s *Service) Check(ctx context.Context, id int64) (reconcile.Result, error) {
	z, err := s.store.GetZone(ctx, id)
	if err != nil {
		return reconcile.Result{}, err
	}
	return s.editor.CloseIfOutside(ctx, z)
}

func (s *Service) Get(ctx context.Context, id int64) (geofence.Zone, error) {
	return s.store.GetZone(ctx, id)
}

// List returns all zones, newest first.
func (s *Service) List(ctx context.Context) ([]geofence.Zone, error) {
	return s.store.ListZones(ctx)
}

// ListVisits returns the visit history, newest entry first.
func (s *Service) ListVisits(ctx context.Context) ([]geofence.VisitWithZone, error) {
	return s.store.ListVisitsWithZone(ctx)
}

func (s *Service) DeleteVisit(ctx context.Context, id int64) error {
	return s.store.DeleteVisit(ctx, id)
}

// ClearVisits removes the whole history.
func (s *Service) ClearVisits(ctx context.Context) (int64, error) {
	n, err := s.store.ClearVisits(ctx)
	if err == nil {
		slog.Info("Visit history cleared", logfields.Count(int(n)))
	}
	return n, err
}

func warning(reg lifecycle.Registration, err error) string {
	switch {
	case reg.Monitored:
		return ""
	case reg.Reason == lifecycle.ReasonPermissionDenied:
		return "zone saved, but background location permission is required to monitor it"
	case err != nil:
		return err.Error()
	default:
		return "zone saved, but the region monitor rejected it; it will be retried on the next re-registration"
	}
}
