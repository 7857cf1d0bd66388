package handlers

import (
	"context"
	"log/slog"
	"net/http"

	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
	"git.home.luguber.info/inful/careradius/internal/geo"
	"git.home.luguber.info/inful/careradius/internal/geofence"
	"git.home.luguber.info/inful/careradius/internal/reconcile"
	"git.home.luguber.info/inful/careradius/internal/server/responses"
	"git.home.luguber.info/inful/careradius/internal/zones"
)

// ZoneService is the subset of zones.Service used by the API.
type ZoneService interface {
	Create(ctx context.Context, z geofence.Zone) (zones.Result, error)
	Update(ctx context.Context, z geofence.Zone) (zones.Result, error)
	Move(ctx context.Context, id int64, center geo.Position) (zones.Result, error)
	Delete(ctx context.Context, id int64) error
	Check(ctx context.Context, id int64) (reconcile.Result, error)
	Get(ctx context.Context, id int64) (geofence.Zone, error)
	List(ctx context.Context) ([]geofence.Zone, error)
	ListVisits(ctx context.Context) ([]geofence.VisitWithZone, error)
	DeleteVisit(ctx context.Context, id int64) error
	ClearVisits(ctx context.Context) (int64, error)
}

// ZoneSnapshot serves list reads without touching storage. ok is false until
// the first snapshot is loaded.
type ZoneSnapshot interface {
	Zones() (list []geofence.Zone, ok bool)
}

// ZoneHandlers serves /api/zones and /api/visits.
type ZoneHandlers struct {
	svc          ZoneService
	snapshot     ZoneSnapshot
	errorAdapter *ferrors.HTTPErrorAdapter
}

// NewZoneHandlers creates zone handlers. snapshot may be nil.
func NewZoneHandlers(svc ZoneService, snapshot ZoneSnapshot) *ZoneHandlers {
	return &ZoneHandlers{
		svc:          svc,
		snapshot:     snapshot,
		errorAdapter: ferrors.NewHTTPErrorAdapter(slog.Default()),
	}
}

func (h *ZoneHandlers) HandleListZones(w http.ResponseWriter, r *http.Request) {
	if h.snapshot != nil {
		if list, ok := h.snapshot.Zones(); ok {
			respond(w, r, h.errorAdapter, http.StatusOK, list)
			return
		}
	}
	list, err := h.svc.List(r.Context())
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	respond(w, r, h.errorAdapter, http.StatusOK, list)
}

func (h *ZoneHandlers) HandleCreateZone(w http.ResponseWriter, r *http.Request) {
	var z geofence.Zone
	if err := decodeJSON(w, r, &z); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	res, err := h.svc.Create(r.Context(), z)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	respond(w, r, h.errorAdapter, http.StatusCreated, res)
}

func (h *ZoneHandlers) HandleGetZone(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	z, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	respond(w, r, h.errorAdapter, http.StatusOK, z)
}

// HandleReplaceZone replaces every editable field of the zone. The path id wins
// over an id in the body.
func (h *ZoneHandlers) HandleReplaceZone(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	var z geofence.Zone
	if err := decodeJSON(w, r, &z); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	z.ID = id
	res, err := h.svc.Update(r.Context(), z)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	respond(w, r, h.errorAdapter, http.StatusOK, res)
}

func (h *ZoneHandlers) HandleMoveZone(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	var center geo.Position
	if err := decodeJSON(w, r, &center); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	res, err := h.svc.Move(r.Context(), id, center)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	respond(w, r, h.errorAdapter, http.StatusOK, res)
}

func (h *ZoneHandlers) HandleDeleteZone(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReconcileZone closes the zone's open visit when the device is outside it.
func (h *ZoneHandlers) HandleReconcileZone(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	res, err := h.svc.Check(r.Context(), id)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	respond(w, r, h.errorAdapter, http.StatusOK, res)
}

func (h *ZoneHandlers) HandleListVisits(w http.ResponseWriter, r *http.Request) {
	visits, err := h.svc.ListVisits(r.Context())
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	respond(w, r, h.errorAdapter, http.StatusOK, responses.NewVisitResponses(visits))
}

func (h *ZoneHandlers) HandleDeleteVisit(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	if err := h.svc.DeleteVisit(r.Context(), id); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ZoneHandlers) HandleClearVisits(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ClearVisits(r.Context())
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	respond(w, r, h.errorAdapter, http.StatusOK, responses.ClearedResponse{Deleted: n})
}
