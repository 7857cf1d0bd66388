package handlers

import (
	"context"
	"log/slog"
	"net/http"

	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
	"git.home.luguber.info/inful/careradius/internal/geo"
	"git.home.luguber.info/inful/careradius/internal/geofence"
	"git.home.luguber.info/inful/careradius/internal/server/responses"
	"git.home.luguber.info/inful/careradius/internal/transition"
)

// Deliverer applies a transition to the visit ledger.
type Deliverer interface {
	Deliver(ctx context.Context, zoneID int64, kind geofence.TransitionKind) (transition.Outcome, error)
}

// PositionFeed accepts device positions.
type PositionFeed interface {
	UpdatePosition(ctx context.Context, p geo.Position) error
}

// TransitionHandlers serves the webhook transition source and the position feed.
type TransitionHandlers struct {
	deliverer    Deliverer
	positions    PositionFeed
	errorAdapter *ferrors.HTTPErrorAdapter
}

func NewTransitionHandlers(d Deliverer, positions PositionFeed) *TransitionHandlers {
	return &TransitionHandlers{
		deliverer:    d,
		positions:    positions,
		errorAdapter: ferrors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleTransition accepts {"zone_id":1,"kind":"ENTER"}. Duplicates and stray
// exits succeed with the matching outcome.
func (h *TransitionHandlers) HandleTransition(w http.ResponseWriter, r *http.Request) {
	var req responses.TransitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	if req.ZoneID <= 0 {
		h.errorAdapter.WriteErrorResponse(w, r, ferrors.ValidationError("zone_id must be positive").
			WithContext("zone_id", req.ZoneID).
			Build())
		return
	}
	kind, err := geofence.ParseTransitionKind(req.Kind)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	outcome, err := h.deliverer.Deliver(r.Context(), req.ZoneID, kind)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	respond(w, r, h.errorAdapter, http.StatusOK, responses.TransitionResponse{
		ZoneID:  req.ZoneID,
		Kind:    kind.String(),
		Outcome: string(outcome),
	})
}

func (h *TransitionHandlers) HandlePosition(w http.ResponseWriter, r *http.Request) {
	var p geo.Position
	if err := decodeJSON(w, r, &p); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	if err := h.positions.UpdatePosition(r.Context(), p); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
