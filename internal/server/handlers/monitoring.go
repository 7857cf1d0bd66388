package handlers

import (
	"context"
	"log/slog"
	"net/http"

	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
	"git.home.luguber.info/inful/careradius/internal/server/responses"
)

// DaemonInterface is what the monitoring endpoints need from the daemon.
type DaemonInterface interface {
	Health(ctx context.Context) responses.HealthResponse
	// Reregister runs a re-registration pass and waits for it.
	Reregister(ctx context.Context, reason string) responses.RecoveryResponse
	SetBackgroundLocation(granted bool)
	SetNotificationsEnabled(enabled bool)
}

// MonitoringHandlers serves health, recovery and runtime switches.
type MonitoringHandlers struct {
	daemon       DaemonInterface
	errorAdapter *ferrors.HTTPErrorAdapter
}

func NewMonitoringHandlers(daemon DaemonInterface) *MonitoringHandlers {
	return &MonitoringHandlers{
		daemon:       daemon,
		errorAdapter: ferrors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleHealthCheck answers 503 only when the daemon is unhealthy.
func (h *MonitoringHandlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	health := h.daemon.Health(r.Context())
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	status := http.StatusOK
	if health.Status == responses.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	respond(w, r, h.errorAdapter, status, health)
}

func (h *MonitoringHandlers) HandleReregister(w http.ResponseWriter, r *http.Request) {
	report := h.daemon.Reregister(r.Context(), "manual")
	status := http.StatusOK
	if report.Error != "" {
		status = http.StatusServiceUnavailable
	}
	respond(w, r, h.errorAdapter, status, report)
}

// HandleBackgroundLocation toggles the background location grant.
func (h *MonitoringHandlers) HandleBackgroundLocation(w http.ResponseWriter, r *http.Request) {
	enabled, ok := h.toggle(w, r)
	if !ok {
		return
	}
	h.daemon.SetBackgroundLocation(enabled)
	w.WriteHeader(http.StatusNoContent)
}

func (h *MonitoringHandlers) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	enabled, ok := h.toggle(w, r)
	if !ok {
		return
	}
	h.daemon.SetNotificationsEnabled(enabled)
	w.WriteHeader(http.StatusNoContent)
}

func (h *MonitoringHandlers) toggle(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var req responses.ToggleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return false, false
	}
	if req.Enabled == nil {
		h.errorAdapter.WriteErrorResponse(w, r, ferrors.ValidationError("enabled is required").Build())
		return false, false
	}
	return *req.Enabled, true
}
