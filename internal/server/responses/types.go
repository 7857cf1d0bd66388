// Package responses defines the JSON bodies returned by the careradius admin API.
package responses

import (
	"time"

	"git.home.luguber.info/inful/careradius/internal/geofence"
	"git.home.luguber.info/inful/careradius/internal/lifecycle"
)

// HealthStatus is the overall daemon health.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is one named check.
type HealthCheck struct {
	Name     string        `json:"name"`
	Status   HealthStatus  `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// HealthResponse is served by /healthz.
type HealthResponse struct {
	Status       HealthStatus  `json:"status"`
	DaemonStatus string        `json:"daemon_status"`
	Timestamp    time.Time     `json:"timestamp"`
	Uptime       string        `json:"uptime"`
	Version      string        `json:"version"`
	Monitor      string        `json:"monitor"`
	Checks       []HealthCheck `json:"checks"`
	// LastTransition is nil until the ledger changed while the daemon ran.
	LastTransition *LastTransition `json:"last_transition,omitempty"`
}

// Ledger changes reported in LastTransition.Event.
const (
	VisitEventOpened = "opened"
	VisitEventClosed = "closed"
)

// LastTransition is the most recent visit opened or closed.
type LastTransition struct {
	Event     string    `json:"event"`
	VisitID   int64     `json:"visit_id"`
	ZoneID    int64     `json:"zone_id"`
	ZoneName  string    `json:"zone_name"`
	At        time.Time `json:"at"`
	Synthetic bool      `json:"synthetic,omitempty"`
}

// VisitResponse is a visit with its human-readable duration.
type VisitResponse struct {
	geofence.VisitWithZone
	// Duration is HH:MM:SS, or "--" while the visit is open.
	Duration string `json:"duration"`
}

// NewVisitResponses converts ledger rows for output.
func NewVisitResponses(visits []geofence.VisitWithZone) []VisitResponse {
	out := make([]VisitResponse, 0, len(visits))
	for _, v := range visits {
		out = append(out, VisitResponse{VisitWithZone: v, Duration: v.FormattedDuration()})
	}
	return out
}

// TransitionResponse reports what a delivered transition did.
type TransitionResponse struct {
	ZoneID  int64  `json:"zone_id"`
	Kind    string `json:"kind"`
	Outcome string `json:"outcome"`
}

// RecoveryResponse describes a re-registration pass.
type RecoveryResponse struct {
	Reason    string            `json:"reason"`
	StartedAt time.Time         `json:"started_at"`
	Summary   lifecycle.Summary `json:"summary"`
	Error     string            `json:"error,omitempty"`
}

// ClearedResponse reports how many rows a bulk delete removed.
type ClearedResponse struct {
	Deleted int64 `json:"deleted"`
}

// ToggleRequest flips a runtime switch.
type ToggleRequest struct {
	Enabled *bool `json:"enabled"`
}

// TransitionRequest is the webhook transition source body.
type TransitionRequest struct {
	ZoneID int64  `json:"zone_id"`
	Kind   string `json:"kind"`
}
