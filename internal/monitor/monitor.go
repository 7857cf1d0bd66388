// Package monitor adapts region monitoring services: it registers circular
// regions and turns the service's boundary callbacks into Transitions.
//
// Adapters make no ordering or delivery promises and never deduplicate; the
// transition handler owns idempotency.
package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/careradius/internal/geo"
	"git.home.luguber.info/inful/careradius/internal/geofence"
)

// Region is the geometry registered for one zone.
type Region struct {
	ZoneID       int64        `json:"zone_id"`
	Center       geo.Position `json:"center"`
	RadiusMeters float64      `json:"radius_m"`
}

// RegionFor builds the Region for z.
func RegionFor(z geofence.Zone) Region {
	return Region{ZoneID: z.ID, Center: z.Center, RadiusMeters: z.RadiusMeters}
}

// Contains reports whether p is inside the region.
func (r Region) Contains(p geo.Position) bool {
	return geo.Within(p, r.Center, r.RadiusMeters)
}

// Transition is a boundary crossing reported by the service.
type Transition struct {
	ID         string                  `json:"id"`
	ZoneID     int64                   `json:"zone_id"`
	Kind       geofence.TransitionKind `json:"kind"`
	ReceivedAt time.Time               `json:"received_at"`
}

// NewTransition stamps a transition with a fresh id and the receive time.
func NewTransition(zoneID int64, kind geofence.TransitionKind) Transition {
	return Transition{
		ID:         uuid.NewString(),
		ZoneID:     zoneID,
		Kind:       kind,
		ReceivedAt: time.Now(),
	}
}

// Sink receives transitions. Each call is an independent unit of work and may
// run concurrently with others.
type Sink interface {
	HandleTransition(ctx context.Context, t Transition) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, t Transition) error

func (f SinkFunc) HandleTransition(ctx context.Context, t Transition) error { return f(ctx, t) }

// Adapter is the region monitoring service.
type Adapter interface {
	// Name identifies the implementation in logs.
	Name() string
	// Register starts monitoring r, replacing any registration for the same zone.
	// It fails with ErrPermissionDenied when background location is not granted
	// and with a platform error when the service rejects the region.
	Register(ctx context.Context, r Region) error
	// Unregister stops monitoring zoneID. Unknown ids are not an error.
	Unregister(ctx context.Context, zoneID int64) error
	// Run delivers transitions to sink until ctx is canceled.
	Run(ctx context.Context, sink Sink) error
	Close() error
}
