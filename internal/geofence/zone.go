// Package geofence defines the zone and visit records shared by the store, the
// transition handler and the edit reconciler.
package geofence

import (
	"math"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
	"git.home.luguber.info/inful/careradius/internal/geo"
)

const (
	MinRadiusMeters = 10.0
	MaxRadiusMeters = 50.0

	// DefaultIcon is stored for zones created without an icon.
	DefaultIcon = "📍"
	// CenterToleranceMeters absorbs coordinate rounding when a zone is saved
	// again with an unchanged center.
	CenterToleranceMeters = 0.05

	// UnknownZoneName is the snapshot name used when an ENTER cannot read its
	// zone's current name.
	UnknownZoneName = "Unknown"
)

// Zone is a circular region the device is monitored against.
type Zone struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Center       geo.Position `json:"center"`
	RadiusMeters float64      `json:"radius_m"`
	CreatedAt    time.Time    `json:"created_at"`
	Icon         string       `json:"icon"`
	EntryMessage string       `json:"entry_message,omitempty"`
	ExitMessage  string       `json:"exit_message,omitempty"`
}

// NormalizeName trims surrounding whitespace and converts to NFC so that visually
// identical names compare equal.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Normalize returns a copy with name normalization and the icon default applied.
func (z Zone) Normalize() Zone {
	z.Name = NormalizeName(z.Name)
	z.Icon = strings.TrimSpace(z.Icon)
	if z.Icon == "" {
		z.Icon = DefaultIcon
	}
	return z
}

// Validate checks the name, the center and the radius bounds.
func (z Zone) Validate() error {
	if NormalizeName(z.Name) == "" {
		return ferrors.ValidationError("zone name must not be empty").Build()
	}
	if err := z.Center.Validate(); err != nil {
		return err
	}
	if math.IsNaN(z.RadiusMeters) || z.RadiusMeters < MinRadiusMeters || z.RadiusMeters > MaxRadiusMeters {
		return ferrors.ValidationError("radius must be between 10 and 50 meters").
			WithContext("radius_m", z.RadiusMeters).
			Build()
	}
	return nil
}

// Contains reports whether p is inside the zone.
func (z Zone) Contains(p geo.Position) bool {
	return geo.Within(p, z.Center, z.RadiusMeters)
}

// GeometryNarrowed reports whether moving from old to z can leave a device that
// was inside old outside of z: the radius shrank or the center moved by more
// than CenterToleranceMeters. Widening in place never can.
func (z Zone) GeometryNarrowed(old Zone) bool {
	return z.RadiusMeters < old.RadiusMeters || geo.Moved(old.Center, z.Center, CenterToleranceMeters)
}
