// Package geo holds WGS84 positions and the distance math used to decide whether
// the device is inside a circular zone.
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"

	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
)

// Position is a latitude/longitude pair in decimal degrees.
type Position struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Validate checks the coordinate ranges.
func (p Position) Validate() error {
	if math.IsNaN(p.Latitude) || p.Latitude < -90 || p.Latitude > 90 {
		return ferrors.ValidationError("latitude must be within [-90, 90]").
			WithContext("latitude", p.Latitude).
			Build()
	}
	if math.IsNaN(p.Longitude) || p.Longitude < -180 || p.Longitude > 180 {
		return ferrors.ValidationError("longitude must be within [-180, 180]").
			WithContext("longitude", p.Longitude).
			Build()
	}
	return nil
}

func (p Position) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Latitude, p.Longitude)
}

// Point converts to an orb point (x=lng, y=lat).
func (p Position) Point() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// FromPoint converts an orb point back to a Position.
func FromPoint(pt orb.Point) Position {
	return Position{Latitude: pt.Lat(), Longitude: pt.Lon()}
}

// DistanceMeters returns the great-circle (Haversine) distance between a and b.
func DistanceMeters(a, b Position) float64 {
	return orbgeo.DistanceHaversine(a.Point(), b.Point())
}

// Within reports whether p lies inside the circle around center. A position
// exactly on the boundary counts as inside.
func Within(p, center Position, radiusMeters float64) bool {
	return DistanceMeters(p, center) <= radiusMeters
}

// Offset returns the position reached by travelling meters from p along bearing
// (degrees clockwise from north).
func Offset(p Position, bearing, meters float64) Position {
	return FromPoint(orbgeo.PointAtBearingAndDistance(p.Point(), bearing, meters))
}

// Moved reports whether two centers differ by more than tolerance meters.
func Moved(a, b Position, toleranceMeters float64) bool {
	return DistanceMeters(a, b) > toleranceMeters
}
