// Package store persists zones and the visit ledger in SQLite.
//
// Zones and visits live in one database so that a transition can read the open
// visit and write its replacement in a single transaction. Zone writes emit
// events.ZoneChanged on the configured bus once they are committed.
package store

import (
	"context"

	"git.home.luguber.info/inful/careradius/internal/geofence"
)

// ZoneStore is the zone half of the store.
type ZoneStore interface {
	// UpsertZone inserts a zone when ID is zero, otherwise replaces the row with
	// that id (inserting it if missing). Replacing never touches visits.
	UpsertZone(ctx context.Context, z geofence.Zone) (geofence.Zone, error)
	GetZone(ctx context.Context, id int64) (geofence.Zone, error)
	// ListZones returns all zones, newest first.
	ListZones(ctx context.Context) ([]geofence.Zone, error)
	// DeleteZone removes the zone. Visits keep their rows with a NULL zone id.
	DeleteZone(ctx context.Context, id int64) error
}

// VisitLedger is the visit half of the store.
type VisitLedger interface {
	// OpenVisitForZone returns the open visit of zoneID, or nil when there is none.
	OpenVisitForZone(ctx context.Context, zoneID int64) (*geofence.Visit, error)
	InsertVisit(ctx context.Context, v geofence.Visit) (geofence.Visit, error)
	// UpdateVisit writes exit time and duration. The zone name snapshot is immutable.
	UpdateVisit(ctx context.Context, v geofence.Visit) error
	GetVisit(ctx context.Context, id int64) (geofence.Visit, error)
	// ListVisitsWithZone returns all visits joined with their zone, newest entry first.
	ListVisitsWithZone(ctx context.Context) ([]geofence.VisitWithZone, error)
	DeleteVisit(ctx context.Context, id int64) error
	// CountOpenVisits returns the number of visits without an exit time.
	CountOpenVisits(ctx context.Context) (int, error)
	// ClearVisits removes the whole history and returns the number of rows deleted.
	ClearVisits(ctx context.Context) (int64, error)
}

// Store combines both halves with a transactional unit of work.
type Store interface {
	ZoneStore
	VisitLedger
	// InTx runs fn against a Store bound to one transaction. The transaction
	// commits when fn returns nil and rolls back otherwise. Calling InTx on the
	// Store passed to fn reuses the same transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error
}
