package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"git.home.luguber.info/inful/careradius/internal/events"
	"git.home.luguber.info/inful/careradius/internal/geofence"
)

const zoneColumns = `id, name, latitude, longitude, radius, created_at, icon, entry_message, exit_message`

// UpsertZone implements ZoneStore.
//
// Replacement uses ON CONFLICT DO UPDATE instead of INSERT OR REPLACE: the
// latter deletes the old row first, which would fire ON DELETE SET NULL on the
// zone's visits.
func (s *SQLiteStore) UpsertZone(ctx context.Context, z geofence.Zone) (geofence.Zone, error) {
	z = z.Normalize()
	if err := z.Validate(); err != nil {
		return geofence.Zone{}, err
	}

	createdAt := z.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	if z.ID == 0 {
		res, err := s.q.ExecContext(ctx,
			`INSERT INTO zones (name, latitude, longitude, radius, created_at, icon, entry_message, exit_message)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			z.Name, z.Center.Latitude, z.Center.Longitude, z.RadiusMeters, createdAt.UnixMilli(),
			z.Icon, z.EntryMessage, z.ExitMessage,
		)
		if err != nil {
			return geofence.Zone{}, fmt.Errorf("insert zone: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return geofence.Zone{}, fmt.Errorf("read zone id: %w", err)
		}
		z.ID = id
		z.CreatedAt = geofence.TruncateMillis(createdAt)
		s.changed(id, events.ZoneCreated)
		return z, nil
	}

	var exists int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM zones WHERE id = ?`, z.ID).Scan(&exists)
	if err != nil {
		return geofence.Zone{}, fmt.Errorf("check zone: %w", err)
	}

	// created_at is only kept from the old row when the replacement has none.
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO zones (id, name, latitude, longitude, radius, created_at, icon, entry_message, exit_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			radius = excluded.radius,
			created_at = CASE WHEN ? THEN zones.created_at ELSE excluded.created_at END,
			icon = excluded.icon,
			entry_message = excluded.entry_message,
			exit_message = excluded.exit_message`,
		z.ID, z.Name, z.Center.Latitude, z.Center.Longitude, z.RadiusMeters, createdAt.UnixMilli(),
		z.Icon, z.EntryMessage, z.ExitMessage, z.CreatedAt.IsZero(),
	)
	if err != nil {
		return geofence.Zone{}, fmt.Errorf("upsert zone: %w", err)
	}

	stored, err := s.GetZone(ctx, z.ID)
	if err != nil {
		return geofence.Zone{}, err
	}
	if exists == 0 {
		s.changed(z.ID, events.ZoneCreated)
	} else {
		s.changed(z.ID, events.ZoneUpdated)
	}
	return stored, nil
}

// GetZone implements ZoneStore.
func (s *SQLiteStore) GetZone(ctx context.Context, id int64) (geofence.Zone, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+zoneColumns+` FROM zones WHERE id = ?`, id)
	z, err := scanZone(row)
	if errors.Is(err, sql.ErrNoRows) {
		return geofence.Zone{}, ErrZoneNotFound.WithContext("zone_id", id)
	}
	if err != nil {
		return geofence.Zone{}, fmt.Errorf("get zone %d: %w", id, err)
	}
	return z, nil
}

// ListZones implements ZoneStore.
func (s *SQLiteStore) ListZones(ctx context.Context) ([]geofence.Zone, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+zoneColumns+` FROM zones ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query zones: %w", err)
	}
	defer rows.Close()

	zones := make([]geofence.Zone, 0)
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, fmt.Errorf("scan zone: %w", err)
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate zones: %w", err)
	}
	return zones, nil
}

// DeleteZone implements ZoneStore.
func (s *SQLiteStore) DeleteZone(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM zones WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete zone %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete zone %d: %w", id, err)
	}
	if n == 0 {
		return ErrZoneNotFound.WithContext("zone_id", id)
	}
	s.changed(id, events.ZoneDeleted)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanZone(r rowScanner) (geofence.Zone, error) {
	var (
		z         geofence.Zone
		createdAt int64
	)
	err := r.Scan(&z.ID, &z.Name, &z.Center.Latitude, &z.Center.Longitude, &z.RadiusMeters,
		&createdAt, &z.Icon, &z.EntryMessage, &z.ExitMessage)
	if err != nil {
		return geofence.Zone{}, err
	}
	z.CreatedAt = time.UnixMilli(createdAt)
	return z, nil
}
