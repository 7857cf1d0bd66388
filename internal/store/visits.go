package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"git.home.luguber.info/inful/careradius/internal/geofence"
)

const visitColumns = `id, zone_id, zone_name, entry_time, exit_time, duration_ms`

// OpenVisitForZone implements VisitLedger.
func (s *SQLiteStore) OpenVisitForZone(ctx context.Context, zoneID int64) (*geofence.Visit, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+visitColumns+` FROM visits
		 WHERE zone_id = ? AND exit_time IS NULL
		 ORDER BY entry_time DESC, id DESC LIMIT 1`, zoneID)
	v, err := scanVisit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query open visit for zone %d: %w", zoneID, err)
	}
	return &v, nil
}

// InsertVisit implements VisitLedger.
func (s *SQLiteStore) InsertVisit(ctx context.Context, v geofence.Visit) (geofence.Visit, error) {
	v.EntryTime = geofence.TruncateMillis(v.EntryTime)
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO visits (zone_id, zone_name, entry_time, exit_time, duration_ms) VALUES (?, ?, ?, ?, ?)`,
		nullableInt(v.ZoneID), v.ZoneName, v.EntryTime.UnixMilli(), nullableTime(v.ExitTime), nullableInt(v.DurationMillis),
	)
	if err != nil {
		return geofence.Visit{}, fmt.Errorf("insert visit: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return geofence.Visit{}, fmt.Errorf("read visit id: %w", err)
	}
	v.ID = id
	return v, nil
}

// UpdateVisit implements VisitLedger.
func (s *SQLiteStore) UpdateVisit(ctx context.Context, v geofence.Visit) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE visits SET exit_time = ?, duration_ms = ? WHERE id = ?`,
		nullableTime(v.ExitTime), nullableInt(v.DurationMillis), v.ID,
	)
	if err != nil {
		return fmt.Errorf("update visit %d: %w", v.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update visit %d: %w", v.ID, err)
	}
	if n == 0 {
		return ErrVisitNotFound.WithContext("visit_id", v.ID)
	}
	return nil
}

// GetVisit implements VisitLedger.
func (s *SQLiteStore) GetVisit(ctx context.Context, id int64) (geofence.Visit, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+visitColumns+` FROM visits WHERE id = ?`, id)
	v, err := scanVisit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return geofence.Visit{}, ErrVisitNotFound.WithContext("visit_id", id)
	}
	if err != nil {
		return geofence.Visit{}, fmt.Errorf("get visit %d: %w", id, err)
	}
	return v, nil
}

// ListVisitsWithZone implements VisitLedger.
func (s *SQLiteStore) ListVisitsWithZone(ctx context.Context) ([]geofence.VisitWithZone, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT v.id, v.zone_id, v.zone_name, v.entry_time, v.exit_time, v.duration_ms,
			z.id, z.name, z.latitude, z.longitude, z.radius, z.created_at, z.icon, z.entry_message, z.exit_message
		 FROM visits v LEFT JOIN zones z ON z.id = v.zone_id
		 ORDER BY v.entry_time DESC, v.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query visits: %w", err)
	}
	defer rows.Close()

	out := make([]geofence.VisitWithZone, 0)
	for rows.Next() {
		var (
			vz         geofence.VisitWithZone
			zoneID     sql.NullInt64
			entry      int64
			exit, dur  sql.NullInt64
			zID        sql.NullInt64
			zName      sql.NullString
			zLat, zLng sql.NullFloat64
			zRadius    sql.NullFloat64
			zCreated   sql.NullInt64
			zIcon      sql.NullString
			zEntryMsg  sql.NullString
			zExitMsg   sql.NullString
		)
		err := rows.Scan(&vz.ID, &zoneID, &vz.ZoneName, &entry, &exit, &dur,
			&zID, &zName, &zLat, &zLng, &zRadius, &zCreated, &zIcon, &zEntryMsg, &zExitMsg)
		if err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		fillVisit(&vz.Visit, zoneID, entry, exit, dur)
		if zID.Valid {
			vz.Zone = &geofence.Zone{
				ID:           zID.Int64,
				Name:         zName.String,
				RadiusMeters: zRadius.Float64,
				CreatedAt:    time.UnixMilli(zCreated.Int64),
				Icon:         zIcon.String,
				EntryMessage: zEntryMsg.String,
				ExitMessage:  zExitMsg.String,
			}
			vz.Zone.Center.Latitude = zLat.Float64
			vz.Zone.Center.Longitude = zLng.Float64
		}
		out = append(out, vz)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate visits: %w", err)
	}
	return out, nil
}

// DeleteVisit implements VisitLedger.
func (s *SQLiteStore) DeleteVisit(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM visits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete visit %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete visit %d: %w", id, err)
	}
	if n == 0 {
		return ErrVisitNotFound.WithContext("visit_id", id)
	}
	return nil
}

// CountOpenVisits implements VisitLedger.
func (s *SQLiteStore) CountOpenVisits(ctx context.Context) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM visits WHERE exit_time IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count open visits: %w", err)
	}
	return n, nil
}

// ClearVisits implements VisitLedger.
func (s *SQLiteStore) ClearVisits(ctx context.Context) (int64, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM visits`)
	if err != nil {
		return 0, fmt.Errorf("clear visits: %w", err)
	}
	return res.RowsAffected()
}

func scanVisit(r rowScanner) (geofence.Visit, error) {
	var (
		v         geofence.Visit
		zoneID    sql.NullInt64
		entry     int64
		exit, dur sql.NullInt64
	)
	if err := r.Scan(&v.ID, &zoneID, &v.ZoneName, &entry, &exit, &dur); err != nil {
		return geofence.Visit{}, err
	}
	fillVisit(&v, zoneID, entry, exit, dur)
	return v, nil
}

func fillVisit(v *geofence.Visit, zoneID sql.NullInt64, entry int64, exit, dur sql.NullInt64) {
	if zoneID.Valid {
		id := zoneID.Int64
		v.ZoneID = &id
	}
	v.EntryTime = time.UnixMilli(entry)
	if exit.Valid {
		t := time.UnixMilli(exit.Int64)
		v.ExitTime = &t
	}
	if dur.Valid {
		d := dur.Int64
		v.DurationMillis = &d
	}
}
