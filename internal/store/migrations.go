package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
)

// migration moves the schema from version-1 to version. Each step runs in its
// own transaction together with the user_version bump.
type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sql.Tx) error
}

var migrations = []migration{
	{version: 1, name: "base tables", apply: migrateBaseTables},
	{version: 2, name: "zone icon", apply: migrateZoneIcon},
	{version: 3, name: "zone entry and exit messages", apply: migrateZoneMessages},
	{version: 4, name: "visit zone name snapshot and nullable zone id", apply: migrateVisitSnapshot},
}

func latestVersion() int {
	return migrations[len(migrations)-1].version
}

func schemaVersion(ctx context.Context, q querier) (int, error) {
	var v int
	if err := q.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// migrate applies every pending migration up to target.
func migrate(ctx context.Context, db *sql.DB, target int) error {
	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current > latestVersion() {
		return ErrSchemaTooNew.WithContext("version", current)
	}

	for _, m := range migrations {
		if m.version <= current || m.version > target {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryStorage, ErrMigrationFailed.Message()).
				WithContext("version", m.version).
				WithContext("name", m.name).
				Fatal().
				Build()
		}
		slog.Info("Applied schema migration", slog.Int("version", m.version), slog.String("name", m.name))
	}
	return nil
}

func applyMigration(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := m.apply(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func execAll(ctx context.Context, tx *sql.Tx, statements ...string) error {
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}

func migrateBaseTables(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx,
		`CREATE TABLE IF NOT EXISTS zones (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			radius REAL NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS visits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			zone_id INTEGER NOT NULL REFERENCES zones(id) ON DELETE CASCADE,
			entry_time INTEGER NOT NULL,
			exit_time INTEGER,
			duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_zone_id ON visits(zone_id)`,
	)
}

func migrateZoneIcon(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx,
		`ALTER TABLE zones ADD COLUMN icon TEXT NOT NULL DEFAULT '📍'`,
	)
}

func migrateZoneMessages(ctx context.Context, tx *sql.Tx) error {
	return execAll(ctx, tx,
		`ALTER TABLE zones ADD COLUMN entry_message TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE zones ADD COLUMN exit_message TEXT NOT NULL DEFAULT ''`,
	)
}

// migrateVisitSnapshot gives visits a zone name snapshot and switches the
// foreign key from CASCADE to SET NULL, so that deleting a zone keeps its history.
// SQLite cannot alter a foreign key in place, so the table is rebuilt.
func migrateVisitSnapshot(ctx context.Context, tx *sql.Tx) error {
	if err := execAll(ctx, tx,
		`ALTER TABLE visits ADD COLUMN zone_name TEXT NOT NULL DEFAULT ''`,
	); err != nil {
		return err
	}

	if err := backfillZoneNames(ctx, tx); err != nil {
		return err
	}

	return execAll(ctx, tx,
		`CREATE TABLE visits_new (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			zone_id INTEGER REFERENCES zones(id) ON DELETE SET NULL,
			zone_name TEXT NOT NULL DEFAULT '',
			entry_time INTEGER NOT NULL,
			exit_time INTEGER,
			duration_ms INTEGER
		)`,
		`INSERT INTO visits_new (id, zone_id, zone_name, entry_time, exit_time, duration_ms)
			SELECT id, zone_id, zone_name, entry_time, exit_time, duration_ms FROM visits`,
		`DROP TABLE visits`,
		`ALTER TABLE visits_new RENAME TO visits`,
		`CREATE INDEX IF NOT EXISTS idx_visits_zone_id ON visits(zone_id)`,
		`CREATE INDEX IF NOT EXISTS idx_visits_entry_time ON visits(entry_time)`,
	)
}

// backfillZoneNames reads every (visit, zone name) pair first and writes the
// snapshots afterwards.
func backfillZoneNames(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT v.id, z.name FROM visits v JOIN zones z ON z.id = v.zone_id`)
	if err != nil {
		return fmt.Errorf("query zone names: %w", err)
	}

	type snapshot struct {
		visitID int64
		name    string
	}
	var snapshots []snapshot
	for rows.Next() {
		var s snapshot
		if err := rows.Scan(&s.visitID, &s.name); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan zone name: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("iterate zone names: %w", err)
	}
	_ = rows.Close()

	for _, s := range snapshots {
		if _, err := tx.ExecContext(ctx, `UPDATE visits SET zone_name = ? WHERE id = ?`, s.name, s.visitID); err != nil {
			return fmt.Errorf("backfill visit %d: %w", s.visitID, err)
		}
	}
	return nil
}
