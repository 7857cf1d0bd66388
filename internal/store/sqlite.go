package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/careradius/internal/events"
	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
	"git.home.luguber.info/inful/careradius/internal/logfields"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements Store using SQLite.
//
// The pool is limited to a single connection: writers are serialized by SQLite
// itself and ":memory:" databases stay shared between calls. While a transaction
// is open every query has to go through the Store handed to the InTx callback.
type SQLiteStore struct {
	db  *sql.DB
	q   querier
	bus *events.Bus
	now func() time.Time

	// pending collects change events raised inside a transaction; they are
	// offered to the bus after commit.
	pending *[]events.ZoneChanged
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithChangeBus publishes events.ZoneChanged to bus after committed zone writes.
func WithChangeBus(bus *events.Bus) Option {
	return func(s *SQLiteStore) { s.bus = bus }
}

// WithClock overrides the clock used for zone creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// Open opens (creating if needed) the database at dbPath and migrates it to the
// latest schema. Use ":memory:" for an in-memory database.
func Open(ctx context.Context, dbPath string, opts ...Option) (*SQLiteStore, error) {
	db, err := openDB(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	if err := migrate(ctx, db, latestVersion()); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, q: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func openDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryStorage, ErrDatabaseOpenFailed.Message()).
			WithContext("path", dbPath).
			Fatal().
			Build()
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, ferrors.WrapError(err, ferrors.CategoryStorage, ErrDatabaseOpenFailed.Message()).
				WithContext("pragma", pragma).
				Fatal().
				Build()
		}
	}
	return db, nil
}

// SchemaVersion returns the applied schema version.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	return schemaVersion(ctx, s.q)
}

// InTx implements Store.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.pending != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	var pending []events.ZoneChanged
	txStore := &SQLiteStore{db: s.db, q: tx, bus: s.bus, now: s.now, pending: &pending}

	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Warn("Transaction rollback failed", logfields.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	for _, evt := range pending {
		s.emit(evt)
	}
	return nil
}

func (s *SQLiteStore) changed(zoneID int64, op events.ZoneOp) {
	evt := events.ZoneChanged{ZoneID: zoneID, Op: op, ChangedAt: s.now()}
	if s.pending != nil {
		*s.pending = append(*s.pending, evt)
		return
	}
	s.emit(evt)
}

func (s *SQLiteStore) emit(evt events.ZoneChanged) {
	if dropped := s.bus.Offer(evt); dropped > 0 {
		slog.Debug("Zone change not delivered to slow subscribers",
			logfields.ZoneID(evt.ZoneID),
			logfields.Count(dropped))
	}
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullableTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func nullableInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
