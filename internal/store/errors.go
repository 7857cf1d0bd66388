package store

import (
	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
)

var (
	// ErrZoneNotFound indicates no zone exists with the requested id.
	ErrZoneNotFound = ferrors.NotFoundError("zone not found").Build()

	// ErrVisitNotFound indicates no visit exists with the requested id.
	ErrVisitNotFound = ferrors.NotFoundError("visit not found").Build()

	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = ferrors.StorageError("could not open database").Fatal().Build()

	// ErrMigrationFailed indicates a schema migration step failed and was rolled back.
	ErrMigrationFailed = ferrors.StorageError("schema migration failed").Fatal().Build()

	// ErrSchemaTooNew indicates the database was written by a newer release.
	ErrSchemaTooNew = ferrors.StorageError("database schema is newer than this binary").Fatal().Build()
)
