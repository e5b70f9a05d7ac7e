package database

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrateUp brings the schema to the latest embedded version. A dirty schema
// left behind by a failed migration is reported as an error.
func migrateUp(db *DB) (uint, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	target, err := sqlite.WithInstance(db.conn, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}

	// Closing m would close db.conn, so it is left open.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", target)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrator: %w", err)
	}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
	case err != nil:
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	default:
		slog.Info("Applied database migrations", "path", db.path)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}
