// Package migrations provides database migration functionality
// using golang-migrate for schema versioning
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// Migrator handles database migrations
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// New creates a new migrator instance
func New(db *sql.DB, databaseName string, logger *zap.Logger) (*Migrator, error) {
	// Create source from embedded files
	source, err := iofs.New(sqlFiles, "sql")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	// A dedicated connection keeps Close from closing the caller's pool
	conn, err := db.Conn(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to acquire migration connection: %w", err)
	}

	driver, err := postgres.WithConnection(context.Background(), conn, &postgres.Config{
		MigrationsTable: "schema_migrations",
		DatabaseName:    databaseName,
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return &Migrator{
		migrate: m,
		logger:  logger.Named("migrations"),
	}, nil
}

// Up runs all pending migrations
func (m *Migrator) Up() error {
	start := time.Now()
	m.logger.Info("Running database migrations")

	// Get current version
	currentVersion, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	// Run migrations
	if err := m.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("No migrations to run",
				zap.Uint("current_version", currentVersion),
			)
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Get new version
	newVersion, _, _ := m.Version()

	m.logger.Info("Migrations completed successfully",
		zap.Uint("from_version", currentVersion),
		zap.Uint("to_version", newVersion),
		zap.Duration("duration", time.Since(start)),
	)

	return nil
}

// Down rolls back one migration
func (m *Migrator) Down() error {
	m.logger.Info("Rolling back one migration")

	if err := m.migrate.Steps(-1); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	m.logger.Info("Migration rolled back successfully")
	return nil
}

// Version returns the current migration version
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Close releases the migration source and connection. The pool passed to
// New stays open.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("failed to close source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close migration connection: %w", dbErr)
	}
	return nil
}
