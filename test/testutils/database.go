// Package testutils provides common testing utilities and infrastructure setup
package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/alchemorsel/pantry/internal/infrastructure/persistence/migrations"
)

// TestDatabase provides a test database instance with cleanup
type TestDatabase struct {
	Container testcontainers.Container
	DB        *sql.DB
	GormDB    *gorm.DB
	DSN       string
	name      string
	t         *testing.T
}

// DatabaseConfig holds test database configuration
type DatabaseConfig struct {
	Image    string
	Database string
	Username string
	Password string
	Port     nat.Port
}

// DefaultDatabaseConfig returns the default test database configuration
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Image:    "postgres:15-alpine",
		Database: "pantry_test",
		Username: "test_user",
		Password: "test_password",
		Port:     "5432/tcp",
	}
}

// SetupTestDatabase creates a new test database using testcontainers
func SetupTestDatabase(t *testing.T) *TestDatabase {
	return SetupTestDatabaseWithConfig(t, DefaultDatabaseConfig())
}

// SetupTestDatabaseWithConfig creates a test database with custom configuration
func SetupTestDatabaseWithConfig(t *testing.T, cfg DatabaseConfig) *TestDatabase {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()
	dsnFor := func(host string, port nat.Port) string {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.Username, cfg.Password, host, port.Port(), cfg.Database)
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        cfg.Image,
			ExposedPorts: []string{string(cfg.Port)},
			Env: map[string]string{
				"POSTGRES_DB":       cfg.Database,
				"POSTGRES_USER":     cfg.Username,
				"POSTGRES_PASSWORD": cfg.Password,
			},
			WaitingFor: wait.ForSQL(cfg.Port, "pgx", dsnFor).
				WithStartupTimeout(60 * time.Second),
			Tmpfs: map[string]string{
				"/var/lib/postgresql/data": "rw",
			},
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start postgres container")

	testDB := &TestDatabase{Container: container, name: cfg.Database, t: t}
	t.Cleanup(testDB.Cleanup)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, cfg.Port)
	require.NoError(t, err)
	testDB.DSN = dsnFor(host, port)

	testDB.GormDB, err = gorm.Open(postgres.Open(testDB.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Suppress logs in tests
	})
	require.NoError(t, err, "Failed to create GORM connection")

	testDB.DB, err = testDB.GormDB.DB()
	require.NoError(t, err)
	require.NoError(t, testDB.DB.PingContext(ctx), "Failed to ping test database")

	return testDB
}

// RunMigrations applies the embedded schema migrations
func (td *TestDatabase) RunMigrations() error {
	m, err := migrations.New(td.DB, td.name, zap.NewNop())
	if err != nil {
		return err
	}
	return multierr.Append(m.Up(), m.Close())
}

// TruncateAllTables removes all data from tables while preserving structure
func (td *TestDatabase) TruncateAllTables() error {
	_, err := td.DB.Exec("TRUNCATE TABLE pantry_entries, ingredients RESTART IDENTITY CASCADE")
	return err
}

// Cleanup closes all connections and stops the container
func (td *TestDatabase) Cleanup() {
	if td.DB != nil {
		_ = td.DB.Close()
	}

	if td.Container != nil {
		if err := td.Container.Terminate(context.Background()); err != nil {
			td.t.Logf("Failed to terminate postgres container: %v", err)
		}
	}
}
