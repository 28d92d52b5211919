// Package postgres provides PostgreSQL database connection and management
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"

	"github.com/alchemorsel/pantry/internal/infrastructure/config"
)

// ConnectionManager manages PostgreSQL database connections
type ConnectionManager struct {
	config  *config.Config
	logger  *zap.Logger
	db      *gorm.DB
	writeDB *sql.DB
}

// NewConnectionManager opens the primary connection and registers read replicas
func NewConnectionManager(cfg *config.Config, log *zap.Logger) (*ConnectionManager, error) {
	cm := &ConnectionManager{
		config: cfg,
		logger: log.Named("postgres"),
	}

	// Initialize primary database connection
	if err := cm.initializePrimaryConnection(); err != nil {
		return nil, fmt.Errorf("failed to initialize primary connection: %w", err)
	}

	// Initialize read replicas if configured
	if err := cm.initializeReadReplicas(); err != nil {
		cm.logger.Warn("Failed to initialize read replicas", zap.Error(err))
	}

	cm.logger.Info("Database connection manager initialized",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
		zap.Duration("conn_max_lifetime", cfg.Database.ConnMaxLifetime),
		zap.Int("read_replicas", len(cfg.Database.ReadReplicas)),
	)

	return cm, nil
}

// initializePrimaryConnection sets up the primary database connection
func (cm *ConnectionManager) initializePrimaryConnection() error {
	db, err := gorm.Open(postgres.Open(cm.config.GetDSN()), &gorm.Config{
		Logger:                 cm.createGORMLogger(),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL DB for connection pool configuration
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cm.config.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cm.config.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cm.config.Database.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cm.config.Database.ConnMaxIdleTime)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	cm.db = db
	cm.writeDB = sqlDB

	return nil
}

// initializeReadReplicas routes reads to the configured replicas.
// Writes and everything inside a transaction stay on the primary.
func (cm *ConnectionManager) initializeReadReplicas() error {
	dsns := cm.config.GetReplicaDSNs()
	if len(dsns) == 0 {
		return nil
	}

	replicas := make([]gorm.Dialector, len(dsns))
	for i, dsn := range dsns {
		replicas[i] = postgres.Open(dsn)
	}

	resolver := dbresolver.Register(dbresolver.Config{
		Replicas: replicas,
		Policy:   dbresolver.RandomPolicy{},
	}).
		SetMaxOpenConns(cm.config.Database.MaxOpenConns).
		SetMaxIdleConns(cm.config.Database.MaxIdleConns).
		SetConnMaxLifetime(cm.config.Database.ConnMaxLifetime).
		SetConnMaxIdleTime(cm.config.Database.ConnMaxIdleTime)

	if err := cm.db.Use(resolver); err != nil {
		return fmt.Errorf("failed to register read replicas: %w", err)
	}

	cm.logger.Info("Read replicas configured", zap.Int("replica_count", len(dsns)))
	return nil
}

// createGORMLogger routes GORM's logging through zap
func (cm *ConnectionManager) createGORMLogger() logger.Interface {
	return logger.New(
		&GORMLogWriter{logger: cm.logger},
		logger.Config{
			SlowThreshold:             cm.config.Database.SlowQueryThreshold,
			LogLevel:                  GORMLogLevel(cm.config.Database.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// GetDB returns the main database connection
func (cm *ConnectionManager) GetDB() *gorm.DB {
	return cm.db
}

// SQLDB returns the primary connection pool
func (cm *ConnectionManager) SQLDB() *sql.DB {
	return cm.writeDB
}

// Close closes the primary pool
func (cm *ConnectionManager) Close() error {
	if cm.writeDB == nil {
		return nil
	}
	if err := cm.writeDB.Close(); err != nil {
		cm.logger.Error("Failed to close primary database", zap.Error(err))
		return err
	}
	return nil
}

// GORMLogLevel maps a zap-style level name onto GORM's levels.
// GORM's Info logs every statement, so only "debug" enables it.
func GORMLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.Info
	case "info":
		return logger.Warn
	case "warn", "error":
		return logger.Error
	default:
		return logger.Silent
	}
}

// GORMLogWriter implements GORM's Writer interface for query logging
type GORMLogWriter struct {
	logger *zap.Logger
}

// Printf implements the Writer interface
func (w *GORMLogWriter) Printf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)

	// Log based on content
	switch {
	case strings.Contains(msg, "SLOW SQL"):
		w.logger.Warn("GORM slow query", zap.String("message", msg))
	case strings.Contains(strings.ToLower(msg), "error"):
		w.logger.Error("GORM error", zap.String("message", msg))
	default:
		w.logger.Debug("GORM query", zap.String("message", msg))
	}
}
