// Package container provides dependency injection using Uber FX
// This implements the Dependency Inversion Principle from SOLID
package container

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	pantryapp "github.com/alchemorsel/pantry/internal/application/pantry"
	"github.com/alchemorsel/pantry/internal/infrastructure/config"
	"github.com/alchemorsel/pantry/internal/infrastructure/conversion"
	"github.com/alchemorsel/pantry/internal/infrastructure/events"
	"github.com/alchemorsel/pantry/internal/infrastructure/http/apiserver"
	"github.com/alchemorsel/pantry/internal/infrastructure/http/middleware"
	"github.com/alchemorsel/pantry/internal/infrastructure/http/server"
	"github.com/alchemorsel/pantry/internal/infrastructure/monitoring"
	gormRepo "github.com/alchemorsel/pantry/internal/infrastructure/persistence/gorm"
	"github.com/alchemorsel/pantry/internal/infrastructure/persistence/memory"
	"github.com/alchemorsel/pantry/internal/infrastructure/persistence/migrations"
	"github.com/alchemorsel/pantry/internal/infrastructure/persistence/postgres"
	redisRepo "github.com/alchemorsel/pantry/internal/infrastructure/persistence/redis"
	"github.com/alchemorsel/pantry/internal/infrastructure/persistence/sqlite"
	"github.com/alchemorsel/pantry/internal/infrastructure/security"
	"github.com/alchemorsel/pantry/internal/ports/inbound"
	"github.com/alchemorsel/pantry/internal/ports/outbound"
	"github.com/alchemorsel/pantry/pkg/healthcheck"
	"github.com/alchemorsel/pantry/pkg/logger"
)

// ConfigPath is the config file location; empty means the default search paths
type ConfigPath string

// Module provides all dependency injection modules
func Module(configPath string) fx.Option {
	return fx.Options(
		fx.Supply(ConfigPath(configPath)),

		// Infrastructure modules
		ConfigModule,
		LoggerModule,
		DatabaseModule,
		CacheModule,
		ObservabilityModule,

		// Adapters
		ConverterModule,
		EventModule,

		// Service modules
		ServiceModule,

		// HTTP modules
		HTTPModule,

		// Lifecycle hooks
		LifecycleModule,
	)
}

// ConfigModule provides configuration
var ConfigModule = fx.Provide(
	func(path ConfigPath) (*config.Config, error) {
		return config.Load(string(path))
	},
)

// LoggerModule provides logging with a runtime adjustable level
var LoggerModule = fx.Provide(
	func(cfg *config.Config) zap.AtomicLevel {
		return zap.NewAtomicLevelAt(logger.ParseLevel(cfg.App.LogLevel))
	},
	func(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, error) {
		return logger.NewWithLevel(logger.Config{
			Level:       cfg.App.LogLevel,
			Format:      cfg.App.LogFormat,
			Development: cfg.App.Debug,
		}, level)
	},
)

// Database bundles the ORM handle with the pool it runs on
type Database struct {
	fx.Out

	Gorm *gorm.DB
	SQL  *sql.DB
}

// DatabaseModule provides database connections
var DatabaseModule = fx.Provide(NewDatabase)

// NewDatabase opens the configured store, applies the schema and seeds the catalog
func NewDatabase(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (Database, error) {
	var (
		db    *gorm.DB
		sqlDB *sql.DB
		err   error
	)

	switch cfg.Database.Driver {
	case "postgres":
		cm, err := postgres.NewConnectionManager(cfg, log)
		if err != nil {
			return Database{}, err
		}
		db, sqlDB = cm.GetDB(), cm.SQLDB()

		if cfg.Database.AutoMigrate {
			if err := migrateUp(sqlDB, cfg.Database.Database, log); err != nil {
				_ = cm.Close()
				return Database{}, err
			}
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return cm.Close() }})

	default:
		db, err = sqlite.SetupDatabase(cfg.Database.Path, postgres.GORMLogLevel(cfg.Database.LogLevel))
		if err != nil {
			return Database{}, fmt.Errorf("failed to setup SQLite database: %w", err)
		}
		if sqlDB, err = db.DB(); err != nil {
			return Database{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return sqlDB.Close() }})

		log.Info("Connected to SQLite database", zap.String("path", cfg.Database.Path))
	}

	if cfg.Database.Seed {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := sqlite.SeedDatabase(ctx, db); err != nil {
			log.Warn("Failed to seed ingredient catalog", zap.Error(err))
		}
	}

	return Database{Gorm: db, SQL: sqlDB}, nil
}

func migrateUp(db *sql.DB, name string, log *zap.Logger) error {
	m, err := migrations.New(db, name, log)
	if err != nil {
		return err
	}
	return multierr.Append(m.Up(), m.Close())
}

// CacheModule provides the conversion cache: Redis when enabled, process memory otherwise
var CacheModule = fx.Provide(
	func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, health *healthcheck.HealthCheck) (outbound.CacheRepository, error) {
		if !cfg.Redis.Enabled {
			log.Info("Using in-memory conversion cache")
			cache := memory.NewCacheRepository()

			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go cache.Run(ctx, time.Minute)
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
			return cache, nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := redisRepo.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return client.Close() }})

		breaker := newBreaker("redis", healthcheck.DefaultCircuitBreakerConfig(), log)
		health.Register("redis", healthcheck.NewRedisChecker(client))
		health.Register("redis_circuit", healthcheck.NewCircuitChecker(breaker))

		return redisRepo.NewCacheRepository(client, breaker, log), nil
	},
)

// ObservabilityModule provides health checks, metrics and tracing
var ObservabilityModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger, db *sql.DB) *healthcheck.HealthCheck {
		health := healthcheck.New(cfg.App.Version, log.Named("health"))
		health.Register("database", healthcheck.NewDatabaseChecker(db))
		return health
	},
	func(log *zap.Logger, db *sql.DB) *monitoring.MetricsCollector {
		metrics := monitoring.NewMetricsCollector("pantry", log)
		metrics.RegisterDB(db, "pantry")
		return metrics
	},
	func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*monitoring.TracingProvider, error) {
		tp, err := monitoring.NewTracingProvider(context.Background(), monitoring.TracingConfig{
			ServiceName:    cfg.App.Name,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			OTLPEndpoint:   cfg.Monitoring.OTLPEndpoint,
			Insecure:       cfg.Monitoring.OTLPInsecure,
			SamplingRate:   cfg.Monitoring.SamplingRate,
			Enabled:        cfg.Monitoring.EnableTracing,
		}, log)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: tp.Shutdown})
		return tp, nil
	},
)

// ConverterModule provides the cached, rate limited unit converter
var ConverterModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger, cache outbound.CacheRepository, health *healthcheck.HealthCheck) outbound.UnitConverter {
		breaker := newBreaker("converter", healthcheck.CircuitBreakerConfig{
			FailureThreshold: cfg.Converter.CircuitMaxFailures,
			Timeout:          cfg.Converter.CircuitResetTimeout,
		}, log)
		health.Register("converter", healthcheck.NewCircuitChecker(breaker))

		client := conversion.NewClient(cfg.Converter, breaker, log)
		return conversion.NewCachingConverter(client, cache, cfg.Converter.CacheTTL, log)
	},
)

func newBreaker(name string, cfg healthcheck.CircuitBreakerConfig, log *zap.Logger) *healthcheck.CircuitBreaker {
	cfg.OnStateChange = func(name string, from, to healthcheck.CircuitBreakerState) {
		log.Warn("Circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return healthcheck.NewCircuitBreaker(name, cfg)
}

// EventModule provides the event hub and the publisher the engine writes to
var EventModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger) *events.Hub {
		return events.NewHub(cfg.Events.HubBuffer, log)
	},
	func(cfg *config.Config, log *zap.Logger, hub *events.Hub) (outbound.EventPublisher, error) {
		if !cfg.Events.SQSEnabled {
			return hub, nil
		}

		sqsPublisher, err := events.NewSQSPublisherFromConfig(cfg.AWS, cfg.Events, log)
		if err != nil {
			return nil, err
		}
		log.Info("Publishing pantry events to SQS", zap.String("queue_url", cfg.Events.SQSQueueURL))
		return events.FanOut{hub, sqsPublisher}, nil
	},
)

// ServiceModule provides application services
var ServiceModule = fx.Provide(
	// Pantry repository
	func(db *gorm.DB) outbound.PantryRepository {
		return gormRepo.NewPantryRepository(db)
	},

	// Reconciliation engine
	func(
		cfg *config.Config,
		repo outbound.PantryRepository,
		converter outbound.UnitConverter,
		publisher outbound.EventPublisher,
		metrics *monitoring.MetricsCollector,
		log *zap.Logger,
	) *pantryapp.Engine {
		return pantryapp.NewEngine(repo, converter, publisher, metrics, log, pantryapp.EngineConfig{
			Concurrency:       cfg.Reconciliation.Concurrency,
			ConversionTimeout: cfg.Reconciliation.ConversionTimeout,
			RetryMaxElapsed:   cfg.Reconciliation.StoreRetryMaxElapsed,
		})
	},

	// Pantry service
	func(repo outbound.PantryRepository, engine *pantryapp.Engine, log *zap.Logger) inbound.PantryService {
		return pantryapp.NewPantryService(repo, engine, log)
	},

	// Token verification
	func(cfg *config.Config, log *zap.Logger) *security.AuthService {
		return security.NewAuthService(cfg.Auth, log)
	},
)

// HTTPModule provides the API and admin servers
var HTTPModule = fx.Provide(
	func(
		cfg *config.Config,
		log *zap.Logger,
		svc inbound.PantryService,
		hub *events.Hub,
		auth *security.AuthService,
		metrics *monitoring.MetricsCollector,
		health *healthcheck.HealthCheck,
	) *apiserver.Server {
		return apiserver.NewServer(cfg, log, svc, hub, middleware.Authenticator(auth), metrics, health)
	},
	func(cfg *config.Config, log *zap.Logger, health *healthcheck.HealthCheck, metrics *monitoring.MetricsCollector) *server.AdminServer {
		if !cfg.Monitoring.EnableMetrics {
			metrics = nil
		}
		return server.NewAdminServer(cfg, log, health, metrics)
	},
)

// LifecycleModule provides lifecycle hooks
var LifecycleModule = fx.Invoke(
	RegisterLifecycleHooks,
)

// RegisterLifecycleHooks starts the servers and the log level watcher
func RegisterLifecycleHooks(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Config,
	path ConfigPath,
	level zap.AtomicLevel,
	log *zap.Logger,
	api *apiserver.Server,
	admin *server.AdminServer,
	_ *monitoring.TracingProvider,
) {
	serve := func(name string, start func() error) {
		go func() {
			if err := start(); err != nil {
				log.Error("Server stopped unexpectedly", zap.String("server", name), zap.Error(err))
				_ = shutdowner.Shutdown()
			}
		}()
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting pantry service",
				zap.String("version", cfg.App.Version),
				zap.String("environment", cfg.App.Environment),
				zap.String("database", cfg.Database.Driver),
				zap.Bool("redis", cfg.Redis.Enabled),
			)

			if err := config.WatchLogLevel(string(path), level, log); err != nil {
				log.Warn("Config watch disabled", zap.Error(err))
			}

			serve("api", api.Start)
			serve("admin", admin.Start)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down pantry service")

			err := multierr.Append(api.Shutdown(ctx), admin.Shutdown(ctx))
			_ = log.Sync()
			return err
		},
	})
}
