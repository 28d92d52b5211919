// Package config provides centralized configuration management
// using Viper for configuration loading and validation
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/alchemorsel/pantry/pkg/logger"
)

// Config holds all application configuration
type Config struct {
	App            AppConfig            `mapstructure:"app"`
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Auth           AuthConfig           `mapstructure:"auth"`
	Converter      ConverterConfig      `mapstructure:"converter"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
	Monitoring     MonitoringConfig     `mapstructure:"monitoring"`
	Events         EventsConfig         `mapstructure:"events"`
	AWS            AWSConfig            `mapstructure:"aws"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	MaxHeaderBytes    int           `mapstructure:"max_header_bytes"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	EnableCompression bool          `mapstructure:"enable_compression"`
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Driver             string        `mapstructure:"driver"`
	Path               string        `mapstructure:"path"`
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	Database           string        `mapstructure:"database"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	SSLMode            string        `mapstructure:"ssl_mode"`
	ReadReplicas       []string      `mapstructure:"read_replicas"`
	MaxOpenConns       int           `mapstructure:"max_open_conns"`
	MaxIdleConns       int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime    time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel           string        `mapstructure:"log_level"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
	AutoMigrate        bool          `mapstructure:"auto_migrate"`
	Seed               bool          `mapstructure:"seed"`
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	Database     int           `mapstructure:"database"`
	MaxRetries   int           `mapstructure:"max_retries"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
}

// AuthConfig contains authentication configuration
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// ConverterConfig configures the remote unit conversion API
type ConverterConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	APIKey              string        `mapstructure:"api_key"`
	Timeout             time.Duration `mapstructure:"timeout"`
	RequestsPerSecond   float64       `mapstructure:"requests_per_second"`
	Burst               int           `mapstructure:"burst"`
	CircuitMaxFailures  int           `mapstructure:"circuit_max_failures"`
	CircuitResetTimeout time.Duration `mapstructure:"circuit_reset_timeout"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
}

// ReconciliationConfig tunes the reconciliation engine
type ReconciliationConfig struct {
	Concurrency          int           `mapstructure:"concurrency"`
	ConversionTimeout    time.Duration `mapstructure:"conversion_timeout"`
	StoreRetryMaxElapsed time.Duration `mapstructure:"store_retry_max_elapsed"`
}

// MonitoringConfig contains monitoring configuration
type MonitoringConfig struct {
	EnableMetrics bool    `mapstructure:"enable_metrics"`
	MetricsPort   int     `mapstructure:"metrics_port"`
	EnableTracing bool    `mapstructure:"enable_tracing"`
	OTLPEndpoint  string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure  bool    `mapstructure:"otlp_insecure"`
	SamplingRate  float64 `mapstructure:"sampling_rate"`
}

// EventsConfig configures domain event delivery
type EventsConfig struct {
	HubBuffer         int           `mapstructure:"hub_buffer"`
	SQSEnabled        bool          `mapstructure:"sqs_enabled"`
	SQSQueueURL       string        `mapstructure:"sqs_queue_url"`
	SQSPublishTimeout time.Duration `mapstructure:"sqs_publish_timeout"`
}

// AWSConfig contains AWS service configuration
type AWSConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	Endpoint        string `mapstructure:"endpoint"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := newViper(configPath)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we have defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Unmarshal configuration
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// WatchLogLevel re-reads app.log_level whenever the config file changes and
// applies it to level. Without a config file there is nothing to watch.
func WatchLogLevel(configPath string, level zap.AtomicLevel, log *zap.Logger) error {
	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next := logger.ParseLevel(v.GetString("app.log_level"))
		if next == level.Level() {
			return
		}
		level.SetLevel(next)
		log.Info("Log level changed",
			zap.String("file", e.Name),
			zap.String("level", next.String()),
		)
	})
	v.WatchConfig()

	return nil
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/pantry")
	}

	// Enable environment variable override
	v.SetEnvPrefix("PANTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "Pantry")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.max_header_bytes", 1<<20) // 1MB
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.enable_compression", true)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "pantry.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "pantry")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.slow_query_threshold", "100ms")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.seed", true)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.pool_size", 10)

	// Auth defaults
	v.SetDefault("auth.issuer", "pantry")

	// Converter defaults
	v.SetDefault("converter.base_url", "https://api.spoonacular.com")
	v.SetDefault("converter.timeout", "5s")
	v.SetDefault("converter.requests_per_second", 5)
	v.SetDefault("converter.burst", 5)
	v.SetDefault("converter.circuit_max_failures", 5)
	v.SetDefault("converter.circuit_reset_timeout", "30s")
	v.SetDefault("converter.cache_ttl", "24h")

	// Reconciliation defaults
	v.SetDefault("reconciliation.concurrency", 1)
	v.SetDefault("reconciliation.conversion_timeout", "5s")
	v.SetDefault("reconciliation.store_retry_max_elapsed", "2s")

	// Monitoring defaults
	v.SetDefault("monitoring.enable_metrics", true)
	v.SetDefault("monitoring.metrics_port", 9090)
	v.SetDefault("monitoring.enable_tracing", false)
	v.SetDefault("monitoring.otlp_endpoint", "localhost:4318")
	v.SetDefault("monitoring.otlp_insecure", true)
	v.SetDefault("monitoring.sampling_rate", 0.1)

	// Events defaults
	v.SetDefault("events.hub_buffer", 16)
	v.SetDefault("events.sqs_enabled", false)
	v.SetDefault("events.sqs_publish_timeout", "2s")

	// AWS defaults
	v.SetDefault("aws.region", "us-east-1")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate required fields
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}

	if c.Auth.JWTSecret == "" && c.IsProduction() {
		return fmt.Errorf("auth.jwt_secret is required in production")
	}

	// Validate port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Monitoring.EnableMetrics && (c.Monitoring.MetricsPort < 1 || c.Monitoring.MetricsPort > 65535) {
		return fmt.Errorf("monitoring.metrics_port must be between 1 and 65535")
	}

	if c.Reconciliation.Concurrency < 1 {
		return fmt.Errorf("reconciliation.concurrency must be at least 1")
	}
	if c.Reconciliation.ConversionTimeout < 0 || c.Reconciliation.StoreRetryMaxElapsed < 0 {
		return fmt.Errorf("reconciliation timeouts must not be negative")
	}

	if c.Events.SQSEnabled && c.Events.SQSQueueURL == "" {
		return fmt.Errorf("events.sqs_queue_url is required when events.sqs_enabled is set")
	}
	if c.Events.SQSPublishTimeout < 0 {
		return fmt.Errorf("events.sqs_publish_timeout must not be negative")
	}

	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// GetDSN returns the database connection string
func (c *Config) GetDSN() string {
	return c.dsnFor(c.Database.Host)
}

// GetReplicaDSNs returns connection strings for the configured read replicas
func (c *Config) GetReplicaDSNs() []string {
	dsns := make([]string, 0, len(c.Database.ReadReplicas))
	for _, host := range c.Database.ReadReplicas {
		dsns = append(dsns, c.dsnFor(host))
	}
	return dsns
}

func (c *Config) dsnFor(host string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host,
		c.Database.Port,
		c.Database.Username,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// RedisAddr returns host:port of the Redis server
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// ServerAddr returns host:port of the API server
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
