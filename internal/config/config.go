// Package config defines the application configuration, loaded through viper
// from a YAML file and CONCEPTMAP_* environment variables.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/conceptmap-dev/conceptmap-cli/api/schemas"
)

// StorageBackend selects which repository implementation is wired in.
type StorageBackend string

const (
	BackendMemory   StorageBackend = "memory"
	BackendPostgres StorageBackend = "postgres"
)

// Config holds the entire application configuration.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Storage     StorageConfig     `mapstructure:"storage" yaml:"storage"`
	Integration IntegrationConfig `mapstructure:"integration" yaml:"integration"`
	Path        PathConfig        `mapstructure:"path" yaml:"path"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// StorageConfig selects and parameterizes the repository backend.
type StorageConfig struct {
	Backend  StorageBackend `mapstructure:"backend" yaml:"backend"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// PostgresConfig holds the connection details for a PostgreSQL database.
type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"-"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// DSN renders the pgx connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

// IntegrationConfig tunes the concept integration pipeline.
type IntegrationConfig struct {
	DefaultDomain   string `mapstructure:"default_domain" yaml:"default_domain"`
	ForceUpdate     bool   `mapstructure:"force_update" yaml:"force_update"`
	LoadConcurrency int    `mapstructure:"load_concurrency" yaml:"load_concurrency"`
}

// PathConfig tunes learning-path generation.
type PathConfig struct {
	MaxDepth int `mapstructure:"max_depth" yaml:"max_depth"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "conceptmap")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Storage --
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.user", "postgres")
	v.SetDefault("storage.postgres.password", "") // Set via CONCEPTMAP_STORAGE_POSTGRES_PASSWORD
	v.SetDefault("storage.postgres.dbname", "conceptmap")
	v.SetDefault("storage.postgres.sslmode", "disable")

	// -- Integration --
	v.SetDefault("integration.default_domain", "general")
	v.SetDefault("integration.force_update", false)
	v.SetDefault("integration.load_concurrency", 4)

	// -- Path --
	v.SetDefault("path.max_depth", 10)
}

// NewDefaultConfig creates a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults alone.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a validated configuration from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.Postgres.Host == "" || c.Storage.Postgres.DBName == "" {
			return fmt.Errorf("storage.postgres.host and storage.postgres.dbname are required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend '%s'", c.Storage.Backend)
	}
	if err := schemas.ValidateCount(c.Logger.MaxBackups, "logger.max_backups", true); err != nil {
		return err
	}
	if err := schemas.ValidateCount(c.Logger.MaxAge, "logger.max_age", true); err != nil {
		return err
	}
	if err := schemas.ValidatePositiveInteger(c.Integration.LoadConcurrency, "integration.load_concurrency"); err != nil {
		return err
	}
	if err := schemas.ValidatePositiveInteger(c.Path.MaxDepth, "path.max_depth"); err != nil {
		return err
	}
	return nil
}
