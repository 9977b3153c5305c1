package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Registry RegistryConfig `mapstructure:"registry"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Transfer TransferConfig `mapstructure:"transfer"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// APIKey guards the mutation endpoints; empty disables the check.
	APIKey     string `mapstructure:"api_key"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	CertFile     string        `mapstructure:"cert_file"`
	KeyFile      string        `mapstructure:"key_file"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RegistryConfig represents the curation data service client configuration.
// The registry hosts the user directory, record graphs, and the
// duplicate-interpretation query endpoint.
type RegistryConfig struct {
	// Enabled routes data access through the registry's REST API instead of
	// the local curation database.
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RetryCount int           `mapstructure:"retry_count"`
}

// CacheConfig represents cache configuration for registry lookups
type CacheConfig struct {
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MemorySize  int           `mapstructure:"memory_size"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// AuditConfig selects and configures the transfer audit store
type AuditConfig struct {
	// Backend is "sqlite" or "postgres".
	Backend     string `mapstructure:"backend"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	DatabaseURL string `mapstructure:"database_url"`
}

// TransferConfig holds transfer engine feature flags
type TransferConfig struct {
	// CheckScoreDuplicates enables the evidence-score duplicate validator in
	// addition to the classification-level check. Off by default; the
	// production system never enforced it.
	CheckScoreDuplicates bool `mapstructure:"check_score_duplicates"`
	// ApplyConcurrency bounds the number of in-flight object updates.
	ApplyConcurrency int `mapstructure:"apply_concurrency"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}
