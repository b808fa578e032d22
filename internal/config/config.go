// Package config provides centralized configuration management for the
// import service and the importctl CLI.
//
// Values are layered: struct-tag defaults, then an optional TOML file named
// by CONFIG_FILE, then environment variables. The result is validated on
// startup so misconfiguration fails fast.
package config

import (
	"strconv"
	"time"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMySQL    = "mysql"
	BackendDynamoDB = "dynamodb"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig    `toml:"server"`
	Store    StoreConfig     `toml:"store"`
	Import   ImportConfig    `toml:"import"`
	Rate     RateLimitConfig `toml:"rate_limit"`
	Security SecurityConfig  `toml:"security"`
	Notify   NotifyConfig    `toml:"notify"`
	Logging  LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `toml:"host" env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `toml:"port" env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `toml:"read_timeout" env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout stays 0 so progress streams are not cut off
	WriteTimeout time.Duration `toml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout time.Duration `toml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including running imports (default: 30s)
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-streaming requests (default: 60s)
	RequestTimeout time.Duration `toml:"request_timeout" env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// StoreConfig selects and configures the record store.
type StoreConfig struct {
	// Backend is one of memory, postgres, sqlite, mysql, dynamodb (default: memory)
	Backend string `toml:"backend" env:"STORE_BACKEND" default:"memory"`

	// DatabaseURL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	DatabaseURL string `toml:"database_url" env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `toml:"max_conns" env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `toml:"min_conns" env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `toml:"max_conn_lifetime" env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `toml:"max_conn_idle_time" env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// SQLitePath is the database file for the sqlite backend (default: processes.db)
	SQLitePath string `toml:"sqlite_path" env:"SQLITE_PATH" default:"processes.db"`

	// MySQLDSN is a go-sql-driver/mysql DSN, e.g. user:pass@tcp(host:3306)/db
	MySQLDSN string `toml:"mysql_dsn" env:"MYSQL_DSN"`

	// DynamoTable is the DynamoDB table name
	DynamoTable string `toml:"dynamo_table" env:"DYNAMO_TABLE"`

	// AWSRegion overrides the region from the shared AWS config
	AWSRegion string `toml:"aws_region" env:"AWS_REGION" envAlt:"AWS_DEFAULT_REGION"`

	// EnsureSchema creates the processes table on startup (default: true)
	EnsureSchema bool `toml:"ensure_schema" env:"STORE_ENSURE_SCHEMA" default:"true"`
}

// ImportConfig holds CSV import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum upload size in bytes (default: 10MB)
	MaxFileSize int64 `toml:"max_file_size" env:"IMPORT_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent is the maximum number of imports dispatching at once (default: 5)
	MaxConcurrent int `toml:"max_concurrent" env:"IMPORT_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an import slot (default: 30s)
	MaxWaitTime time.Duration `toml:"max_wait_time" env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// Concurrency is the number of creates in flight per import (default: 4)
	Concurrency int `toml:"concurrency" env:"IMPORT_CONCURRENCY" default:"4"`

	// CreateTimeout bounds a single create call (default: 10s)
	CreateTimeout time.Duration `toml:"create_timeout" env:"IMPORT_CREATE_TIMEOUT" default:"10s"`

	// Timeout bounds a whole import (default: 10m)
	Timeout time.Duration `toml:"timeout" env:"IMPORT_TIMEOUT" default:"10m"`

	// ScoreErrorPolicy is warn or block (default: warn)
	ScoreErrorPolicy string `toml:"score_error_policy" env:"IMPORT_SCORE_ERROR_POLICY" default:"warn"`

	// SessionTTL is how long an idle wizard session is kept (default: 30m)
	SessionTTL time.Duration `toml:"session_ttl" env:"IMPORT_SESSION_TTL" default:"30m"`

	// ProjectID is stamped on imported records when the client sends none
	ProjectID string `toml:"project_id" env:"IMPORT_PROJECT_ID" default:"default"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	Enabled bool `toml:"enabled" env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `toml:"requests_per_minute" env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for file and import endpoints (default: 10)
	UploadLimit int `toml:"upload_limit" env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `toml:"trusted_proxies" env:"TRUSTED_PROXIES"`

	EnableCSP bool `toml:"enable_csp" env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey enables X-API-Key authentication on /api routes
	RequireAPIKey bool `toml:"require_api_key" env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `toml:"api_keys" env:"API_KEYS"`
}

// NotifyConfig configures the dashboard notification sink.
type NotifyConfig struct {
	// AMQPURL enables publishing notifications to RabbitMQ when set
	AMQPURL string `toml:"amqp_url" env:"AMQP_URL" envAlt:"RABBITMQ_URL"`

	Exchange   string `toml:"exchange" env:"NOTIFY_EXCHANGE" default:"dashboard"`
	RoutingKey string `toml:"routing_key" env:"NOTIFY_ROUTING_KEY" default:"notifications.import"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `toml:"level" env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `toml:"format" env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
