package sqlkit

import (
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// Config holds database configuration. Construct it directly, or
// resolve it from the environment with FromEnv. There is no package
// level singleton: a Config is built once and handed to New.
type Config struct {
	// Connection. URL takes precedence when set; otherwise the DSN is
	// assembled from the individual fields.
	URL      string // full PostgreSQL connection string
	Host     string // server host (required unless URL is set)
	Port     string // server port (default: 5432)
	User     string // user name (required unless URL is set)
	Password string // password (required unless URL is set)
	Database string // default database; empty means server default
	SSLMode  string // sslmode parameter (default: disable)

	// Pool settings
	MaxOpenConns    int           // Max open connections (default: 25)
	MaxIdleConns    int           // Max idle connections (default: 5)
	ConnMaxLifetime time.Duration // Max connection lifetime (default: 5m)
	ConnMaxIdleTime time.Duration // Max idle time (default: 1m)

	// Timeouts
	DialTimeout  time.Duration // Connection dial timeout (default: 5s)
	ReadTimeout  time.Duration // Read timeout (default: 30s)
	WriteTimeout time.Duration // Write timeout (default: 30s)

	// Observability (all optional)
	Logger          *slog.Logger          // Structured logger
	LogQueries      bool                  // Log all queries
	LogSlowQueries  time.Duration         // Log queries slower than this (0 = disabled)
	MetricsRegistry prometheus.Registerer // Prometheus registry for metrics
	Tracer          trace.Tracer          // OpenTelemetry tracer
}

// Environment variable names read by FromEnv.
const (
	EnvHost     = "DB_HOST"
	EnvPort     = "DB_PORT"
	EnvUser     = "DB_USER"
	EnvPassword = "DB_PASSWORD"
	EnvDatabase = "DB_NAME"
	EnvSSLMode  = "DB_SSLMODE"
)

// FromEnv resolves connection parameters from the process environment.
// DB_HOST, DB_USER, and DB_PASSWORD are required; DB_NAME, DB_PORT,
// and DB_SSLMODE are optional. Resolution happens once: the returned
// Config is a plain value with no further environment coupling.
func FromEnv() (Config, error) {
	cfg := Config{
		Host:     os.Getenv(EnvHost),
		Port:     os.Getenv(EnvPort),
		User:     os.Getenv(EnvUser),
		Password: os.Getenv(EnvPassword),
		Database: os.Getenv(EnvDatabase),
		SSLMode:  os.Getenv(EnvSSLMode),
	}

	for _, required := range []struct{ name, value string }{
		{EnvHost, cfg.Host},
		{EnvUser, cfg.User},
		{EnvPassword, cfg.Password},
	} {
		if required.value == "" {
			return Config{}, &Error{
				Code:    CodeConfig,
				Message: "missing required environment variable " + required.name,
				Op:      "FromEnv",
			}
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

// DefaultConfig returns a Config with sensible defaults for the given URL.
func DefaultConfig(url string) Config {
	cfg := Config{URL: url}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in zero values with defaults
func (c *Config) applyDefaults() {
	if c.Port == "" {
		c.Port = "5432"
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = 5 * time.Minute
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 1 * time.Minute
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
}

// validate checks that enough connection parameters are present.
func (c *Config) validate() error {
	if c.URL == "" && (c.Host == "" || c.User == "" || c.Password == "") {
		return &Error{
			Code:    CodeConfig,
			Message: "connection URL or host, user, and password are required",
			Op:      "New",
		}
	}
	return nil
}

// dsn renders the connection string for the given database. A
// non-empty database argument wins over the configured default; when
// both are empty the session is opened without a database and the
// server picks its default.
func (c *Config) dsn(database string) (string, error) {
	if database == "" {
		database = c.Database
	}

	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil {
			return "", &Error{
				Code:    CodeConfig,
				Message: "invalid connection URL",
				Op:      "Config.dsn",
				Cause:   err,
			}
		}
		if database != "" {
			u.Path = "/" + database
		}
		return u.String(), nil
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + c.Port,
	}
	if database != "" {
		u.Path = "/" + database
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// WithLogger enables query logging
func (c Config) WithLogger(logger *slog.Logger) Config {
	c.Logger = logger
	c.LogQueries = true
	return c
}

// WithSlowQueryLog logs queries slower than the threshold
func (c Config) WithSlowQueryLog(threshold time.Duration) Config {
	c.LogSlowQueries = threshold
	return c
}

// WithMetrics enables Prometheus metrics
func (c Config) WithMetrics(registry prometheus.Registerer) Config {
	c.MetricsRegistry = registry
	return c
}

// WithTracing enables OpenTelemetry tracing
func (c Config) WithTracing(tracer trace.Tracer) Config {
	c.Tracer = tracer
	return c
}
