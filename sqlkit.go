package sqlkit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/fernandezvara/sqlkit/hooks"
)

// DB wraps bun.DB with statement assembly, scoped execution, and
// transaction helpers. The embedded pool serves the configured default
// database; operations that name another database are routed to a
// lazily opened sibling pool bound to it.
type DB struct {
	*bun.DB
	config Config
	logger *slog.Logger
	hooks  []bun.QueryHook

	mu    sync.Mutex
	pools map[string]*bun.DB // keyed by database name, "" = default
}

// Option adjusts a single operation.
type Option func(*opOptions)

type opOptions struct {
	database string
}

// WithDatabase routes the operation to the named database instead of
// the configured default.
func WithDatabase(name string) Option {
	return func(o *opOptions) {
		o.database = name
	}
}

func resolveOptions(opts []Option) opOptions {
	var o opOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New creates a new database handle with the given configuration and
// verifies connectivity to the default database.
func New(cfg Config) (*DB, error) {
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db := &DB{
		config: cfg,
		logger: logger,
		pools:  make(map[string]*bun.DB),
	}

	// Observability hooks are built once and shared by every pool.
	if cfg.Logger != nil && (cfg.LogQueries || cfg.LogSlowQueries > 0) {
		db.hooks = append(db.hooks, hooks.NewLoggerHook(cfg.Logger, cfg.LogQueries, cfg.LogSlowQueries))
	}
	if cfg.MetricsRegistry != nil {
		hook, err := hooks.NewMetricsHook(cfg.MetricsRegistry)
		if err != nil {
			return nil, fmt.Errorf("sqlkit: failed to create metrics hook: %w", err)
		}
		db.hooks = append(db.hooks, hook)
	}
	if cfg.Tracer != nil {
		db.hooks = append(db.hooks, hooks.NewTracingHook(cfg.Tracer))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	pool, err := db.openPool(ctx, "")
	if err != nil {
		return nil, err
	}

	db.DB = pool
	db.pools[""] = pool
	return db, nil
}

// openPool opens and verifies a connection pool for the given database.
func (db *DB) openPool(ctx context.Context, database string) (*bun.DB, error) {
	dsn, err := db.config.dsn(database)
	if err != nil {
		return nil, err
	}

	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithDialTimeout(db.config.DialTimeout),
		pgdriver.WithReadTimeout(db.config.ReadTimeout),
		pgdriver.WithWriteTimeout(db.config.WriteTimeout),
	)

	sqlDB := sql.OpenDB(connector)
	sqlDB.SetMaxOpenConns(db.config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(db.config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(db.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(db.config.ConnMaxIdleTime)

	pool := bun.NewDB(sqlDB, pgdialect.New())
	for _, hook := range db.hooks {
		pool.AddQueryHook(hook)
	}

	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		db.logger.Error("failed to connect to database",
			slog.String("database", database),
			slog.String("error", err.Error()))
		return nil, &Error{
			Code:    CodeConnectionFailed,
			Message: "failed to connect to database",
			Op:      "New",
			Cause:   err,
		}
	}

	db.logger.Info("connected to database", slog.String("database", database))
	return pool, nil
}

// pool returns the pool bound to the given database, opening it on
// first use. The empty string names the default database.
func (db *DB) pool(ctx context.Context, database string) (*bun.DB, error) {
	if database == "" {
		return db.DB, nil
	}
	if err := validateIdent("database", database); err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if pool, ok := db.pools[database]; ok {
		return pool, nil
	}

	pool, err := db.openPool(ctx, database)
	if err != nil {
		return nil, err
	}
	db.pools[database] = pool
	return pool, nil
}

// Close closes every open pool.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var errs []error
	for name, pool := range db.pools {
		if err := pool.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(db.pools, name)
	}
	db.logger.Info("database connections closed")
	return errors.Join(errs...)
}

// Ping verifies the default database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return wrapError(err, "Ping")
	}
	return nil
}

// Stats returns connection pool statistics for the default database.
func (db *DB) Stats() sql.DBStats {
	return db.DB.DB.Stats()
}

// Bun returns the underlying bun.DB for direct access.
func (db *DB) Bun() *bun.DB {
	return db.DB
}

// Config returns the current configuration.
func (db *DB) Config() Config {
	return db.config
}
