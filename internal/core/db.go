// Package core provides the core database functionality for Memora:
// source registration, memoized query building, plan compilation, and
// execution against database/sql connections.
package core

import (
	"context"
	"database/sql"
	"sync"

	"github.com/coregx/memora/internal/cache"
	"github.com/coregx/memora/internal/dialects"
	"github.com/coregx/memora/internal/logger"
	"github.com/coregx/memora/internal/tracer"
)

// DB wraps a database connection with the source registry, the builder
// caches, and the execution planner. Connection pooling, transactions, and
// authentication stay with the underlying *sql.DB.
type DB struct {
	sqlDB      *sql.DB
	driverName string
	dialect    dialects.Dialect
	stmtCache  *cache.StmtCache
	planner    *planner
	logger     logger.Logger
	sanitizer  *logger.Sanitizer
	tracer     tracer.Tracer

	mu      sync.RWMutex
	sources map[string]*Source
}

// Option is a functional option for configuring DB.
type Option func(*DB)

// WithCompileThreshold sets how many executions of a builder shape trigger
// plan compilation. The default is DefaultCompileThreshold.
func WithCompileThreshold(n int) Option {
	return func(db *DB) {
		db.planner = newPlanner(n)
	}
}

// WithStmtCacheCapacity sets the prepared statement cache capacity.
func WithStmtCacheCapacity(capacity int) Option {
	return func(db *DB) {
		db.stmtCache = cache.NewStmtCacheWithCapacity(capacity)
	}
}

// WithLogger sets the logger used for query and planner events.
func WithLogger(l logger.Logger) Option {
	return func(db *DB) {
		if l != nil {
			db.logger = l
		}
	}
}

// WithTracer sets the tracer used for query spans.
func WithTracer(t tracer.Tracer) Option {
	return func(db *DB) {
		if t != nil {
			db.tracer = t
		}
	}
}

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(n int) Option {
	return func(db *DB) {
		db.sqlDB.SetMaxOpenConns(n)
	}
}

// WithMaxIdleConns sets the maximum number of idle connections.
func WithMaxIdleConns(n int) Option {
	return func(db *DB) {
		db.sqlDB.SetMaxIdleConns(n)
	}
}

// Open opens a database connection and wraps it.
func Open(driverName, dsn string, opts ...Option) (*DB, error) {
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	return WrapDB(sqlDB, driverName, opts...)
}

// WrapDB wraps an existing *sql.DB. The driver name selects the dialect;
// an unregistered driver returns ErrUnsupportedDialect.
func WrapDB(sqlDB *sql.DB, driverName string, opts ...Option) (*DB, error) {
	dialect, ok := dialects.Lookup(driverName)
	if !ok {
		return nil, WrapError(ErrUnsupportedDialect, driverName)
	}

	db := &DB{
		sqlDB:      sqlDB,
		driverName: driverName,
		dialect:    dialect,
		stmtCache:  cache.NewStmtCache(),
		planner:    newPlanner(DefaultCompileThreshold),
		logger:     &logger.NoopLogger{},
		sanitizer:  logger.NewSanitizer(nil),
		tracer:     &tracer.NoopTracer{},
		sources:    make(map[string]*Source),
	}

	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Close releases cached statements and closes the underlying connection.
func (db *DB) Close() error {
	db.stmtCache.Clear()
	return db.sqlDB.Close()
}

// Source registers (or returns the already registered) base source for a
// table. The column list is the default projection; it is only consulted
// on first registration and assumed static for the process lifetime.
func (db *DB) Source(table string, columns ...string) *Source {
	db.mu.RLock()
	s, ok := db.sources[table]
	db.mu.RUnlock()
	if ok {
		return s
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if s, ok := db.sources[table]; ok {
		return s
	}
	s = newSource(db, table, columns)
	db.sources[table] = s
	return s
}

// ResetCaches drops all memoized builders, planner counters, and cached
// prepared statements. Declarations and sources stay registered. Intended
// for test isolation.
func (db *DB) ResetCaches() {
	db.mu.RLock()
	for _, s := range db.sources {
		s.resetCache()
	}
	db.mu.RUnlock()

	db.planner.reset()
	db.stmtCache.Clear()
}

// PlannerStats returns plan-compilation metrics.
func (db *DB) PlannerStats() PlannerStats {
	return db.planner.stats()
}

// StmtCacheStats returns prepared statement cache metrics.
func (db *DB) StmtCacheStats() cache.Stats {
	return db.stmtCache.Stats()
}

// ExecContext executes a raw SQL statement. Escape hatch for DDL and
// maintenance statements outside the builder's scope.
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return db.sqlDB.ExecContext(ctx, query, args...)
}

// QueryContext executes a raw SQL query and returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.sqlDB.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a raw SQL query expected to return at most one row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.sqlDB.QueryRowContext(ctx, query, args...)
}
