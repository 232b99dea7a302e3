// Package memora provides an immutable, chainable query builder for Go
// with memoization of intermediate builder states and execution-count
// driven plan compilation. Chains built from operations declared with
// fixed arguments are served from a per-source builder cache instead of
// reallocating, and builder shapes executed repeatedly are promoted to a
// reusable prepared plan. PostgreSQL, MySQL, and SQLite dialects are
// supported out of the box, along with structured logging and
// OpenTelemetry tracing.
package memora

import (
	"github.com/coregx/memora/internal/core"
	"github.com/coregx/memora/internal/logger"
	"github.com/coregx/memora/internal/tracer"
)

type (
	// DB wraps a database connection with the source registry, builder
	// caches, and the execution planner.
	DB = core.DB
	// Option is a functional option for configuring DB.
	Option = core.Option
	// Source describes a base table and owns its declared operations.
	Source = core.Source
	// Builder is an immutable, chainable accumulator of query fragments.
	Builder = core.Builder
	// Fragment is one immutable clause of a query.
	Fragment = core.Fragment
	// OrderKey is a single ordering column with direction.
	OrderKey = core.OrderKey
	// Rows is a lazy, forward-only sequence of fetched rows.
	Rows = core.Rows
	// PlannerStats holds plan-compilation metrics.
	PlannerStats = core.PlannerStats
	// CacheStats holds builder-cache metrics for a source.
	CacheStats = core.CacheStats

	// Expression represents a condition tree for WHERE clauses.
	Expression = core.Expression
	// HashExp represents a hash-based expression using column-value pairs.
	HashExp = core.HashExp

	// DeclarationError reports a cacheable operation declared with
	// dynamic arguments.
	DeclarationError = core.DeclarationError
	// ShapeMismatchError reports a corrupted builder cache entry.
	ShapeMismatchError = core.ShapeMismatchError

	// Logger is the structured logging interface.
	Logger = logger.Logger
	// Tracer is the tracing interface.
	Tracer = tracer.Tracer
)

// Re-export core functions.
var (
	Open   = core.Open
	WrapDB = core.WrapDB

	// Options
	WithCompileThreshold  = core.WithCompileThreshold
	WithStmtCacheCapacity = core.WithStmtCacheCapacity
	WithLogger            = core.WithLogger
	WithTracer            = core.WithTracer
	WithMaxOpenConns      = core.WithMaxOpenConns
	WithMaxIdleConns      = core.WithMaxIdleConns

	// Fragment constructors
	Projection  = core.Projection
	Predicate   = core.Predicate
	OrderBy     = core.OrderBy
	Asc         = core.Asc
	Desc        = core.Desc
	Limit       = core.Limit
	LimitOffset = core.LimitOffset

	// Expression builders
	NewExp         = core.NewExp
	Eq             = core.Eq
	NotEq          = core.NotEq
	GreaterThan    = core.GreaterThan
	LessThan       = core.LessThan
	GreaterOrEqual = core.GreaterOrEqual
	LessOrEqual    = core.LessOrEqual
	In             = core.In
	And            = core.And
	Or             = core.Or
	Not            = core.Not

	// Logging and tracing adapters
	NewSlogAdapter = logger.NewSlogAdapter
	NewOtelTracer  = tracer.NewOtelTracer
)

// Sentinel errors.
var (
	// ErrNoRows is returned when a query that expects rows returns none.
	ErrNoRows = core.ErrNoRows
	// ErrUndeclaredOperation is returned when Apply references an
	// undeclared operation name.
	ErrUndeclaredOperation = core.ErrUndeclaredOperation
	// ErrUnsupportedDialect is returned for unregistered driver names.
	ErrUnsupportedDialect = core.ErrUnsupportedDialect
	// ErrRowsClosed is returned when iterating a closed row sequence.
	ErrRowsClosed = core.ErrRowsClosed
)

// DefaultCompileThreshold is the default execution count after which a
// builder shape is compiled to a prepared plan.
const DefaultCompileThreshold = core.DefaultCompileThreshold
