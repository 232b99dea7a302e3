package core

import (
	"context"
	"database/sql"
	"time"

	"github.com/coregx/memora/internal/tracer"
)

// All fetches every matching row into dest, which must be a pointer to a
// slice of structs. An optional filter predicate is ANDed onto the chain
// and executed atomically with the fetch; its bind values flow into the
// plan as parameters, so repeated calls with different values share one
// builder shape.
func (b *Builder) All(ctx context.Context, dest interface{}, filter ...Expression) error {
	rows, err := b.fetch(ctx, "all", filter, false)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	return globalScanner.scanRows(rows.rows, dest)
}

// Each fetches matching rows lazily, invoking fn for each row. Iteration
// stops on the first error from fn or from row materialization.
func (b *Builder) Each(ctx context.Context, fn func(*Rows) error, filter ...Expression) error {
	rows, err := b.fetch(ctx, "each", filter, false)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// First fetches the first matching row into dest. Returns ErrNoRows when
// no row matches.
func (b *Builder) First(ctx context.Context, dest interface{}, filter ...Expression) error {
	rows, err := b.fetch(ctx, "first", filter, true)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return ErrNoRows
	}
	return rows.Scan(dest)
}

// Scalar fetches a single scalar column of the first matching row into
// dest. Returns ErrNoRows when no row matches.
func (b *Builder) Scalar(ctx context.Context, dest interface{}, filter ...Expression) error {
	rows, err := b.fetch(ctx, "scalar", filter, true)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return ErrNoRows
	}
	return WrapError(rows.rows.Scan(dest), "scan scalar")
}

// Rows fetches matching rows as a lazy forward-only sequence. The caller
// must Close the sequence; re-invoking Rows is the only way to restart it.
func (b *Builder) Rows(ctx context.Context, filter ...Expression) (*Rows, error) {
	return b.fetch(ctx, "rows", filter, false)
}

// fetch finalizes the builder with the filter, asks the planner for a
// plan, and runs it. This is the only path that executes SQL, so every
// terminal operation participates in plan compilation.
func (b *Builder) fetch(ctx context.Context, opName string, filter []Expression, limitOne bool) (*Rows, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db := b.source.db

	var span tracer.Span
	if db.tracer != nil {
		ctx, span = db.tracer.StartSpan(ctx, "memora.query."+opName)
		defer span.End()
	}

	sqlText, args := b.render(combineFilters(filter), limitOne)

	start := time.Now()

	plan, err := db.planner.plan(ctx, db, sqlText, args)
	if err != nil {
		db.logger.Error("plan construction failed",
			"sql", sqlText,
			"error", err,
		)
		return nil, err
	}

	rows, err := db.run(ctx, plan)
	elapsed := time.Since(start)

	if span != nil {
		tracer.AddQueryAttributes(span, &tracer.QueryMetadata{
			SQL:      sqlText,
			Args:     args,
			Duration: elapsed,
			Error:    err,
			Database: db.driverName,
			Prepared: plan.Kind == PlanPrepared,
		})
	}

	maskedParams := db.sanitizer.FormatParams(db.sanitizer.MaskParams(sqlText, args))
	if err != nil {
		db.logger.Error("query execution failed",
			"sql", sqlText,
			"params", maskedParams,
			"duration_ms", elapsed.Milliseconds(),
			"database", db.driverName,
			"error", err,
		)
		return nil, WrapError(err, "execute query")
	}

	db.logger.Debug("query executed",
		"sql", sqlText,
		"params", maskedParams,
		"duration_ms", elapsed.Milliseconds(),
		"database", db.driverName,
		"prepared", plan.Kind == PlanPrepared,
	)

	return &Rows{rows: rows}, nil
}

// run is the executor: one database round trip per call. Ad hoc plans send
// the query text directly; prepared plans reuse the compiled statement
// with the bind values substituted.
func (db *DB) run(ctx context.Context, plan *Plan) (*sql.Rows, error) {
	if plan.Kind == PlanPrepared {
		return plan.stmt.QueryContext(ctx, plan.args...)
	}
	return db.sqlDB.QueryContext(ctx, plan.SQL, plan.args...)
}

// combineFilters ANDs the optional terminal filters into one expression.
func combineFilters(filter []Expression) Expression {
	switch len(filter) {
	case 0:
		return nil
	case 1:
		return filter[0]
	default:
		return And(filter...)
	}
}

// Rows is a lazy, forward-only, finite sequence of rows. A failure during
// materialization aborts the remainder of the sequence; the underlying
// driver error is surfaced by Err.
type Rows struct {
	rows   *sql.Rows
	closed bool
	err    error
}

// Next advances to the next row, reporting false at the end of the
// sequence or on error.
func (r *Rows) Next() bool {
	if r.closed {
		return false
	}
	if r.rows.Next() {
		return true
	}
	r.err = r.rows.Err()
	_ = r.Close()
	return false
}

// Scan scans the current row into dest: a struct pointer is matched by
// column name, anything else is scanned as a single column.
func (r *Rows) Scan(dest interface{}) error {
	if r.closed {
		return ErrRowsClosed
	}
	return globalScanner.scanRow(r.rows, dest)
}

// Err returns the error, if any, that aborted the sequence.
func (r *Rows) Err() error {
	if r.err != nil {
		return WrapError(r.err, "materialize rows")
	}
	return nil
}

// Close releases the underlying result set. Close is idempotent.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.rows.Close()
}
