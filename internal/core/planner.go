package core

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
)

// DefaultCompileThreshold is the number of executions of a builder shape
// after which the planner compiles a reusable prepared plan for it.
const DefaultCompileThreshold = 3

// PlanKind distinguishes ad hoc plans from compiled prepared plans.
type PlanKind int

const (
	// PlanAdHoc renders and executes the query text directly.
	PlanAdHoc PlanKind = iota
	// PlanPrepared executes a compiled prepared statement with bind values.
	PlanPrepared
)

// Plan is an executable query plan produced by the planner.
type Plan struct {
	Kind PlanKind
	SQL  string
	args []interface{}
	stmt *sql.Stmt
}

// shapeState is the planner's per-shape lifecycle.
type shapeState int

const (
	stateUnseen shapeState = iota
	stateWarming
	stateCompiled
)

// shapeEntry tracks executions of one builder shape.
type shapeEntry struct {
	executions uint64
	compiled   bool
}

// planner decides per builder shape whether to execute ad hoc or through a
// compiled prepared plan. Each shape moves Unseen -> Warming -> Compiled as
// its execution count crosses the threshold; a compiled shape never demotes.
type planner struct {
	mu        sync.Mutex
	threshold uint64
	shapes    map[string]*shapeEntry

	adhoc    atomic.Uint64
	prepared atomic.Uint64
}

func newPlanner(threshold int) *planner {
	if threshold <= 0 {
		threshold = DefaultCompileThreshold
	}
	return &planner{
		threshold: uint64(threshold),
		shapes:    make(map[string]*shapeEntry),
	}
}

// plan records one execution of the shape and returns the plan to run.
// The first threshold-1 executions produce ad hoc plans; from the
// threshold-th on, the shape is compiled once and the prepared statement is
// reused through the DB's statement cache.
func (p *planner) plan(ctx context.Context, db *DB, sqlText string, args []interface{}) (*Plan, error) {
	p.mu.Lock()
	entry := p.shapes[sqlText]
	if entry == nil {
		entry = &shapeEntry{}
		p.shapes[sqlText] = entry
	}
	entry.executions++
	execs := entry.executions
	compile := execs >= p.threshold
	firstCompile := compile && !entry.compiled
	if compile {
		entry.compiled = true
	}
	p.mu.Unlock()

	if !compile {
		p.adhoc.Add(1)
		return &Plan{Kind: PlanAdHoc, SQL: sqlText, args: args}, nil
	}

	stmt, ok := db.stmtCache.Get(sqlText)
	if !ok {
		var err error
		stmt, err = db.sqlDB.PrepareContext(ctx, sqlText)
		if err != nil {
			return nil, WrapError(err, "compile plan")
		}
		db.stmtCache.Set(sqlText, stmt)
	}

	if firstCompile {
		db.logger.Debug("plan compiled",
			"sql", sqlText,
			"executions", execs,
			"threshold", p.threshold,
		)
	}

	p.prepared.Add(1)
	return &Plan{Kind: PlanPrepared, SQL: sqlText, args: args, stmt: stmt}, nil
}

// state returns the lifecycle state of a shape.
func (p *planner) state(sqlText string) shapeState {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry := p.shapes[sqlText]
	switch {
	case entry == nil || entry.executions == 0:
		return stateUnseen
	case entry.compiled:
		return stateCompiled
	default:
		return stateWarming
	}
}

// reset drops all shape counters and metrics.
func (p *planner) reset() {
	p.mu.Lock()
	p.shapes = make(map[string]*shapeEntry)
	p.mu.Unlock()
	p.adhoc.Store(0)
	p.prepared.Store(0)
}

// PlannerStats holds plan-compilation metrics.
type PlannerStats struct {
	Shapes             int    // Distinct builder shapes seen.
	CompiledShapes     int    // Shapes promoted to a compiled plan.
	AdHocExecutions    uint64 // Executions served by ad hoc plans.
	PreparedExecutions uint64 // Executions served by compiled plans.
	Threshold          int    // Configured compile threshold.
}

func (p *planner) stats() PlannerStats {
	p.mu.Lock()
	shapes := len(p.shapes)
	compiled := 0
	for _, e := range p.shapes {
		if e.compiled {
			compiled++
		}
	}
	p.mu.Unlock()

	return PlannerStats{
		Shapes:             shapes,
		CompiledShapes:     compiled,
		AdHocExecutions:    p.adhoc.Load(),
		PreparedExecutions: p.prepared.Load(),
		Threshold:          int(p.threshold),
	}
}
