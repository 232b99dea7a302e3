package core

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func seedAlbums(t *testing.T, db *DB) *Source {
	t.Helper()
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		CREATE TABLE albums (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			copies_sold INTEGER NOT NULL,
			release_year INTEGER NOT NULL
		)
	`)
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	rows := []struct {
		name string
		sold int
		year int
	}{
		{"Blue Train", 500, 2018},
		{"Giant Steps", 900, 2019},
		{"Kind of Blue", 1500, 2019},
		{"A Love Supreme", 1200, 2020},
		{"Time Out", 300, 2020},
	}
	for _, r := range rows {
		_, err := db.ExecContext(ctx,
			`INSERT INTO albums (name, copies_sold, release_year) VALUES (?, ?, ?)`,
			r.name, r.sold, r.year)
		if err != nil {
			t.Fatalf("Failed to insert data: %v", err)
		}
	}

	return newAlbumSource(t, db)
}

type albumRow struct {
	ID         int    `db:"id"`
	Name       string `db:"name"`
	CopiesSold int    `db:"copies_sold"`
}

func TestPlanner_ThresholdCompilation(t *testing.T) {
	db := newTestDB(t)
	albums := seedAlbums(t, db)
	ctx := context.Background()

	b := albums.Query().Apply("withNameAndUnits").Apply("byUnitsSold")

	// The first two executions of the shape run ad hoc.
	for call, year := range []int{2018, 2019} {
		var result []albumRow
		if err := b.All(ctx, &result, Eq("release_year", year)); err != nil {
			t.Fatalf("Call %d failed: %v", call+1, err)
		}
	}

	stats := db.PlannerStats()
	if stats.AdHocExecutions != 2 {
		t.Errorf("Expected 2 ad hoc executions, got %d", stats.AdHocExecutions)
	}
	if stats.CompiledShapes != 0 {
		t.Errorf("Expected no compiled shapes yet, got %d", stats.CompiledShapes)
	}

	// The third and later executions share one compiled plan.
	for _, year := range []int{2020, 2019, 2018} {
		var result []albumRow
		if err := b.All(ctx, &result, Eq("release_year", year)); err != nil {
			t.Fatalf("Compiled call failed: %v", err)
		}
	}

	stats = db.PlannerStats()
	if stats.AdHocExecutions != 2 {
		t.Errorf("Expected ad hoc count to stay at 2, got %d", stats.AdHocExecutions)
	}
	if stats.PreparedExecutions != 3 {
		t.Errorf("Expected 3 prepared executions, got %d", stats.PreparedExecutions)
	}
	if stats.CompiledShapes != 1 {
		t.Errorf("Expected 1 compiled shape, got %d", stats.CompiledShapes)
	}

	// One shape compiles to exactly one statement.
	if cs := db.StmtCacheStats(); cs.Size != 1 {
		t.Errorf("Expected a single cached statement, got %d", cs.Size)
	}
}

func TestPlanner_StateTransitions(t *testing.T) {
	db := newTestDB(t)
	albums := seedAlbums(t, db)
	ctx := context.Background()

	b := albums.Query().Apply("withNameAndUnits")
	sqlText, _ := b.render(Eq("release_year", 2019), false)

	if got := db.planner.state(sqlText); got != stateUnseen {
		t.Errorf("Expected unseen state before execution, got %d", got)
	}

	var result []albumRow
	if err := b.All(ctx, &result, Eq("release_year", 2019)); err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if got := db.planner.state(sqlText); got != stateWarming {
		t.Errorf("Expected warming state after 1 execution, got %d", got)
	}

	for i := 0; i < 2; i++ {
		if err := b.All(ctx, &result, Eq("release_year", 2019)); err != nil {
			t.Fatalf("All failed: %v", err)
		}
	}
	if got := db.planner.state(sqlText); got != stateCompiled {
		t.Errorf("Expected compiled state after 3 executions, got %d", got)
	}

	// Compiled is terminal for the shape: further executions never demote.
	if err := b.All(ctx, &result, Eq("release_year", 2020)); err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if got := db.planner.state(sqlText); got != stateCompiled {
		t.Errorf("Expected compiled state to persist, got %d", got)
	}
}

func TestPlanner_CustomThreshold(t *testing.T) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	db, err := WrapDB(sqlDB, "sqlite", WithCompileThreshold(1))
	if err != nil {
		t.Fatalf("Failed to wrap database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	albums := seedAlbums(t, db)
	ctx := context.Background()

	var result []albumRow
	if err := albums.Query().Apply("withNameAndUnits").All(ctx, &result, Eq("release_year", 2019)); err != nil {
		t.Fatalf("All failed: %v", err)
	}

	stats := db.PlannerStats()
	if stats.Threshold != 1 {
		t.Errorf("Expected threshold 1, got %d", stats.Threshold)
	}
	if stats.PreparedExecutions != 1 || stats.AdHocExecutions != 0 {
		t.Errorf("Expected immediate compilation, got adhoc=%d prepared=%d",
			stats.AdHocExecutions, stats.PreparedExecutions)
	}
}

func TestPlanner_DistinctShapes(t *testing.T) {
	db := newTestDB(t)
	albums := seedAlbums(t, db)
	ctx := context.Background()

	b := albums.Query().Apply("withNameAndUnits")

	var all []albumRow
	if err := b.All(ctx, &all, Eq("release_year", 2019)); err != nil {
		t.Fatalf("All failed: %v", err)
	}

	// First renders LIMIT 1, a different shape with its own counter.
	var one albumRow
	if err := b.First(ctx, &one, Eq("release_year", 2019)); err != nil {
		t.Fatalf("First failed: %v", err)
	}

	if stats := db.PlannerStats(); stats.Shapes != 2 {
		t.Errorf("Expected 2 distinct shapes, got %d", stats.Shapes)
	}
}

func TestPlanner_ResetCaches(t *testing.T) {
	db := newTestDB(t)
	albums := seedAlbums(t, db)
	ctx := context.Background()

	b := albums.Query().Apply("withNameAndUnits").Apply("byUnitsSold")
	var result []albumRow
	for i := 0; i < 4; i++ {
		if err := b.All(ctx, &result, Eq("release_year", 2019)); err != nil {
			t.Fatalf("All failed: %v", err)
		}
	}

	db.ResetCaches()

	stats := db.PlannerStats()
	if stats.Shapes != 0 || stats.AdHocExecutions != 0 || stats.PreparedExecutions != 0 {
		t.Errorf("Expected planner reset, got %+v", stats)
	}
	if cs := db.StmtCacheStats(); cs.Size != 0 {
		t.Errorf("Expected statement cache cleared, got size %d", cs.Size)
	}
	if cs := albums.CacheStats(); cs.Builders != 0 {
		t.Errorf("Expected builder cache cleared, got %d", cs.Builders)
	}

	// Declarations survive a reset; the chain repopulates and still runs.
	if err := albums.Query().Apply("withNameAndUnits").All(ctx, &result, Eq("release_year", 2019)); err != nil {
		t.Fatalf("All after reset failed: %v", err)
	}
}
