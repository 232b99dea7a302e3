package core

import (
	"context"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

// TestQuery_AlbumChain runs the canonical usage end to end: two declared
// operations chained onto a source, a year filter bound at fetch time,
// three calls with distinct years.
func TestQuery_AlbumChain(t *testing.T) {
	db := newTestDB(t)
	albums := seedAlbums(t, db)
	ctx := context.Background()

	var builders []*Builder
	for _, year := range []int{2018, 2019, 2020} {
		b := albums.Query().Apply("withNameAndUnits").Apply("byUnitsSold")
		builders = append(builders, b)

		var result []albumRow
		if err := b.All(ctx, &result, Eq("release_year", year)); err != nil {
			t.Fatalf("All(%d) failed: %v", year, err)
		}

		if len(result) == 0 {
			t.Fatalf("Expected rows for year %d", year)
		}
		for i := 1; i < len(result); i++ {
			if result[i].CopiesSold > result[i-1].CopiesSold {
				t.Errorf("Expected descending order by copies_sold, got %v", result)
			}
		}
	}

	// Across all three calls the chain produced one builder per declared
	// operation, and all calls share the same final instance.
	if builders[0] != builders[1] || builders[1] != builders[2] {
		t.Error("Expected one shared builder instance across calls")
	}
	if stats := albums.CacheStats(); stats.Builders != 2 {
		t.Errorf("Expected exactly 2 cached builders, got %d", stats.Builders)
	}

	// First two executions ad hoc, third compiled.
	stats := db.PlannerStats()
	if stats.AdHocExecutions != 2 || stats.PreparedExecutions != 1 {
		t.Errorf("Expected adhoc=2 prepared=1, got adhoc=%d prepared=%d",
			stats.AdHocExecutions, stats.PreparedExecutions)
	}
}

// TestQuery_ReversedChainSkipsCache applies the filter first: nothing
// after the argument-bearing step may touch the builder cache.
func TestQuery_ReversedChainSkipsCache(t *testing.T) {
	db := newTestDB(t)
	albums := seedAlbums(t, db)
	ctx := context.Background()

	for _, year := range []int{2018, 2019, 2020} {
		b := albums.Query().
			Where(Eq("release_year", year)).
			Apply("withNameAndUnits").
			Apply("byUnitsSold")

		var result []albumRow
		if err := b.All(ctx, &result); err != nil {
			t.Fatalf("All(%d) failed: %v", year, err)
		}
	}

	stats := albums.CacheStats()
	if stats.Hits != 0 {
		t.Errorf("Expected zero cache hits for reversed chains, got %d", stats.Hits)
	}
	if stats.Builders != 0 {
		t.Errorf("Expected no cache entries for reversed chains, got %d", stats.Builders)
	}
}

func TestQuery_First(t *testing.T) {
	db := newTestDB(t)
	albums := seedAlbums(t, db)
	ctx := context.Background()

	var top albumRow
	err := albums.Query().
		Apply("withNameAndUnits").
		Apply("byUnitsSold").
		First(ctx, &top, Eq("release_year", 2019))
	if err != nil {
		t.Fatalf("First failed: %v", err)
	}
	if top.Name != "Kind of Blue" {
		t.Errorf("Expected best seller of 2019, got %q", top.Name)
	}

	err = albums.Query().First(ctx, &top, Eq("release_year", 1950))
	if !errors.Is(err, ErrNoRows) {
		t.Errorf("Expected ErrNoRows, got %v", err)
	}
}

func TestQuery_Scalar(t *testing.T) {
	db := newTestDB(t)
	albums := seedAlbums(t, db)
	ctx := context.Background()

	var name string
	err := albums.Query().
		With(Projection("name")).
		Apply("byUnitsSold").
		Scalar(ctx, &name, Eq("release_year", 2020))
	if err != nil {
		t.Fatalf("Scalar failed: %v", err)
	}
	if name != "A Love Supreme" {
		t.Errorf("Expected best seller of 2020, got %q", name)
	}

	err = albums.Query().With(Projection("name")).Scalar(ctx, &name, Eq("release_year", 1950))
	if !errors.Is(err, ErrNoRows) {
		t.Errorf("Expected ErrNoRows, got %v", err)
	}
}

func TestQuery_RowsLazySequence(t *testing.T) {
	db := newTestDB(t)
	albums := seedAlbums(t, db)
	ctx := context.Background()

	rows, err := albums.Query().
		Apply("withNameAndUnits").
		Apply("byUnitsSold").
		Rows(ctx, Eq("release_year", 2019))
	if err != nil {
		t.Fatalf("Rows failed: %v", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var r albumRow
		if err := rows.Scan(&r); err != nil {
			t.Fatalf("Scan failed: %v", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("Unexpected sequence error: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 rows for 2019, got %d", count)
	}

	// Closed sequences stay closed.
	if rows.Next() {
		t.Error("Expected Next to report false after exhaustion")
	}
	if err := rows.Close(); err != nil {
		t.Errorf("Expected idempotent Close, got %v", err)
	}

	var r albumRow
	if err := rows.Scan(&r); !errors.Is(err, ErrRowsClosed) {
		t.Errorf("Expected ErrRowsClosed, got %v", err)
	}
}

func TestQuery_Each(t *testing.T) {
	db := newTestDB(t)
	albums := seedAlbums(t, db)
	ctx := context.Background()

	var names []string
	err := albums.Query().
		Apply("withNameAndUnits").
		Apply("byUnitsSold").
		Each(ctx, func(rows *Rows) error {
			var r albumRow
			if err := rows.Scan(&r); err != nil {
				return err
			}
			names = append(names, r.Name)
			return nil
		}, Eq("release_year", 2019))
	if err != nil {
		t.Fatalf("Each failed: %v", err)
	}
	if len(names) != 2 || names[0] != "Kind of Blue" {
		t.Errorf("Unexpected iteration result: %v", names)
	}

	// An error from the callback aborts the iteration.
	boom := errors.New("boom")
	calls := 0
	err = albums.Query().Each(ctx, func(_ *Rows) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected callback error to surface, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected iteration to stop after first error, got %d calls", calls)
	}
}

func TestQuery_ExecutionErrorPropagates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ghosts := db.Source("no_such_table")
	var result []albumRow
	err := ghosts.Query().All(ctx, &result)
	if err == nil {
		t.Fatal("Expected error for missing table")
	}
	// The driver error stays attached as the cause.
	if errors.Unwrap(err) == nil {
		t.Errorf("Expected wrapped driver error, got %v", err)
	}
}

func TestQuery_ContextCancellation(t *testing.T) {
	db := newTestDB(t)
	albums := seedAlbums(t, db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var result []albumRow
	if err := albums.Query().All(ctx, &result); err == nil {
		t.Error("Expected error for canceled context")
	}
}
