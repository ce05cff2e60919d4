package eventlog

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fidde/dstream/internal/grid"
)

func TestRecordPersistsRows(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "events.db")
	cfg := DefaultConfig(dbPath)
	cfg.BatchSize = 2
	cfg.FlushInterval = 10 * time.Millisecond

	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Record(1, grid.Coordinate{1, 2}, 10)
	l.Record(1, grid.Coordinate{3, 4}, 20)
	l.Record(2, grid.Coordinate{5, 6}, 30)

	if err := l.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("reopening db: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM grid_evictions").Scan(&count); err != nil {
		t.Fatalf("querying row count: %v", err)
	}
	if count != 3 {
		t.Fatalf("row count = %d, want 3", count)
	}

	var runID, tick int64
	if err := db.QueryRow("SELECT run_id, tick FROM grid_evictions WHERE tick = 30").Scan(&runID, &tick); err != nil {
		t.Fatalf("querying row: %v", err)
	}
	if runID != 2 || tick != 30 {
		t.Fatalf("got run_id=%d tick=%d, want run_id=2 tick=30", runID, tick)
	}
}

func TestRecordDropsAfterClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "events.db")
	l, err := New(DefaultConfig(dbPath))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := l.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Record after Close must not block or panic: writeCh's reader has
	// exited and closeCh is already closed.
	l.Record(1, grid.Coordinate{0}, 0)
}
