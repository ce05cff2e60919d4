// Package eventlog implements an optional, append-only SQLite audit
// log of sporadic-grid evictions, grounded on the teacher's
// internal/storage/sqlite batched-writer pattern. It is write-only:
// nothing in this package is ever read back to resume a run (the
// engine itself carries no cross-restart persistence).
package eventlog

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fidde/dstream/internal/grid"
)

//go:embed migrations/001_initial_schema.up.sql
var migration001SQL string

// Config holds SQLite event-log configuration.
type Config struct {
	DBPath        string
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultConfig returns default event-log configuration for dbPath.
func DefaultConfig(dbPath string) Config {
	return Config{
		DBPath:        dbPath,
		BatchSize:     200,
		FlushInterval: 50 * time.Millisecond,
	}
}

type evictionOp struct {
	runID      int64
	tick       int64
	coordKey   grid.GridKey
	recordedAt time.Time
}

// Log is an append-only SQLite-backed eviction audit log. Writes are
// buffered through a channel and flushed by a single background
// goroutine, the way the teacher's sqlite.Store batches writes.
type Log struct {
	db *sql.DB

	writeCh chan evictionOp
	closeCh chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// New opens (creating if necessary) a SQLite database at cfg.DBPath,
// runs the embedded migration, and starts the batch-writer goroutine.
func New(cfg Config) (*Log, error) {
	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("eventlog: opening database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=30000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("eventlog: setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(migration001SQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventlog: running migration: %w", err)
	}

	l := &Log{
		db:      db,
		writeCh: make(chan evictionOp, 2000),
		closeCh: make(chan struct{}),
	}
	l.wg.Add(1)
	go l.batchWriter(cfg.BatchSize, cfg.FlushInterval)
	return l, nil
}

// Record logs one eviction, tagged with the issuing driver's run ID
// so rows from different process runs never look contiguous. Callers
// typically install this as the driver's OnEvict hook bound to a
// fixed runID: `driver.OnEvict(func(c grid.Coordinate, tc int64) {
// evLog.Record(driver.RunID(), c, tc) })`.
func (l *Log) Record(runID int64, coord grid.Coordinate, tc int64) {
	select {
	case l.writeCh <- evictionOp{runID: runID, tick: tc, coordKey: coord.Key(), recordedAt: time.Now()}:
	case <-l.closeCh:
	}
}

func (l *Log) batchWriter(batchSize int, flushInterval time.Duration) {
	defer l.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]evictionOp, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := l.executeBatch(batch); err != nil {
			fmt.Printf("eventlog: batch insert failed: %v\n", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case op := <-l.writeCh:
			batch = append(batch, op)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-l.closeCh:
			flush()
			for drained := true; drained; {
				select {
				case op := <-l.writeCh:
					batch = append(batch, op)
				default:
					drained = false
				}
			}
			flush()
			return
		}
	}
}

func (l *Log) executeBatch(batch []evictionOp) error {
	tx, err := l.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO grid_evictions (run_id, tick, coord_key, recorded_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, op := range batch {
		if _, err := stmt.Exec(op.runID, op.tick, string(op.coordKey), op.recordedAt.Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close stops the batch writer after flushing any pending rows.
func (l *Log) Close(ctx context.Context) error {
	l.once.Do(func() { close(l.closeCh) })
	l.wg.Wait()
	return l.db.Close()
}
