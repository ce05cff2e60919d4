// Package history implements an optional, write-only ClickHouse sink
// that records a snapshot row per clustering cycle — grounded on the
// teacher's internal/storage/clickhouse connection/schema/batch-buffer
// pattern. History is never read back to resume a run: the engine
// itself carries no cross-restart persistence (spec.md Non-goals).
package history

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/fidde/dstream/internal/clustering"
)

const (
	defaultBatchSize     = 500
	defaultFlushInterval = 5 * time.Second
	defaultMaxOpenConns  = 10
	defaultDialTimeout   = 10 * time.Second
)

// ConnectionConfig holds ClickHouse connection parameters.
type ConnectionConfig struct {
	Addr         string
	Database     string
	Username     string
	Password     string
	MaxOpenConns int
	DialTimeout  time.Duration
	TLS          *tls.Config

	BatchSize     int
	FlushInterval time.Duration
}

// DefaultConfig returns a connection config with sensible defaults.
func DefaultConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Addr:          "localhost:9000",
		Database:      "default",
		Username:      "default",
		MaxOpenConns:  defaultMaxOpenConns,
		DialTimeout:   defaultDialTimeout,
		BatchSize:     defaultBatchSize,
		FlushInterval: defaultFlushInterval,
	}
}

// Connect establishes a connection to ClickHouse and verifies it.
func Connect(ctx context.Context, cfg *ConnectionConfig) (driver.Conn, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		TLS:         cfg.TLS,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("history: opening clickhouse connection: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("history: pinging clickhouse: %w", err)
	}
	return conn, nil
}

const createTableDDL = `
CREATE TABLE IF NOT EXISTS cluster_cycles (
	tick          Int64,
	recorded_at   DateTime,
	grids_refreshed UInt32,
	clusters_live   UInt32
) ENGINE = MergeTree()
ORDER BY (tick)
`

// InitializeSchema creates the cluster_cycles table if it is missing.
func InitializeSchema(ctx context.Context, conn driver.Conn) error {
	if err := conn.Exec(ctx, createTableDDL); err != nil {
		return fmt.Errorf("history: initializing schema: %w", err)
	}
	return nil
}

type cycleRow struct {
	tick           int64
	recordedAt     time.Time
	gridsRefreshed uint32
	clustersLive   uint32
}

// Sink batches cycle summaries and flushes them to ClickHouse on a
// size/interval trigger, the way the teacher's BatchBuffer does.
type Sink struct {
	conn   driver.Conn
	logger *slog.Logger

	mu   sync.Mutex
	rows []cycleRow

	batchSize int
	interval  time.Duration

	timer  *time.Timer
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewSink creates a sink writing through conn, and starts its
// background flush loop.
func NewSink(conn driver.Conn, cfg *ConnectionConfig, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Sink{
		conn:      conn,
		logger:    logger,
		batchSize: cfg.BatchSize,
		interval:  cfg.FlushInterval,
		stopCh:    make(chan struct{}),
	}
	s.timer = time.NewTimer(s.interval)
	s.wg.Add(1)
	go s.flushLoop()
	return s
}

// Record is the hook installed on clustering.Engine.OnCycle.
func (s *Sink) Record(tc int64, summary clustering.CycleSummary) {
	s.mu.Lock()
	s.rows = append(s.rows, cycleRow{
		tick:           tc,
		recordedAt:     time.Now(),
		gridsRefreshed: uint32(summary.GridsRefreshed),
		clustersLive:   uint32(summary.ClustersLive),
	})
	full := len(s.rows) >= s.batchSize
	s.mu.Unlock()

	if full {
		if err := s.flush(); err != nil {
			s.logger.Error("history: flush failed", "error", err)
		}
	}
}

func (s *Sink) flushLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.timer.C:
			if err := s.flush(); err != nil {
				s.logger.Error("history: periodic flush failed", "error", err)
			}
			s.timer.Reset(s.interval)
		case <-s.stopCh:
			return
		}
	}
}

func (s *Sink) flush() error {
	s.mu.Lock()
	rows := s.rows
	s.rows = nil
	s.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}

	ctx := context.Background()
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO cluster_cycles")
	if err != nil {
		return fmt.Errorf("history: preparing batch: %w", err)
	}
	for _, row := range rows {
		if err := batch.Append(row.tick, row.recordedAt, row.gridsRefreshed, row.clustersLive); err != nil {
			return fmt.Errorf("history: appending row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("history: sending batch: %w", err)
	}
	return nil
}

// Close flushes any remaining rows and stops the background loop.
func (s *Sink) Close(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		err = s.flush()
	})
	return err
}
