//go:build integration

package history

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/fidde/dstream/internal/clustering"
)

// TestClickHouseIntegration exercises Connect/InitializeSchema/Sink
// against a real ClickHouse instance.
// Run with: go test -tags=integration ./internal/history -v
func TestClickHouseIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := DefaultConfig()
	conn, err := Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := InitializeSchema(ctx, conn); err != nil {
		t.Fatalf("InitializeSchema() error = %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	sink := NewSink(conn, cfg, logger)
	sink.Record(1, clustering.CycleSummary{GridsRefreshed: 5, ClustersLive: 2})

	if err := sink.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}
