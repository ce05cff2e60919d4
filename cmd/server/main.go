// Package main is the entry point for the D-Stream clustering engine.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fidde/dstream/internal/api"
	"github.com/fidde/dstream/internal/config"
	"github.com/fidde/dstream/internal/density"
	"github.com/fidde/dstream/internal/eventlog"
	"github.com/fidde/dstream/internal/grid"
	"github.com/fidde/dstream/internal/history"
	"github.com/fidde/dstream/internal/receiver"
	"github.com/fidde/dstream/internal/stream"
)

func main() {
	log.Println("Starting D-Stream clustering engine...")

	cfg, err := config.LoadOrDefault(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	driver := stream.New(density.Params{
		Lambda:    cfg.DecayFactor,
		Cm:        cfg.Cm,
		Cl:        cfg.Cl,
		Beta:      cfg.Beta,
		PinnedGap: cfg.TimeGap,
	})

	closers := make([]func(context.Context) error, 0, 2)

	if cfg.HistoryBackend == "clickhouse" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		conn, err := history.Connect(ctx, history.DefaultConfig())
		cancel()
		if err != nil {
			log.Fatalf("history: %v", err)
		}
		if err := history.InitializeSchema(context.Background(), conn); err != nil {
			log.Fatalf("history: %v", err)
		}
		sink := history.NewSink(conn, history.DefaultConfig(), slog.Default())
		driver.OnCycle(sink.Record)
		closers = append(closers, sink.Close)
		log.Println("History sink enabled (ClickHouse)")
	}

	if cfg.EventLogPath != "" {
		evLog, err := eventlog.New(eventlog.DefaultConfig(cfg.EventLogPath))
		if err != nil {
			log.Fatalf("eventlog: %v", err)
		}
		driver.OnEvict(func(coord grid.Coordinate, tc int64) {
			evLog.Record(driver.RunID(), coord, tc)
		})
		closers = append(closers, evLog.Close)
		log.Printf("Event log enabled (%s)", cfg.EventLogPath)
	}

	httpReceiver := receiver.NewHTTPReceiver(cfg.ListenAddr, driver)
	apiServer := api.NewServer(cfg.APIAddr, driver)

	pprofAddr := getEnv("PPROF_ADDR", "localhost:6060")
	go func() {
		log.Printf("Starting pprof server on http://%s/debug/pprof", pprofAddr)
		if err := http.ListenAndServe(pprofAddr, nil); err != nil {
			log.Printf("pprof server error: %v", err)
		}
	}()

	errChan := make(chan error, 2)

	go func() {
		log.Printf("Starting record receiver on %s", cfg.ListenAddr)
		if err := httpReceiver.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("record receiver error: %w", err)
		}
	}()

	go func() {
		log.Printf("Starting REST API server on %s", cfg.APIAddr)
		if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	time.Sleep(100 * time.Millisecond)
	log.Println("All servers started successfully")
	log.Printf("  - Records: http://%s/v1/records", cfg.ListenAddr)
	log.Printf("  - Clusters: http://%s/api/v1/clusters", cfg.APIAddr)
	log.Printf("  - Grids: http://%s/api/v1/grids", cfg.APIAddr)
	log.Printf("  - Health: http://%s/api/v1/health", cfg.APIAddr)
	log.Printf("  - pprof: http://%s/debug/pprof", pprofAddr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	case sig := <-sigChan:
		log.Printf("Received signal: %v, shutting down...", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Println("Shutting down servers...")
	if err := httpReceiver.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down record receiver: %v", err)
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down API server: %v", err)
	}
	for _, closeFn := range closers {
		if err := closeFn(shutdownCtx); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}

	log.Println("Shutdown complete")
}

// getEnv gets an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
