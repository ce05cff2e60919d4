// Package receiver implements the plain HTTP JSON record-ingestion
// endpoint the stream driver is fed through, grounded on the
// teacher's OTLP HTTP receiver's gzip handling and server lifecycle.
package receiver

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/fidde/dstream/internal/stream"
	"github.com/fidde/dstream/pkg/record"
)

// HTTPReceiver accepts batches of records over plain HTTP and ingests
// them into a stream driver one at a time.
type HTTPReceiver struct {
	driver *stream.Driver
	server *http.Server
}

// batchPayload is the wire format for a batch ingestion request: every
// record shares the same attribute schema (numeric, per index).
type batchPayload struct {
	Numeric []bool     `json:"numeric"`
	Records [][]string `json:"records"`
}

// NewHTTPReceiver creates an HTTP receiver listening on addr.
func NewHTTPReceiver(addr string, driver *stream.Driver) *HTTPReceiver {
	r := &HTTPReceiver{driver: driver}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/records", r.handleRecords)
	mux.HandleFunc("/health", r.handleHealth)

	r.server = &http.Server{Addr: addr, Handler: mux}
	return r
}

// Start starts the HTTP server.
func (r *HTTPReceiver) Start() error {
	return r.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (r *HTTPReceiver) Shutdown(ctx context.Context) error {
	return r.server.Shutdown(ctx)
}

func decompressGzip(rd io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(rd)
}

func (r *HTTPReceiver) handleRecords(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	reader := req.Body
	if req.Header.Get("Content-Encoding") == "gzip" {
		gz, err := decompressGzip(req.Body)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to decompress: %v", err), http.StatusBadRequest)
			return
		}
		defer gz.Close()
		reader = gz
	}

	var payload batchPayload
	if err := json.NewDecoder(reader).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("malformed batch payload: %v", err), http.StatusBadRequest)
		return
	}

	accepted := 0
	for _, raw := range payload.Records {
		if len(raw) != len(payload.Numeric) {
			http.Error(w, "record arity does not match declared schema", http.StatusBadRequest)
			return
		}
		v := record.NewVector(payload.Numeric)
		for i, field := range raw {
			if payload.Numeric[i] {
				var f float64
				if _, err := fmt.Sscanf(field, "%g", &f); err != nil {
					http.Error(w, fmt.Sprintf("non-numeric value %q at index %d", field, i), http.StatusBadRequest)
					return
				}
				v.SetNumeric(i, f)
			} else {
				v.SetNominal(i, field)
			}
		}
		if err := r.driver.Ingest(v); err != nil {
			log.Printf("ingest error: %v", err)
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		accepted++
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]int{"accepted": accepted})
}

func (r *HTTPReceiver) handleHealth(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
