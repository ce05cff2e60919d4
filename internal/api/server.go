// Package api provides the REST query surface over the stream driver:
// live clusters, grid diagnostics, and inclusion-probability lookups,
// built on the same chi router and middleware chain the teacher's
// metadata query API uses.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/fidde/dstream/internal/grid"
	"github.com/fidde/dstream/internal/stream"
	"github.com/fidde/dstream/pkg/record"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the REST API server over a running stream driver.
type Server struct {
	driver *stream.Driver
	router *chi.Mux
	server *http.Server
}

// PaginationParams contains pagination parameters parsed from the
// query string.
type PaginationParams struct {
	Limit  int
	Offset int
}

// PaginatedResponse wraps a paginated response with metadata.
type PaginatedResponse struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

// parsePaginationParams extracts pagination parameters from a request.
// Defaults: limit=100, offset=0, max limit=1000.
func parsePaginationParams(r *http.Request) PaginationParams {
	const (
		defaultLimit = 100
		maxLimit     = 1000
	)

	limit := defaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed > 0 {
			limit = parsed
			if limit > maxLimit {
				limit = maxLimit
			}
		}
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return PaginationParams{Limit: limit, Offset: offset}
}

// paginateSlice applies pagination to a slice.
func paginateSlice[T any](items []T, params PaginationParams) ([]T, PaginatedResponse) {
	total := len(items)
	start := params.Offset
	end := start + params.Limit

	if start >= total {
		return []T{}, PaginatedResponse{Data: []T{}, Total: total, Limit: params.Limit, Offset: params.Offset}
	}
	if end > total {
		end = total
	}

	page := items[start:end]
	return page, PaginatedResponse{
		Data:    page,
		Total:   total,
		Limit:   params.Limit,
		Offset:  params.Offset,
		HasMore: end < total,
	}
}

// NewServer creates a new API server over driver, listening on addr.
func NewServer(addr string, driver *stream.Driver) *Server {
	s := &Server{driver: driver, router: chi.NewRouter()}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/records", s.handleIngestRecord)
		r.Get("/clusters", s.listClusters)
		r.Get("/clusters/{label}", s.getCluster)
		r.Post("/inclusion", s.handleInclusion)
		r.Get("/grids", s.listGrids)
		r.Post("/admin/clear", s.clearAllData)
	})

	s.server = &http.Server{Addr: addr, Handler: s.router}
	return s
}

// Start starts the API server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"tick":   s.driver.Tick(),
	})
}

// clusterView is the wire representation of a live cluster.
type clusterView struct {
	Label   int            `json:"label"`
	Weight  int            `json:"weight"`
	Members []grid.GridKey `json:"members"`
}

func (s *Server) listClusters(w http.ResponseWriter, r *http.Request) {
	clusters := s.driver.Clusters()

	labels := make([]int, 0, len(clusters))
	for label := range clusters {
		labels = append(labels, label)
	}
	sort.Ints(labels)

	views := make([]clusterView, 0, len(labels))
	for _, label := range labels {
		members := clusters[label]
		views = append(views, clusterView{Label: label, Weight: len(members), Members: members})
	}

	params := parsePaginationParams(r)
	_, resp := paginateSlice(views, params)
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) getCluster(w http.ResponseWriter, r *http.Request) {
	label, err := strconv.Atoi(chi.URLParam(r, "label"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid cluster label")
		return
	}

	members, ok := s.driver.Clusters()[label]
	if !ok {
		s.respondError(w, http.StatusNotFound, "cluster not found")
		return
	}
	s.respondJSON(w, http.StatusOK, clusterView{Label: label, Weight: len(members), Members: members})
}

// recordPayload is the wire format accepted by /records and /inclusion.
type recordPayload struct {
	Numeric []bool   `json:"numeric"`
	Values  []string `json:"values"`
}

func (p recordPayload) toRecord() *record.Vector {
	v := record.NewVector(p.Numeric)
	for i, raw := range p.Values {
		if p.Numeric[i] {
			f, _ := strconv.ParseFloat(raw, 64)
			v.SetNumeric(i, f)
		} else {
			v.SetNominal(i, raw)
		}
	}
	return v
}

func (s *Server) handleIngestRecord(w http.ResponseWriter, r *http.Request) {
	var payload recordPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.respondError(w, http.StatusBadRequest, "malformed record payload")
		return
	}
	if len(payload.Numeric) != len(payload.Values) {
		s.respondError(w, http.StatusBadRequest, "numeric and values must have equal length")
		return
	}

	if err := s.driver.Ingest(payload.toRecord()); err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]int64{"tick": s.driver.Tick()})
}

type inclusionRequest struct {
	Record recordPayload `json:"record"`
	Label  int           `json:"label"`
}

func (s *Server) handleInclusion(w http.ResponseWriter, r *http.Request) {
	var req inclusionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "malformed inclusion request")
		return
	}

	p, err := s.driver.InclusionProbability(req.Record.toRecord(), req.Label)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]float64{"probability": p})
}

func (s *Server) listGrids(w http.ResponseWriter, r *http.Request) {
	grids := s.driver.Grids()
	sort.Slice(grids, func(i, j int) bool { return grids[i].Coord.Key() < grids[j].Coord.Key() })

	if r.URL.Query().Get("format") == "debug" {
		lines := make([]string, len(grids))
		for i, cv := range grids {
			lines[i] = cv.DebugString()
		}
		params := parsePaginationParams(r)
		_, resp := paginateSlice(lines, params)
		s.respondJSON(w, http.StatusOK, resp)
		return
	}

	params := parsePaginationParams(r)
	_, resp := paginateSlice(grids, params)
	s.respondJSON(w, http.StatusOK, resp)
}

// clearAllData resets the driver's engine state.
// POST /admin/clear
func (s *Server) clearAllData(w http.ResponseWriter, r *http.Request) {
	s.driver.Reset()
	s.respondJSON(w, http.StatusOK, map[string]string{
		"message": "All data cleared successfully",
	})
}
