//-------------------------------------------------------------------------
//
// salespipe - CSV sales ingestion for PostgreSQL
//
// Copyright (c) 2025 - 2026, the salespipe authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package report serves read-only aggregate views over the committed sales
// star schema. It issues plain SQL projections; no ingestion state is shared
// and no locks are held across a request.
package report

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/salespipe/salespipe/internal/db"
	"github.com/salespipe/salespipe/internal/logging"
)

// Server exposes the reporting API over a connection pool.
type Server struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewServer creates a reporting server on the given pool.
func NewServer(pool *pgxpool.Pool) *Server {
	return &Server{
		pool: pool,
		log:  logging.Component("report"),
	}
}

// Handler returns the HTTP handler with CORS applied.
func (s *Server) Handler(corsOrigins []string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sales/product", s.handleProductSales)
	mux.HandleFunc("GET /sales/product/totals", s.handleProductTotals)
	mux.HandleFunc("GET /sales/day", s.handleSalesByDay)
	mux.HandleFunc("GET /ingest/runs", s.handleIngestRuns)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	c := cors.New(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
	})
	return c.Handler(mux)
}

func (s *Server) handleProductSales(w http.ResponseWriter, r *http.Request) {
	results, err := ProductCategorySales(r.Context(), s.pool, r.URL.Query().Get("product"))
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.writeJSON(w, results)
}

func (s *Server) handleProductTotals(w http.ResponseWriter, r *http.Request) {
	results, err := ProductTotals(r.Context(), s.pool)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.writeJSON(w, results)
}

func (s *Server) handleSalesByDay(w http.ResponseWriter, r *http.Request) {
	var filter DayFilter
	var err error

	q := r.URL.Query()
	if filter.Date, err = parseDateParam(q.Get("date")); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if filter.StartDate, err = parseDateParam(q.Get("start_date")); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if filter.EndDate, err = parseDateParam(q.Get("end_date")); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	results, err := SalesByDay(r.Context(), s.pool, filter)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.writeJSON(w, results)
}

// runSummary is the wire shape of one audit row.
type runSummary struct {
	ID           int64     `json:"id"`
	File         string    `json:"file"`
	RowsRead     int       `json:"rows_read"`
	RowsRejected int       `json:"rows_rejected"`
	RowsUpserted int       `json:"rows_upserted"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

func (s *Server) handleIngestRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := db.RecentRuns(r.Context(), s.pool, 50)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	results := make([]runSummary, 0, len(runs))
	for _, run := range runs {
		results = append(results, runSummary{
			ID:           run.ID,
			File:         run.File,
			RowsRead:     run.RowsRead,
			RowsRejected: run.RowsRejected,
			RowsUpserted: run.RowsUpserted,
			StartedAt:    run.StartedAt,
			FinishedAt:   run.FinishedAt,
		})
	}
	s.writeJSON(w, results)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.pool.Ping(r.Context()); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error().Err(err).Str("path", r.URL.Path).Msg("Query failed")
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func parseDateParam(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", v)
	}
	return &t, nil
}
