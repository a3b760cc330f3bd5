// Package http exposes the finance engine as a thin JSON API. Request
// validation, session handling and UI rendering live outside this service;
// the authenticated owner id arrives in the X-Owner-ID header installed by
// the auth layer in front.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"bilancio/internal/middleware/trace"
	"bilancio/internal/services"
)

type Server struct {
	http.Server

	finance *services.FinanceService
	trace   *trace.Middleware

	shutdownOnce sync.Once
}

func NewServer(addr string, finance *services.FinanceService) *Server {
	s := &Server{finance: finance, trace: trace.NewMiddleware()}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/items", s.handleCreateItem)
	mux.HandleFunc("GET /api/months/{month}/items", s.handleListItems)
	mux.HandleFunc("GET /api/months/{month}/summary", s.handleSummary)
	mux.HandleFunc("PATCH /api/items/{id}", s.handleUpdateItem)
	mux.HandleFunc("DELETE /api/items/{id}", s.handleRemoveItem)

	mux.HandleFunc("POST /api/debts", s.handleCreateDebt)
	mux.HandleFunc("GET /api/debts", s.handleListDebts)
	mux.HandleFunc("POST /api/debts/{id}/pay", s.handlePayInstallment)
	mux.HandleFunc("POST /api/debts/{id}/negotiate", s.handleNegotiateDebt)

	s.Server = http.Server{
		Addr:    addr,
		Handler: s.trace.Middleware(mux),
	}
	return s
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleMetrics exposes the request counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m := s.trace.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", m.TotalRequests)

	fmt.Fprintf(w, "# HELP http_request_duration_avg_microseconds Average request duration\n")
	fmt.Fprintf(w, "# TYPE http_request_duration_avg_microseconds gauge\n")
	fmt.Fprintf(w, "http_request_duration_avg_microseconds %d\n", m.AverageResponseTime)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
