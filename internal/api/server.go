// Package api serves the engine's read-only views: machine statuses, the
// maintenance priority list, threshold sets and individual reports. Every
// route requires an explicit tenant; there is no cross-tenant view.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/mineoil-data/fleet.report/internal/oil"
	"github.com/mineoil-data/fleet.report/internal/store"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db *store.DB
}

func NewServer(db *store.DB) *Server {
	return &Server{db: db}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/machines", s.listMachines)
	mux.HandleFunc("/api/priority", s.listPriority)
	mux.HandleFunc("/api/thresholds", s.listThresholds)
	mux.HandleFunc("/api/report", s.showReport)
	mux.HandleFunc("/fleet", s.fleetHealthChart)
	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: failed to encode response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// tenantParam extracts the mandatory tenant query parameter.
func (s *Server) tenantParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenant := r.URL.Query().Get("tenant")
	if tenant == "" {
		s.writeJSONError(w, http.StatusBadRequest, "tenant parameter is required")
		return "", false
	}
	return tenant, true
}

func (s *Server) listMachines(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	tenant, ok := s.tenantParam(w, r)
	if !ok {
		return
	}

	statuses, err := s.db.MachineStatusesByTenant(r.Context(), tenant)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "failed to load machine statuses")
		log.Printf("api: machine statuses for %s: %v", tenant, err)
		return
	}
	s.writeJSON(w, statuses)
}

// listPriority returns the machines requiring attention: non-Normal only,
// ordered worst-first, optionally truncated by a limit parameter. The store
// already orders by numeric status then recency.
func (s *Server) listPriority(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	tenant, ok := s.tenantParam(w, r)
	if !ok {
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = v
	}

	statuses, err := s.db.MachineStatusesByTenant(r.Context(), tenant)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "failed to load machine statuses")
		log.Printf("api: priority list for %s: %v", tenant, err)
		return
	}
	priority := make([]oil.MachineStatus, 0, len(statuses))
	for _, ms := range statuses {
		if ms.Status == oil.StatusNormal {
			continue
		}
		priority = append(priority, ms)
	}
	if limit > 0 && len(priority) > limit {
		priority = priority[:limit]
	}
	s.writeJSON(w, priority)
}

func (s *Server) listThresholds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	tenant, ok := s.tenantParam(w, r)
	if !ok {
		return
	}

	sets, err := s.db.ThresholdsByTenant(r.Context(), tenant)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "failed to load thresholds")
		log.Printf("api: thresholds for %s: %v", tenant, err)
		return
	}
	s.writeJSON(w, sets)
}

func (s *Server) showReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	tenant, ok := s.tenantParam(w, r)
	if !ok {
		return
	}
	sampleID := r.URL.Query().Get("sample_id")
	if sampleID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "sample_id parameter is required")
		return
	}

	report, err := s.db.ReportBySample(r.Context(), tenant, sampleID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeJSONError(w, http.StatusNotFound, "no report for sample")
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "failed to load report")
		log.Printf("api: report %s for %s: %v", sampleID, tenant, err)
		return
	}
	s.writeJSON(w, report)
}
