package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/fortuna/cricstats/internal/records"
)

// RecordStore reads stored records back out
type RecordStore interface {
	List(ctx context.Context, schema records.Schema, limit, offset int) ([]map[string]string, error)
	Count(ctx context.Context, schema records.Schema) (int, error)
}

// HealthChecker is anything that can report whether a backend is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	records RecordStore
	checks  map[string]HealthChecker
}

// NewHandler creates a new handler
func NewHandler(records RecordStore, checks map[string]HealthChecker) *Handler {
	return &Handler{records: records, checks: checks}
}

// HealthCheck reports the service and each configured backend
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	backends := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check.HealthCheck(r.Context()); err != nil {
			backends[name] = err.Error()
			status = "degraded"
			continue
		}
		backends[name] = "ok"
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, code, map[string]interface{}{
		"status":   status,
		"service":  "cricstats",
		"backends": backends,
	})
}

// GetSchemas lists the record schemas and their columns
func (h *Handler) GetSchemas(w http.ResponseWriter, r *http.Request) {
	out := make([]map[string]interface{}, 0, len(records.Schemas()))
	for _, s := range records.Schemas() {
		out = append(out, map[string]interface{}{
			"name":    s.Name,
			"file":    s.File,
			"table":   s.Table,
			"columns": s.Columns,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// GetRecords pages through the stored rows of one schema
func (h *Handler) GetRecords(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["schema"]
	schema, ok := records.SchemaByName(name)
	if !ok {
		respondError(w, http.StatusNotFound, "Unknown schema "+strconv.Quote(name), nil)
		return
	}

	if h.records == nil {
		respondError(w, http.StatusServiceUnavailable, "Record storage is not configured", nil)
		return
	}

	limit := 50 // default
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 || l > 500 {
			respondError(w, http.StatusBadRequest, "Invalid limit (1-500)", err)
			return
		}
		limit = l
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		o, err := strconv.Atoi(offsetStr)
		if err != nil || o < 0 {
			respondError(w, http.StatusBadRequest, "Invalid offset", err)
			return
		}
		offset = o
	}

	rows, err := h.records.List(r.Context(), schema, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch records", err)
		return
	}

	total, err := h.records.Count(r.Context(), schema)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to count records", err)
		return
	}

	if rows == nil {
		rows = []map[string]string{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"schema":  schema.Name,
		"columns": schema.Columns,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
		"records": rows,
	})
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	json.NewEncoder(w).Encode(response)
}
