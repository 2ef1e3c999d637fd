package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fortuna/cricstats/internal/jobs"
)

// JobService is the part of the job queue the API needs
type JobService interface {
	Enqueue(ctx context.Context, req jobs.Request) (*jobs.Job, error)
	Get(ctx context.Context, jobID string) (*jobs.Job, error)
	GetStatus(ctx context.Context) (*jobs.StatusSummary, error)
}

// JobHandler proxies API calls to the job service.
type JobHandler struct {
	service JobService
}

// NewJobHandler wires the REST layer to the job service.
func NewJobHandler(service JobService) *JobHandler {
	return &JobHandler{service: service}
}

type apiJobRequest struct {
	Kind   string `json:"kind"`
	Resume bool   `json:"resume"`
}

func (h *JobHandler) available(w http.ResponseWriter) bool {
	if h.service == nil {
		respondError(w, http.StatusServiceUnavailable, "Job queue is not configured", nil)
		return false
	}
	return true
}

// HandleJobRequest handles POST /api/v1/jobs
func (h *JobHandler) HandleJobRequest(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	var req apiJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	job, err := h.service.Enqueue(r.Context(), jobs.Request{Kind: req.Kind, Resume: req.Resume})
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to enqueue scrape job", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job": jobPayload(job),
	})
}

// HandleJobStatus handles GET /api/v1/jobs/status
func (h *JobHandler) HandleJobStatus(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	summary, err := h.service.GetStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch status", err)
		return
	}

	respondJSON(w, http.StatusOK, buildStatusPayload(summary))
}

// HandleGetJob handles GET /api/v1/jobs/{jobID}
func (h *JobHandler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}

	job, err := h.service.Get(r.Context(), mux.Vars(r)["jobID"])
	if errors.Is(err, jobs.ErrJobNotFound) {
		respondError(w, http.StatusNotFound, "Job not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch job", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"job": jobPayload(job),
	})
}

func buildStatusPayload(summary *jobs.StatusSummary) map[string]interface{} {
	response := map[string]interface{}{
		"status":  "idle",
		"message": "No active jobs",
		"history": []map[string]interface{}{},
	}

	if summary.ActiveJob != nil {
		response["status"] = summary.ActiveJob.Status
		if summary.ActiveJob.StatusMessage.Valid {
			response["message"] = summary.ActiveJob.StatusMessage.String
		}
		response["active_job"] = jobPayload(summary.ActiveJob)
	}

	history := make([]map[string]interface{}, 0, len(summary.History))
	for _, job := range summary.History {
		history = append(history, jobPayload(job))
	}

	response["history"] = history
	return response
}

func jobPayload(job *jobs.Job) map[string]interface{} {
	if job == nil {
		return nil
	}

	payload := map[string]interface{}{
		"job_id":           job.JobID,
		"kind":             job.Kind,
		"resume":           job.Resume,
		"status":           job.Status,
		"progress_current": job.ProgressCurrent,
		"progress_total":   job.ProgressTotal,
		"created_at":       job.CreatedAt,
		"updated_at":       job.UpdatedAt,
	}

	if job.StatusMessage.Valid {
		payload["status_message"] = job.StatusMessage.String
	}
	if len(job.Summaries) > 0 {
		payload["summaries"] = job.Summaries
	}
	if job.StartedAt.Valid {
		payload["started_at"] = job.StartedAt.Time
	}
	if job.CompletedAt.Valid {
		payload["completed_at"] = job.CompletedAt.Time
	}
	if job.LastError.Valid {
		payload["last_error"] = job.LastError.String
	}

	return payload
}
