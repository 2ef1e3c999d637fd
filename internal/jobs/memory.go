package jobs

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/fortuna/cricstats/internal/ingest"
)

// MemoryRepository keeps jobs in process. Used when no database is configured.
type MemoryRepository struct {
	mu   sync.Mutex
	jobs []*Job // creation order
	now  func() time.Time
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now}
}

func (r *MemoryRepository) find(jobID string) *Job {
	for _, j := range r.jobs {
		if j.JobID == jobID {
			return j
		}
	}
	return nil
}

// CreateJob stores a copy of job.
func (r *MemoryRepository) CreateJob(_ context.Context, job *Job) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := job.Copy()
	now := r.now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.jobs = append(r.jobs, stored)
	return stored.Copy(), nil
}

// UpdateStatus updates status, message and optional error.
func (r *MemoryRepository) UpdateStatus(_ context.Context, jobID string, status JobStatus, message string, lastErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j := r.find(jobID)
	if j == nil {
		return ErrJobNotFound
	}
	now := r.now()
	j.Status = status
	j.StatusMessage = sql.NullString{String: message, Valid: true}
	j.LastError = sql.NullString{}
	if lastErr != nil {
		j.LastError = sql.NullString{String: lastErr.Error(), Valid: true}
	}
	j.UpdatedAt = now
	if status.Done() {
		j.CompletedAt = sql.NullTime{Time: now, Valid: true}
	}
	return nil
}

// UpdateProgress updates the progress counters and message.
func (r *MemoryRepository) UpdateProgress(_ context.Context, jobID string, current, total int, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j := r.find(jobID)
	if j == nil {
		return ErrJobNotFound
	}
	j.ProgressCurrent = current
	j.ProgressTotal = total
	j.StatusMessage = sql.NullString{String: message, Valid: true}
	j.UpdatedAt = r.now()
	return nil
}

// SaveSummaries stores the per-scrape results of a job.
func (r *MemoryRepository) SaveSummaries(_ context.Context, jobID string, summaries []ingest.RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j := r.find(jobID)
	if j == nil {
		return ErrJobNotFound
	}
	j.Summaries = append([]ingest.RunSummary(nil), summaries...)
	j.UpdatedAt = r.now()
	return nil
}

// ResetStuckJobs moves running jobs back to queued.
func (r *MemoryRepository) ResetStuckJobs(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, j := range r.jobs {
		if j.Status == JobStatusRunning {
			j.Status = JobStatusQueued
			j.StatusMessage = sql.NullString{String: "Reset after service restart", Valid: true}
		}
	}
	return nil
}

// MarkNextJobRunning claims the oldest queued job.
func (r *MemoryRepository) MarkNextJobRunning(context.Context) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, j := range r.jobs {
		if j.Status != JobStatusQueued {
			continue
		}
		now := r.now()
		j.Status = JobStatusRunning
		j.StatusMessage = sql.NullString{String: "Starting job...", Valid: true}
		if !j.StartedAt.Valid {
			j.StartedAt = sql.NullTime{Time: now, Valid: true}
		}
		j.UpdatedAt = now
		return j.Copy(), nil
	}
	return nil, nil
}

// GetJob returns one job by id.
func (r *MemoryRepository) GetJob(_ context.Context, jobID string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j := r.find(jobID)
	if j == nil {
		return nil, ErrJobNotFound
	}
	return j.Copy(), nil
}

// GetActiveJob returns the currently running job, if any.
func (r *MemoryRepository) GetActiveJob(context.Context) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, j := range r.jobs {
		if j.Status == JobStatusRunning {
			return j.Copy(), nil
		}
	}
	return nil, nil
}

// ListRecentJobs returns the most recent jobs, newest first.
func (r *MemoryRepository) ListRecentJobs(_ context.Context, limit int) ([]*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Job
	for i := len(r.jobs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.jobs[i].Copy())
	}
	return out, nil
}
