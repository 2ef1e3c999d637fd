package jobs

import (
	"database/sql"
	"time"

	"github.com/fortuna/cricstats/internal/ingest"
)

// JobStatus represents the lifecycle state for a job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Done reports whether the status is terminal
func (s JobStatus) Done() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is one queued scrape.
type Job struct {
	JobID           string
	Kind            ingest.Kind
	Resume          bool
	Status          JobStatus
	StatusMessage   sql.NullString
	ProgressCurrent int
	ProgressTotal   int
	LastError       sql.NullString
	Summaries       []ingest.RunSummary
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       sql.NullTime
	CompletedAt     sql.NullTime
}

// Copy returns a copy to prevent external mutation.
func (j *Job) Copy() *Job {
	if j == nil {
		return nil
	}
	cpy := *j
	cpy.Summaries = append([]ingest.RunSummary(nil), j.Summaries...)
	return &cpy
}

// Request asks for a scrape to be queued.
type Request struct {
	Kind   string
	Resume bool
}

// Reporter receives lifecycle callbacks from the runner.
type Reporter interface {
	OnJobStart(job *Job)
	OnScrapeStart(kind ingest.Kind, index int, total int)
	OnScrapeComplete(summary ingest.RunSummary, index int, total int)
	OnJobComplete()
	OnJobError(err error)
}

// StatusSummary is returned to API callers.
type StatusSummary struct {
	ActiveJob *Job   `json:"active_job,omitempty"`
	History   []*Job `json:"recent_jobs,omitempty"`
}
