package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fortuna/cricstats/internal/ingest"
	"github.com/fortuna/cricstats/internal/store"
)

// ErrJobNotFound is returned when a job id is unknown
var ErrJobNotFound = errors.New("job not found")

// Repository persists jobs.
type Repository interface {
	CreateJob(ctx context.Context, job *Job) (*Job, error)
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, message string, lastErr error) error
	UpdateProgress(ctx context.Context, jobID string, current, total int, message string) error
	SaveSummaries(ctx context.Context, jobID string, summaries []ingest.RunSummary) error
	ResetStuckJobs(ctx context.Context) error
	MarkNextJobRunning(ctx context.Context) (*Job, error)
	GetJob(ctx context.Context, jobID string) (*Job, error)
	GetActiveJob(ctx context.Context) (*Job, error)
	ListRecentJobs(ctx context.Context, limit int) ([]*Job, error)
}

const jobColumns = `job_id, kind, resume, status, status_message, progress_current, progress_total,
	last_error, summaries, created_at, updated_at, started_at, completed_at`

// PostgresRepository stores jobs in the scrape_jobs table.
type PostgresRepository struct {
	db *store.Database
}

// NewPostgresRepository constructs a PostgresRepository.
func NewPostgresRepository(db *store.Database) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateJob inserts a new job row and returns the stored record.
func (r *PostgresRepository) CreateJob(ctx context.Context, job *Job) (*Job, error) {
	query := `
		INSERT INTO scrape_jobs (job_id, kind, resume, status, status_message, progress_current, progress_total)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING ` + jobColumns

	row := r.db.DB().QueryRowContext(ctx, query,
		job.JobID, string(job.Kind), job.Resume, string(job.Status), job.StatusMessage,
		job.ProgressCurrent, job.ProgressTotal,
	)

	return scanJob(row)
}

// UpdateStatus updates status, message and optional error.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, jobID string, status JobStatus, message string, lastErr error) error {
	query := `
		UPDATE scrape_jobs
		SET status = $2::varchar,
			status_message = $3,
			last_error = $4,
			updated_at = NOW(),
			completed_at = CASE WHEN $2::varchar IN ('completed','failed','cancelled') THEN NOW() ELSE completed_at END
		WHERE job_id = $1
	`

	var errText sql.NullString
	if lastErr != nil {
		errText = sql.NullString{String: lastErr.Error(), Valid: true}
	}

	if _, err := r.db.DB().ExecContext(ctx, query, jobID, string(status), message, errText); err != nil {
		return fmt.Errorf("update job status: %w", err)
	}

	return nil
}

// UpdateProgress updates the progress counters and message.
func (r *PostgresRepository) UpdateProgress(ctx context.Context, jobID string, current, total int, message string) error {
	query := `
		UPDATE scrape_jobs
		SET progress_current = $2,
			progress_total = $3,
			status_message = $4,
			updated_at = NOW()
		WHERE job_id = $1
	`

	if _, err := r.db.DB().ExecContext(ctx, query, jobID, current, total, message); err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}

	return nil
}

// SaveSummaries stores the per-scrape results of a job.
func (r *PostgresRepository) SaveSummaries(ctx context.Context, jobID string, summaries []ingest.RunSummary) error {
	data, err := json.Marshal(summaries)
	if err != nil {
		return fmt.Errorf("encode summaries: %w", err)
	}

	query := `UPDATE scrape_jobs SET summaries = $2, updated_at = NOW() WHERE job_id = $1`
	if _, err := r.db.DB().ExecContext(ctx, query, jobID, data); err != nil {
		return fmt.Errorf("save job summaries: %w", err)
	}
	return nil
}

// ResetStuckJobs moves running jobs back to queued (used during service restarts).
func (r *PostgresRepository) ResetStuckJobs(ctx context.Context) error {
	_, err := r.db.DB().ExecContext(ctx, `
		UPDATE scrape_jobs
		SET status = 'queued',
			status_message = 'Reset after service restart',
			updated_at = NOW()
		WHERE status = 'running'
	`)
	if err != nil {
		return fmt.Errorf("reset stuck jobs: %w", err)
	}
	return nil
}

// MarkNextJobRunning atomically claims the next queued job.
func (r *PostgresRepository) MarkNextJobRunning(ctx context.Context) (*Job, error) {
	query := `
		WITH next_job AS (
			SELECT job_id
			FROM scrape_jobs
			WHERE status = 'queued'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE scrape_jobs
		SET status = 'running',
			status_message = 'Starting job...',
			started_at = COALESCE(started_at, NOW()),
			updated_at = NOW()
		FROM next_job
		WHERE scrape_jobs.job_id = next_job.job_id
		RETURNING scrape_jobs.job_id, scrape_jobs.kind, scrape_jobs.resume, scrape_jobs.status,
			scrape_jobs.status_message, scrape_jobs.progress_current, scrape_jobs.progress_total,
			scrape_jobs.last_error, scrape_jobs.summaries, scrape_jobs.created_at,
			scrape_jobs.updated_at, scrape_jobs.started_at, scrape_jobs.completed_at
	`

	row := r.db.DB().QueryRowContext(ctx, query)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob returns one job by id.
func (r *PostgresRepository) GetJob(ctx context.Context, jobID string) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM scrape_jobs WHERE job_id = $1`

	job, err := scanJob(r.db.DB().QueryRowContext(ctx, query, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// GetActiveJob returns the currently running job, if any.
func (r *PostgresRepository) GetActiveJob(ctx context.Context) (*Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM scrape_jobs
		WHERE status = 'running'
		ORDER BY started_at DESC
		LIMIT 1
	`

	job, err := scanJob(r.db.DB().QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active job: %w", err)
	}
	return job, nil
}

// ListRecentJobs returns the most recent jobs, newest first.
func (r *PostgresRepository) ListRecentJobs(ctx context.Context, limit int) ([]*Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM scrape_jobs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.DB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

func scanJob(scanner interface {
	Scan(dest ...interface{}) error
}) (*Job, error) {
	job := &Job{}
	var (
		kind, status string
		summaries    []byte
	)
	err := scanner.Scan(
		&job.JobID,
		&kind,
		&job.Resume,
		&status,
		&job.StatusMessage,
		&job.ProgressCurrent,
		&job.ProgressTotal,
		&job.LastError,
		&summaries,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Kind = ingest.Kind(kind)
	job.Status = JobStatus(status)
	if len(summaries) > 0 {
		if err := json.Unmarshal(summaries, &job.Summaries); err != nil {
			return nil, fmt.Errorf("decode summaries of job %s: %w", job.JobID, err)
		}
	}
	return job, nil
}
