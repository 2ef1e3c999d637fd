package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fortuna/cricstats/internal/ingest"
)

// Service coordinates job persistence, execution, and status reporting.
type Service struct {
	repo   Repository
	runner *Runner

	historyLimit int
	pollInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// NewService constructs a Service. Call Start to launch the worker.
func NewService(repo Repository, runner *Runner, logger *log.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	if logger == nil {
		logger = log.New(log.Writer(), "[jobs] ", log.LstdFlags)
	}

	return &Service{
		repo:         repo,
		runner:       runner,
		historyLimit: 10,
		pollInterval: 3 * time.Second,
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger,
	}
}

// Start launches the background worker loop.
func (s *Service) Start() {
	if err := s.repo.ResetStuckJobs(s.ctx); err != nil {
		s.logger.Printf("failed to reset jobs: %v", err)
	}

	s.wg.Add(1)
	go s.worker()
}

// Shutdown stops the worker and waits for it to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Enqueue creates a new job from the provided request.
func (s *Service) Enqueue(ctx context.Context, req Request) (*Job, error) {
	if req.Kind == "" {
		req.Kind = string(ingest.KindAll)
	}

	kind, err := ingest.ParseKind(req.Kind)
	if err != nil {
		return nil, err
	}

	job := &Job{
		JobID:         uuid.NewString(),
		Kind:          kind,
		Resume:        req.Resume,
		Status:        JobStatusQueued,
		StatusMessage: sql.NullString{String: "Queued", Valid: true},
		ProgressTotal: len(kind.Expand()),
	}

	stored, err := s.repo.CreateJob(ctx, job)
	if err != nil {
		return nil, err
	}

	s.logger.Printf("queued job %s (%s)", stored.JobID, stored.Kind)
	return stored, nil
}

// Get returns one job.
func (s *Service) Get(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.GetJob(ctx, jobID)
}

// GetStatus returns the currently running job plus recent history.
func (s *Service) GetStatus(ctx context.Context) (*StatusSummary, error) {
	active, err := s.repo.GetActiveJob(ctx)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ListRecentJobs(ctx, s.historyLimit)
	if err != nil {
		return nil, err
	}

	return &StatusSummary{
		ActiveJob: active,
		History:   history,
	}, nil
}

func (s *Service) worker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		job, err := s.repo.MarkNextJobRunning(s.ctx)
		if err != nil {
			s.logger.Printf("claim job error: %v", err)
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				continue
			}
		}

		s.executeJob(job)
	}
}

func (s *Service) executeJob(job *Job) {
	reporter := &jobReporter{
		ctx:    s.ctx,
		repo:   s.repo,
		jobID:  job.JobID,
		total:  len(job.Kind.Expand()),
		logger: s.logger,
	}

	summaries, err := s.runner.Run(s.ctx, job, reporter)
	if saveErr := s.repo.SaveSummaries(s.ctx, job.JobID, summaries); saveErr != nil {
		s.logger.Printf("⚠️  save summaries of job %s: %v", job.JobID, saveErr)
	}

	if s.ctx.Err() != nil {
		// Shutdown interrupted the job; ResetStuckJobs requeues it on restart.
		s.logger.Printf("job %s interrupted by shutdown", job.JobID)
		return
	}

	if err != nil {
		s.logger.Printf("❌ job %s failed: %v", job.JobID, err)
		_ = s.repo.UpdateStatus(s.ctx, job.JobID, JobStatusFailed, "Job failed", err)
		return
	}

	s.logger.Printf("✓ job %s completed", job.JobID)
	_ = s.repo.UpdateStatus(s.ctx, job.JobID, JobStatusCompleted, "Job completed", nil)
}

type jobReporter struct {
	ctx    context.Context
	repo   Repository
	jobID  string
	total  int
	logger *log.Logger
}

func (r *jobReporter) OnJobStart(job *Job) {
	_ = r.repo.UpdateProgress(r.ctx, r.jobID, 0, r.total, "Job starting")
}

func (r *jobReporter) OnScrapeStart(kind ingest.Kind, index int, total int) {
	msg := fmt.Sprintf("Scraping %s (%d/%d)", kind, index+1, total)
	_ = r.repo.UpdateProgress(r.ctx, r.jobID, index, total, msg)
}

func (r *jobReporter) OnScrapeComplete(summary ingest.RunSummary, index int, total int) {
	msg := fmt.Sprintf("%s: %d records", summary.Kind, summary.Records)
	_ = r.repo.UpdateProgress(r.ctx, r.jobID, index+1, total, msg)
}

func (r *jobReporter) OnJobComplete() {
	_ = r.repo.UpdateProgress(r.ctx, r.jobID, r.total, r.total, "Job complete")
}

func (r *jobReporter) OnJobError(err error) {
	r.logger.Printf("⚠️  job %s: %v", r.jobID, err)
}
