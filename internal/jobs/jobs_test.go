package jobs

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/cricstats/internal/ingest"
)

type recordingReporter struct {
	mu       sync.Mutex
	started  []ingest.Kind
	errs     []error
	complete bool
}

func (r *recordingReporter) OnJobStart(*Job) {}

func (r *recordingReporter) OnScrapeStart(kind ingest.Kind, _, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, kind)
}

func (r *recordingReporter) OnScrapeComplete(ingest.RunSummary, int, int) {}

func (r *recordingReporter) OnJobComplete() { r.complete = true }

func (r *recordingReporter) OnJobError(err error) { r.errs = append(r.errs, err) }

func fakeScraper(fail map[ingest.Kind]error) ScraperFunc {
	return func(_ context.Context, kind ingest.Kind, _ bool) (ingest.RunSummary, error) {
		if err := fail[kind]; err != nil {
			return ingest.RunSummary{Kind: kind, Error: err.Error()}, err
		}
		return ingest.RunSummary{Kind: kind, Records: 10}, nil
	}
}

func TestRunnerRunsEveryKindOfAll(t *testing.T) {
	rep := &recordingReporter{}
	job := &Job{JobID: "a", Kind: ingest.KindAll}

	summaries, err := NewRunner(fakeScraper(nil)).Run(context.Background(), job, rep)
	require.NoError(t, err)
	assert.Len(t, summaries, 4)
	assert.Equal(t, ingest.Kinds(), rep.started)
	assert.True(t, rep.complete)
}

func TestRunnerContinuesAfterFailedScrape(t *testing.T) {
	rep := &recordingReporter{}
	boom := errors.New("listing never loaded")
	job := &Job{JobID: "a", Kind: ingest.KindAll}

	summaries, err := NewRunner(fakeScraper(map[ingest.Kind]error{ingest.KindBowling: boom})).Run(context.Background(), job, rep)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, summaries, 4)
	assert.Len(t, rep.errs, 1)
	assert.False(t, rep.complete)
}

func TestRunnerPassesResume(t *testing.T) {
	var got bool
	scraper := ScraperFunc(func(_ context.Context, kind ingest.Kind, resume bool) (ingest.RunSummary, error) {
		got = resume
		return ingest.RunSummary{Kind: kind}, nil
	})

	_, err := NewRunner(scraper).Run(context.Background(), &Job{Kind: ingest.KindRoster, Resume: true}, nil)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEnqueueValidatesKind(t *testing.T) {
	svc := NewService(NewMemoryRepository(), NewRunner(fakeScraper(nil)), log.New(io.Discard, "", 0))

	_, err := svc.Enqueue(context.Background(), Request{Kind: "fixtures"})
	require.Error(t, err)

	job, err := svc.Enqueue(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, ingest.KindAll, job.Kind)
	assert.Equal(t, JobStatusQueued, job.Status)
	assert.Equal(t, 4, job.ProgressTotal)
	assert.Len(t, job.JobID, 36)
}

func waitForStatus(t *testing.T, svc *Service, jobID string, want JobStatus) *Job {
	t.Helper()
	var job *Job
	require.Eventually(t, func() bool {
		var err error
		job, err = svc.Get(context.Background(), jobID)
		return err == nil && job.Status == want
	}, 2*time.Second, 10*time.Millisecond)
	return job
}

func TestServiceCompletesQueuedJob(t *testing.T) {
	svc := NewService(NewMemoryRepository(), NewRunner(fakeScraper(nil)), log.New(io.Discard, "", 0))
	svc.pollInterval = 10 * time.Millisecond
	svc.Start()
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	queued, err := svc.Enqueue(context.Background(), Request{Kind: "summary"})
	require.NoError(t, err)

	job := waitForStatus(t, svc, queued.JobID, JobStatusCompleted)
	assert.Equal(t, 1, job.ProgressCurrent)
	assert.Equal(t, 1, job.ProgressTotal)
	require.Len(t, job.Summaries, 1)
	assert.Equal(t, 10, job.Summaries[0].Records)
	assert.True(t, job.CompletedAt.Valid)
	assert.False(t, job.LastError.Valid)

	status, err := svc.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Nil(t, status.ActiveJob)
	require.Len(t, status.History, 1)
}

func TestServiceRecordsFailure(t *testing.T) {
	boom := errors.New("squads page timed out")
	svc := NewService(NewMemoryRepository(), NewRunner(fakeScraper(map[ingest.Kind]error{ingest.KindRoster: boom})), log.New(io.Discard, "", 0))
	svc.pollInterval = 10 * time.Millisecond
	svc.Start()
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	queued, err := svc.Enqueue(context.Background(), Request{Kind: "roster"})
	require.NoError(t, err)

	job := waitForStatus(t, svc, queued.JobID, JobStatusFailed)
	require.True(t, job.LastError.Valid)
	assert.Contains(t, job.LastError.String, "squads page timed out")
	require.Len(t, job.Summaries, 1)
	assert.Equal(t, "squads page timed out", job.Summaries[0].Error)
}

func TestMemoryRepositoryResetsStuckJobs(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	_, err := repo.CreateJob(ctx, &Job{JobID: "1", Kind: ingest.KindBatting, Status: JobStatusQueued})
	require.NoError(t, err)
	_, err = repo.CreateJob(ctx, &Job{JobID: "2", Kind: ingest.KindBowling, Status: JobStatusQueued})
	require.NoError(t, err)

	claimed, err := repo.MarkNextJobRunning(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", claimed.JobID)

	active, err := repo.GetActiveJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", active.JobID)

	require.NoError(t, repo.ResetStuckJobs(ctx))
	active, err = repo.GetActiveJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	recent, err := repo.ListRecentJobs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "2", recent[0].JobID)

	_, err = repo.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}
