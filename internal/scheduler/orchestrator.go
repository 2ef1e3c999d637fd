package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/fortuna/cricstats/internal/ingest"
	"github.com/fortuna/cricstats/internal/jobs"
)

// Enqueuer accepts scrape jobs
type Enqueuer interface {
	Enqueue(ctx context.Context, req jobs.Request) (*jobs.Job, error)
}

// Orchestrator queues scrapes on a schedule
type Orchestrator struct {
	queue  Enqueuer
	config *Config
	logger *log.Logger
	now    func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config holds scheduler configuration
type Config struct {
	EnableDaily  bool        // Default: false
	DailyHour    int         // Default: 3 (3 AM local)
	DailyKind    ingest.Kind // Default: all
	DailyResume  bool        // skip items already stored by an earlier run
	EnablePoll   bool        // Default: false
	PollInterval time.Duration
	PollKind     ingest.Kind // Default: summary
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() *Config {
	return &Config{
		DailyHour:    3,
		DailyKind:    ingest.KindAll,
		PollInterval: 15 * time.Minute,
		PollKind:     ingest.KindSummary,
	}
}

// NewOrchestrator creates a new scheduler orchestrator
func NewOrchestrator(queue Enqueuer, config *Config, logger *log.Logger) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[scheduler] ", log.LstdFlags)
	}
	return &Orchestrator{queue: queue, config: config, logger: logger, now: time.Now}
}

// Start launches the enabled schedules and returns immediately
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)

	o.logger.Printf("Daily scrape: %v (%s at %02d:00)", o.config.EnableDaily, o.config.DailyKind, o.config.DailyHour)
	o.logger.Printf("Polling: %v (%s every %v)", o.config.EnablePoll, o.config.PollKind, o.config.PollInterval)

	if o.config.EnableDaily {
		o.wg.Add(1)
		go o.runDaily(ctx)
	}
	if o.config.EnablePoll && o.config.PollInterval > 0 {
		o.wg.Add(1)
		go o.runPoll(ctx)
	}
}

// Stop cancels every schedule and waits for them to exit
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	o.logger.Println("✓ Scheduler stopped")
}

func (o *Orchestrator) runDaily(ctx context.Context) {
	defer o.wg.Done()

	for {
		next := NextRun(o.now(), o.config.DailyHour)
		wait := next.Sub(o.now())
		o.logger.Printf("  Next daily scrape: %s (in %v)", next.Format("2006-01-02 15:04:05"), wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			o.enqueue(ctx, jobs.Request{Kind: string(o.config.DailyKind), Resume: o.config.DailyResume})
		}
	}
}

func (o *Orchestrator) runPoll(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.enqueue(ctx, jobs.Request{Kind: string(o.config.PollKind)})
		}
	}
}

func (o *Orchestrator) enqueue(ctx context.Context, req jobs.Request) {
	job, err := o.queue.Enqueue(ctx, req)
	if err != nil {
		o.logger.Printf("❌ Failed to queue %s scrape: %v", req.Kind, err)
		return
	}
	o.logger.Printf("✓ Queued %s scrape (job %s)", job.Kind, job.JobID)
}

// NextRun returns the next time at hour:00 strictly after now
func NextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// GetStatus returns current scheduler status
func (o *Orchestrator) GetStatus() map[string]interface{} {
	return map[string]interface{}{
		"daily_enabled":  o.config.EnableDaily,
		"daily_hour":     o.config.DailyHour,
		"daily_kind":     o.config.DailyKind,
		"poll_enabled":   o.config.EnablePoll,
		"poll_interval":  o.config.PollInterval.String(),
		"poll_kind":      o.config.PollKind,
		"next_daily_run": NextRun(o.now(), o.config.DailyHour),
	}
}
