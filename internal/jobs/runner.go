package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/fortuna/cricstats/internal/ingest"
)

// Scraper runs one scrape to completion. resume asks it to skip items a
// previous run already finished.
type Scraper interface {
	Scrape(ctx context.Context, kind ingest.Kind, resume bool) (ingest.RunSummary, error)
}

// ScraperFunc adapts a function into a Scraper
type ScraperFunc func(ctx context.Context, kind ingest.Kind, resume bool) (ingest.RunSummary, error)

func (f ScraperFunc) Scrape(ctx context.Context, kind ingest.Kind, resume bool) (ingest.RunSummary, error) {
	return f(ctx, kind, resume)
}

// Runner executes a job's scrapes in order.
type Runner struct {
	scraper Scraper
}

// NewRunner constructs a runner around scraper.
func NewRunner(scraper Scraper) *Runner {
	return &Runner{scraper: scraper}
}

// Run executes every scrape of job, reporting progress via the Reporter if
// provided. A failed scrape is reported and the remaining ones still run.
func (r *Runner) Run(ctx context.Context, job *Job, reporter Reporter) ([]ingest.RunSummary, error) {
	if reporter != nil {
		reporter.OnJobStart(job)
	}

	kinds := job.Kind.Expand()
	total := len(kinds)

	var (
		summaries []ingest.RunSummary
		errs      []error
	)
	for idx, kind := range kinds {
		if err := ctx.Err(); err != nil {
			return summaries, err
		}

		if reporter != nil {
			reporter.OnScrapeStart(kind, idx, total)
		}

		summary, err := r.scraper.Scrape(ctx, kind, job.Resume)
		summaries = append(summaries, summary)
		if err != nil {
			err = fmt.Errorf("%s: %w", kind, err)
			errs = append(errs, err)
			if reporter != nil {
				reporter.OnJobError(err)
			}
		}

		if reporter != nil {
			reporter.OnScrapeComplete(summary, idx, total)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return summaries, err
	}

	if reporter != nil {
		reporter.OnJobComplete()
	}
	return summaries, nil
}
