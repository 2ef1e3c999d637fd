// Package ingest runs the cricinfo and cricbuzz scrapes end to end: it starts
// a browser session, drives the pagination loop and reports what was stored.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fortuna/cricstats/internal/ingest/cricbuzz"
	"github.com/fortuna/cricstats/internal/ingest/cricinfo"
	"github.com/fortuna/cricstats/internal/ingest/source"
	"github.com/fortuna/cricstats/internal/paginate"
	"github.com/fortuna/cricstats/internal/retry"
	"github.com/fortuna/cricstats/internal/sink"
)

// Kind names one scrape
type Kind string

const (
	KindBatting Kind = "batting"
	KindBowling Kind = "bowling"
	KindSummary Kind = "summary"
	KindRoster  Kind = "roster"
	KindAll     Kind = "all"
)

// Kinds lists every concrete scrape in the order "all" runs them
func Kinds() []Kind {
	return []Kind{KindBatting, KindBowling, KindSummary, KindRoster}
}

// ParseKind validates a scrape name
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k == KindAll {
		return k, nil
	}
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown scrape %q (want batting, bowling, summary, roster or all)", s)
}

// Expand turns "all" into every concrete kind
func (k Kind) Expand() []Kind {
	if k == KindAll {
		return Kinds()
	}
	return []Kind{k}
}

// Options configures a Runner
type Options struct {
	// Launcher starts the rendered browser used by every scrape
	Launcher source.Launcher

	// StaticLauncher, when set, serves the match summary scrape without
	// a rendered browser
	StaticLauncher source.Launcher

	// URLs overrides the listing URL per kind
	URLs map[Kind]string

	Retry       retry.Policy
	MoreTimeout time.Duration
	MaxPasses   int

	// Seen returns the dedup set for a kind. nil uses an in-memory set per run.
	Seen func(kind Kind) paginate.KeySet

	// IDs returns the match numbering for batting and bowling. nil numbers
	// matches from 1 on every run.
	IDs func(kind Kind) cricinfo.IDs
}

// RunSummary reports one finished scrape
type RunSummary struct {
	Kind         Kind           `json:"kind"`
	Stats        paginate.Stats `json:"stats"`
	Records      int            `json:"records"`
	SinkFailures int            `json:"sink_failures"`
	Duration     time.Duration  `json:"duration"`
	Error        string         `json:"error,omitempty"`
}

// Runner executes scrapes against a sink
type Runner struct {
	opts   Options
	sink   sink.Sink
	logger *log.Logger
}

// NewRunner creates a runner writing to s
func NewRunner(opts Options, s sink.Sink, logger *log.Logger) (*Runner, error) {
	if opts.Launcher == nil {
		return nil, errors.New("ingest: a browser launcher is required")
	}
	if s == nil {
		return nil, errors.New("ingest: a sink is required")
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[ingest] ", log.LstdFlags)
	}
	return &Runner{opts: opts, sink: s, logger: logger}, nil
}

// Run executes kind (or every kind for "all") one after another. A scrape
// that gives up does not stop the ones after it; their errors are joined.
func (r *Runner) Run(ctx context.Context, kind Kind) ([]RunSummary, error) {
	var (
		summaries []RunSummary
		errs      []error
	)

	for _, k := range kind.Expand() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		summary, err := r.RunOne(ctx, k)
		summaries = append(summaries, summary)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
	}

	return summaries, errors.Join(errs...)
}

// RunOne executes a single scrape. The browser session is released on every path.
func (r *Runner) RunOne(ctx context.Context, kind Kind) (RunSummary, error) {
	start := time.Now()
	summary := RunSummary{Kind: kind}

	r.logger.Printf("Starting %s scrape...", kind)

	launcher := r.opts.Launcher
	if kind == KindSummary && r.opts.StaticLauncher != nil {
		launcher = r.opts.StaticLauncher
	}

	session, err := launcher.Launch(ctx)
	if err != nil {
		summary.Error = err.Error()
		summary.Duration = time.Since(start)
		r.logger.Printf("❌ %s: failed to start browser: %v", kind, err)
		return summary, fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			r.logger.Printf("⚠️  %s: closing browser: %v", kind, err)
		}
	}()

	emitter := source.NewEmitter(r.sink, r.logger)
	url := r.opts.URLs[kind]

	var stats paginate.Stats
	switch kind {
	case KindBatting:
		stats, err = drive[cricinfo.MatchCard](ctx, r, kind, cricinfo.NewBatting(session, url, emitter, r.logger).UseIDs(r.matchIDs(kind)))
	case KindBowling:
		stats, err = drive[cricinfo.MatchCard](ctx, r, kind, cricinfo.NewBowling(session, url, emitter, r.logger).UseIDs(r.matchIDs(kind)))
	case KindSummary:
		stats, err = drive[cricbuzz.Card](ctx, r, kind, cricbuzz.NewSummary(session, url, emitter, r.logger))
	case KindRoster:
		stats, err = drive[cricinfo.Country](ctx, r, kind, cricinfo.NewRoster(session, url, emitter, r.logger))
	default:
		err = fmt.Errorf("unknown scrape %q", kind)
	}

	summary.Stats = stats
	summary.Records = emitter.Total()
	summary.SinkFailures = emitter.Failures()
	summary.Duration = time.Since(start)
	if err != nil {
		summary.Error = err.Error()
		r.logger.Printf("❌ %s scrape stopped: %v", kind, err)
		return summary, err
	}

	r.logger.Printf("✓ %s scrape complete: %d items, %d records, %d failed items, %d sink failures (%v)",
		kind, stats.Processed, summary.Records, stats.Failed, summary.SinkFailures, summary.Duration.Round(time.Millisecond))
	return summary, nil
}

// Poll runs kind at once and then every interval until ctx ends. done, when
// set, receives the outcome of every run.
func (r *Runner) Poll(ctx context.Context, kind Kind, interval time.Duration, done func([]RunSummary, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Printf("Starting %s polling (interval: %v)", kind, interval)

	for {
		summaries, err := r.Run(ctx, kind)
		if err != nil {
			r.logger.Printf("Polling error: %v", err)
		}
		if done != nil {
			done(summaries, err)
		}

		select {
		case <-ctx.Done():
			r.logger.Printf("Stopping %s polling", kind)
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) matchIDs(kind Kind) cricinfo.IDs {
	if r.opts.IDs == nil {
		return nil
	}
	return r.opts.IDs(kind)
}

type scrape[T any] interface {
	paginate.Source[T]
	Close() error
}

func drive[T any](ctx context.Context, r *Runner, kind Kind, s scrape[T]) (paginate.Stats, error) {
	defer func() {
		if err := s.Close(); err != nil {
			r.logger.Printf("⚠️  %s: closing listing: %v", kind, err)
		}
	}()

	var seen paginate.KeySet
	if r.opts.Seen != nil {
		seen = r.opts.Seen(kind)
	}

	opts := paginate.Options{
		Retry:       r.opts.Retry,
		MoreTimeout: r.opts.MoreTimeout,
		MaxPasses:   r.opts.MaxPasses,
	}
	return paginate.New[T](s, seen, opts, r.logger).Run(ctx)
}
