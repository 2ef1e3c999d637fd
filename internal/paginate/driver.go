// Package paginate drives "fetch, skip seen, process, load more" loops over a
// page that reveals its items in batches.
package paginate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fortuna/cricstats/internal/retry"
)

// State is a step of the pagination loop
type State int

const (
	Fetching State = iota
	ProcessingItem
	WaitingForMore
	Done
)

func (s State) String() string {
	switch s {
	case Fetching:
		return "fetching"
	case ProcessingItem:
		return "processing_item"
	case WaitingForMore:
		return "waiting_for_more"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Source supplies item handles and knows how to turn one into records.
type Source[T any] interface {
	// Fetch returns the handles currently on the page. Overlap with earlier
	// batches is expected.
	Fetch(ctx context.Context) ([]T, error)

	// Key returns the stable dedup identifier of a handle.
	Key(item T) (string, error)

	// Process extracts and emits the records of one handle.
	Process(ctx context.Context, item T) error

	// More asks the page to reveal further items. false means there is nothing left.
	More(ctx context.Context) (bool, error)
}

// Options tunes a Driver
type Options struct {
	Retry       retry.Policy
	MoreTimeout time.Duration // Default: 10s
	MaxPasses   int           // 0 means unlimited

	// OnTransition observes every state change
	OnTransition func(from, to State)
}

// Stats summarises one run of the loop
type Stats struct {
	Passes     int `json:"passes"`
	Seen       int `json:"seen"`
	Processed  int `json:"processed"`
	Failed     int `json:"failed"`
	Duplicates int `json:"duplicates"`
	KeyErrors  int `json:"key_errors"`
}

// Driver runs the pagination state machine against a Source
type Driver[T any] struct {
	source Source[T]
	seen   KeySet
	opts   Options
	logger *log.Logger
	state  State
}

// New creates a driver. A nil KeySet gets a fresh in-memory set.
func New[T any](source Source[T], seen KeySet, opts Options, logger *log.Logger) *Driver[T] {
	if seen == nil {
		seen = NewMemorySet()
	}
	if opts.MoreTimeout <= 0 {
		opts.MoreTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[paginate] ", log.LstdFlags)
	}
	return &Driver[T]{
		source: source,
		seen:   seen,
		opts:   opts,
		logger: logger,
		state:  Fetching,
	}
}

// State returns the current state
func (d *Driver[T]) State() State {
	return d.state
}

func (d *Driver[T]) transition(to State) {
	from := d.state
	d.state = to
	if d.opts.OnTransition != nil && from != to {
		d.opts.OnTransition(from, to)
	}
}

// Run loops until a full pass yields nothing new or the page has no more items.
// Item failures are logged and counted; they never end the run. The returned
// error is non-nil only when fetching the item list itself gave up or ctx ended.
func (d *Driver[T]) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	d.state = Fetching

	for {
		if err := ctx.Err(); err != nil {
			d.transition(Done)
			return stats, err
		}

		if d.opts.MaxPasses > 0 && stats.Passes >= d.opts.MaxPasses {
			d.logger.Printf("⚠️  Stopping after %d passes (limit reached)", stats.Passes)
			d.transition(Done)
			return stats, nil
		}

		d.transition(Fetching)
		stats.Passes++

		var items []T
		err := retry.Do(ctx, d.opts.Retry, func(ctx context.Context) error {
			var fetchErr error
			items, fetchErr = d.source.Fetch(ctx)
			return fetchErr
		})
		if err != nil {
			d.logger.Printf("❌ Fetching items failed: %v", err)
			d.transition(Done)
			return stats, fmt.Errorf("fetch items: %w", err)
		}

		if len(items) == 0 {
			d.logger.Println("No items found. Done.")
			d.transition(Done)
			return stats, nil
		}

		newItems := 0
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				d.transition(Done)
				return stats, err
			}

			key, err := d.source.Key(item)
			if err != nil {
				stats.KeyErrors++
				d.logger.Printf("⚠️  Skipping item without a key: %v", err)
				continue
			}

			seen, err := d.seen.Seen(ctx, key)
			if err != nil {
				d.logger.Printf("⚠️  Dedup lookup for %s failed: %v (processing anyway)", key, err)
			}
			if seen {
				stats.Duplicates++
				continue
			}

			newItems++
			stats.Seen++
			d.transition(ProcessingItem)
			d.process(ctx, key, item, &stats)

			if err := d.seen.Mark(ctx, key); err != nil {
				d.logger.Printf("⚠️  Failed to mark %s as seen: %v", key, err)
			}
		}

		if newItems == 0 {
			d.logger.Printf("No new items in pass %d. Done.", stats.Passes)
			d.transition(Done)
			return stats, nil
		}

		d.transition(WaitingForMore)
		if !d.loadMore(ctx) {
			d.transition(Done)
			return stats, nil
		}
	}
}

func (d *Driver[T]) process(ctx context.Context, key string, item T, stats *Stats) {
	policy := d.opts.Retry
	userHook := policy.OnFailure
	policy.OnFailure = func(attempt int, err error) {
		d.logger.Printf("  ⚠️  %s: attempt %d/%d failed: %v", key, attempt, max(policy.MaxAttempts, 1), err)
		if userHook != nil {
			userHook(attempt, err)
		}
	}

	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		return d.source.Process(ctx, item)
	})
	if err != nil {
		stats.Failed++
		d.logger.Printf("❌ Skipping %s: %v", key, err)
		return
	}
	stats.Processed++
}

func (d *Driver[T]) loadMore(ctx context.Context) bool {
	moreCtx, cancel := context.WithTimeout(ctx, d.opts.MoreTimeout)
	defer cancel()

	more, err := d.source.More(moreCtx)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		d.logger.Println("Timed out waiting for more items. Done.")
		return false
	case err != nil:
		d.logger.Printf("⚠️  Loading more items failed: %v. Done.", err)
		return false
	case !more:
		d.logger.Println("No more items to load. Done.")
		return false
	}
	return true
}
