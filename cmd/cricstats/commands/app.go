package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fortuna/cricstats/internal/api/websocket"
	"github.com/fortuna/cricstats/internal/browser"
	"github.com/fortuna/cricstats/internal/cache"
	"github.com/fortuna/cricstats/internal/config"
	"github.com/fortuna/cricstats/internal/ingest"
	"github.com/fortuna/cricstats/internal/ingest/cricinfo"
	"github.com/fortuna/cricstats/internal/jobs"
	"github.com/fortuna/cricstats/internal/paginate"
	"github.com/fortuna/cricstats/internal/publisher"
	"github.com/fortuna/cricstats/internal/sink"
	"github.com/fortuna/cricstats/internal/store"
)

// app holds the backends shared by every command
type app struct {
	cfg     *config.Config
	db      *store.Database
	records *store.RecordRepository
	redis   *cache.RedisCache
	ws      *websocket.Server
	sinks   *sink.Multi
	logger  *log.Logger
}

type appOptions struct {
	websocket bool // feed records to websocket subscribers
}

// openApp connects the configured backends and assembles the record sinks
func openApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{
		cfg:    cfg,
		sinks:  sink.NewMulti(),
		logger: log.New(log.Writer(), "[cricstats] ", log.LstdFlags),
	}

	if cfg.Sinks.CSV {
		a.sinks.Add(sink.NewCSV(cfg.OutputDir, cfg.Files))
		a.logger.Printf("✓ Writing CSV files to %s", cfg.OutputDir)
	}

	if cfg.DatabaseURL != "" {
		db, err := store.NewDatabase(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.db = db
		a.logger.Println("✓ Connected to database")

		applied, err := db.RunMigrations(ctx)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		if len(applied) > 0 {
			a.logger.Printf("✓ Applied migrations: %s", strings.Join(applied, ", "))
		}

		a.records = store.NewRecordRepository(db)
		if cfg.Sinks.Postgres {
			a.sinks.Add(store.NewSink(a.records))
		}
	}

	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redis = rc
		a.logger.Println("✓ Connected to Redis")

		if cfg.Sinks.RedisStreams {
			a.sinks.Add(publisher.NewRedisStreamPublisher(rc.Client(), cfg.Sinks.StreamMaxLen))
		}
	}

	if opts.websocket && cfg.Sinks.Websocket {
		a.ws = websocket.NewServer(nil)
		a.sinks.Add(websocket.NewBroadcastSink(a.ws.Hub()))
	}

	if a.sinks.Len() == 0 {
		a.Close()
		return nil, errors.New("no record sink is enabled")
	}
	return a, nil
}

// runner builds an ingest runner. resume keeps each scrape's seen keys in
// Redis so an interrupted scrape picks up where it stopped.
func (a *app) runner(resume bool) (*ingest.Runner, error) {
	cfg := a.cfg
	opts := ingest.Options{
		Launcher:    browser.NewChrome(cfg.BrowserOptions(), nil),
		URLs:        cfg.ScrapeURLs(),
		Retry:       cfg.RetryPolicy(),
		MoreTimeout: cfg.LoadMoreTimeout(),
		MaxPasses:   cfg.Scrape.MaxPasses,
	}
	if cfg.Browser.StaticSummary {
		opts.StaticLauncher = browser.NewStatic(cfg.BrowserOptions(), nil)
	}

	if resume {
		if a.redis == nil {
			return nil, errors.New("resume needs REDIS_URL")
		}
		opts.Seen = func(kind ingest.Kind) paginate.KeySet {
			return a.seenSet(kind)
		}
		opts.IDs = func(kind ingest.Kind) cricinfo.IDs {
			return a.redis.MatchIDs(string(kind), a.cfg.Scrape.ResumeTTL)
		}
	}

	return ingest.NewRunner(opts, a.sinks, nil)
}

func (a *app) seenSet(kind ingest.Kind) *cache.SeenSet {
	return a.redis.SeenSet(string(kind), a.cfg.Scrape.ResumeTTL)
}

// resetSeen forgets what earlier resumable runs of kind finished
func (a *app) resetSeen(ctx context.Context, kind ingest.Kind) error {
	if a.redis == nil {
		return errors.New("reset needs REDIS_URL")
	}
	for _, k := range kind.Expand() {
		if err := a.seenSet(k).Reset(ctx); err != nil {
			return fmt.Errorf("reset %s: %w", k, err)
		}
		if err := a.redis.MatchIDs(string(k), 0).Reset(ctx); err != nil {
			return fmt.Errorf("reset %s match ids: %w", k, err)
		}
	}
	return nil
}

// logResume reports how much of kind earlier runs already finished
func (a *app) logResume(ctx context.Context, kind ingest.Kind) {
	if a.redis == nil {
		return
	}
	for _, k := range kind.Expand() {
		n, err := a.seenSet(k).Len(ctx)
		if err != nil {
			a.logger.Printf("⚠️  Reading %s resume state: %v", k, err)
			continue
		}
		a.logger.Printf("Resuming %s: %d items already done", k, n)
	}
}

// scraper adapts the ingest runner for the job queue
func (a *app) scraper() jobs.Scraper {
	return jobs.ScraperFunc(func(ctx context.Context, kind ingest.Kind, resume bool) (ingest.RunSummary, error) {
		r, err := a.runner(resume)
		if err != nil {
			return ingest.RunSummary{Kind: kind, Error: err.Error()}, err
		}
		return r.RunOne(ctx, kind)
	})
}

// jobRepository stores jobs in Postgres when connected
func (a *app) jobRepository() jobs.Repository {
	if a.db != nil {
		return jobs.NewPostgresRepository(a.db)
	}
	return jobs.NewMemoryRepository()
}

func (a *app) Close() {
	if a.sinks != nil {
		if err := a.sinks.Close(); err != nil {
			a.logger.Printf("⚠️  closing sinks: %v", err)
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

func shutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
