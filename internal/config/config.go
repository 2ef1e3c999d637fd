// Package config loads cricstats settings from built-in defaults, an optional
// YAML file with a .local override, and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fortuna/cricstats/internal/browser"
	"github.com/fortuna/cricstats/internal/ingest"
	"github.com/fortuna/cricstats/internal/ingest/cricbuzz"
	"github.com/fortuna/cricstats/internal/ingest/cricinfo"
	"github.com/fortuna/cricstats/internal/retry"
	"github.com/fortuna/cricstats/internal/scheduler"
)

// DefaultPath is read when no config file is named
const DefaultPath = "configs/cricstats.yaml"

// loadMoreHeadroom is added to the browser's show-more budget when
// scrape.more_timeout is unset
const loadMoreHeadroom = 5 * time.Second

// Config holds every runtime setting
type Config struct {
	OutputDir string            `yaml:"output_dir"`
	Files     map[string]string `yaml:"files"` // schema name -> CSV file name

	URLs    URLs          `yaml:"urls"`
	Browser BrowserConfig `yaml:"browser"`
	Retry   RetryConfig   `yaml:"retry"`
	Scrape  ScrapeConfig  `yaml:"scrape"`
	Sinks   SinksConfig   `yaml:"sinks"`

	Schedule ScheduleConfig `yaml:"schedule"`

	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`
	RESTPort    string `yaml:"rest_port"`
	WSPort      string `yaml:"ws_port"`
}

// URLs are the listing pages each scrape starts from
type URLs struct {
	Results string `yaml:"results"`
	Squads  string `yaml:"squads"`
	Matches string `yaml:"matches"`
}

// BrowserConfig tunes page loading
type BrowserConfig struct {
	Headless      bool          `yaml:"headless"`
	UserAgent     string        `yaml:"user_agent"`
	PageTimeout   time.Duration `yaml:"page_timeout"`
	ButtonTimeout time.Duration `yaml:"button_timeout"`
	GrowTimeout   time.Duration `yaml:"grow_timeout"`
	Interval      time.Duration `yaml:"interval"`

	// StaticSummary fetches the match summary listing without Chrome
	StaticSummary bool `yaml:"static_summary"`
}

// RetryConfig is the per-item retry policy
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
	Backoff     float64       `yaml:"backoff"`
}

// ScrapeConfig bounds the pagination loop
type ScrapeConfig struct {
	// MoreTimeout caps one show-more wait. 0 derives it from the browser timeouts.
	MoreTimeout time.Duration `yaml:"more_timeout"`
	MaxPasses   int           `yaml:"max_passes"`
	ResumeTTL   time.Duration `yaml:"resume_ttl"`
}

// SinksConfig selects where records go. Postgres also needs DatabaseURL and
// the Redis sinks need RedisURL.
type SinksConfig struct {
	CSV          bool  `yaml:"csv"`
	Postgres     bool  `yaml:"postgres"`
	RedisStreams bool  `yaml:"redis_streams"`
	StreamMaxLen int64 `yaml:"stream_max_len"`
	Websocket    bool  `yaml:"websocket"`
}

// ScheduleConfig queues scrapes while serving
type ScheduleConfig struct {
	Daily        bool          `yaml:"daily"`
	DailyHour    int           `yaml:"daily_hour"`
	DailyKind    string        `yaml:"daily_kind"`
	DailyResume  bool          `yaml:"daily_resume"`
	Poll         bool          `yaml:"poll"`
	PollInterval time.Duration `yaml:"poll_interval"`
	PollKind     string        `yaml:"poll_kind"`
}

// Defaults returns the built-in settings
func Defaults() Config {
	return Config{
		OutputDir: "output",
		URLs: URLs{
			Results: cricinfo.ResultsURL,
			Squads:  cricinfo.SquadsURL,
			Matches: cricbuzz.MatchesURL,
		},
		Browser: BrowserConfig{
			Headless:      true,
			UserAgent:     browser.UserAgent,
			PageTimeout:   10 * time.Second,
			ButtonTimeout: 5 * time.Second,
			GrowTimeout:   5 * time.Second,
			Interval:      browser.MinRequestInterval,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Delay:       5 * time.Second,
		},
		Scrape: ScrapeConfig{
			ResumeTTL:   7 * 24 * time.Hour,
		},
		Sinks: SinksConfig{
			CSV:          true,
			Postgres:     true,
			StreamMaxLen: 10000,
			Websocket:    true,
		},
		Schedule: ScheduleConfig{
			DailyHour:    3,
			DailyKind:    string(ingest.KindAll),
			PollInterval: 15 * time.Minute,
			PollKind:     string(ingest.KindSummary),
		},
		RESTPort: "8080",
		WSPort:   "8081",
	}
}

// Load reads .env, then path (DefaultPath when empty) and its .local sibling,
// then environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = DefaultPath
	}

	cfg := Defaults()
	if err := readYAML(path, &cfg); err != nil {
		return nil, err
	}

	// A .local file can only set non-zero values.
	var local Config
	if err := readYAML(localPath(path), &local); err != nil {
		return nil, err
	}
	if err := mergo.Merge(&cfg, local, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge %s: %w", localPath(path), err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readYAML(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func localPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func (c *Config) applyEnv() error {
	c.OutputDir = getEnv("CRICSTATS_OUTPUT_DIR", c.OutputDir)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.RESTPort = getEnv("REST_PORT", c.RESTPort)
	c.WSPort = getEnv("WS_PORT", c.WSPort)

	if v := getEnv("CRICSTATS_HEADLESS", ""); v != "" {
		headless, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CRICSTATS_HEADLESS: %w", err)
		}
		c.Browser.Headless = headless
	}
	return nil
}

// Validate rejects settings no scrape can run with
func (c *Config) Validate() error {
	var errs []error
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.Delay < 0 {
		errs = append(errs, fmt.Errorf("retry.delay must not be negative"))
	}
	if budget := c.BrowserOptions().LoadMoreBudget(); c.Scrape.MoreTimeout != 0 && c.Scrape.MoreTimeout < budget {
		errs = append(errs, fmt.Errorf("scrape.more_timeout %v is shorter than a show-more click can take (%v)", c.Scrape.MoreTimeout, budget))
	}
	if c.Scrape.MaxPasses < 0 {
		errs = append(errs, fmt.Errorf("scrape.max_passes must not be negative"))
	}
	for name, u := range map[string]string{"urls.results": c.URLs.Results, "urls.squads": c.URLs.Squads, "urls.matches": c.URLs.Matches} {
		if u == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	if c.Schedule.DailyHour < 0 || c.Schedule.DailyHour > 23 {
		errs = append(errs, fmt.Errorf("schedule.daily_hour must be 0-23, got %d", c.Schedule.DailyHour))
	}
	for name, kind := range map[string]string{"schedule.daily_kind": c.Schedule.DailyKind, "schedule.poll_kind": c.Schedule.PollKind} {
		if _, err := ingest.ParseKind(kind); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Sinks.CSV && c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir is required when the csv sink is enabled"))
	}
	return errors.Join(errs...)
}

// RetryPolicy converts the retry settings
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		Delay:       c.Retry.Delay,
		Backoff:     c.Retry.Backoff,
	}
}

// LoadMoreTimeout is how long the pagination loop waits for more items
func (c *Config) LoadMoreTimeout() time.Duration {
	if c.Scrape.MoreTimeout > 0 {
		return c.Scrape.MoreTimeout
	}
	return c.BrowserOptions().LoadMoreBudget() + loadMoreHeadroom
}

// BrowserOptions converts the browser settings
func (c *Config) BrowserOptions() browser.Options {
	return browser.Options{
		Headless:      c.Browser.Headless,
		UserAgent:     c.Browser.UserAgent,
		PageTimeout:   c.Browser.PageTimeout,
		ButtonTimeout: c.Browser.ButtonTimeout,
		GrowTimeout:   c.Browser.GrowTimeout,
		Interval:      c.Browser.Interval,
	}
}

// SchedulerConfig converts the schedule settings. Kinds are checked by Validate.
func (c *Config) SchedulerConfig() *scheduler.Config {
	daily, _ := ingest.ParseKind(c.Schedule.DailyKind)
	poll, _ := ingest.ParseKind(c.Schedule.PollKind)
	return &scheduler.Config{
		EnableDaily:  c.Schedule.Daily,
		DailyHour:    c.Schedule.DailyHour,
		DailyKind:    daily,
		DailyResume:  c.Schedule.DailyResume,
		EnablePoll:   c.Schedule.Poll,
		PollInterval: c.Schedule.PollInterval,
		PollKind:     poll,
	}
}

// ScrapeURLs maps each scrape to its listing page
func (c *Config) ScrapeURLs() map[ingest.Kind]string {
	return map[ingest.Kind]string{
		ingest.KindBatting: c.URLs.Results,
		ingest.KindBowling: c.URLs.Results,
		ingest.KindSummary: c.URLs.Matches,
		ingest.KindRoster:  c.URLs.Squads,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
