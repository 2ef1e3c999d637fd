// Package browser provides the page sources scrapes run against: a headless
// Chrome session for script-rendered pages and a plain HTTP fetcher for
// static ones.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"github.com/fortuna/cricstats/internal/ingest/source"
)

const (
	// UserAgent sent by every page source
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// MinRequestInterval between navigations of one session
	MinRequestInterval = 2 * time.Second
)

// Options tunes page loading
type Options struct {
	Headless      bool
	UserAgent     string
	PageTimeout   time.Duration // navigation plus ready wait. Default: 10s
	ButtonTimeout time.Duration // show-more button wait. Default: 5s
	GrowTimeout   time.Duration // wait for new items after a click. Default: 5s
	Interval      time.Duration // Default: MinRequestInterval
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = UserAgent
	}
	if o.PageTimeout <= 0 {
		o.PageTimeout = 10 * time.Second
	}
	if o.ButtonTimeout <= 0 {
		o.ButtonTimeout = 5 * time.Second
	}
	if o.GrowTimeout <= 0 {
		o.GrowTimeout = 5 * time.Second
	}
	if o.Interval <= 0 {
		o.Interval = MinRequestInterval
	}
	return o
}

// LoadMoreBudget is the longest Page.LoadMore can take: the item count, the
// button wait, then the click and the growth wait.
func (o Options) LoadMoreBudget() time.Duration {
	o = o.withDefaults()
	return o.PageTimeout + 2*o.ButtonTimeout + o.GrowTimeout
}

// Chrome launches headless Chrome sessions
type Chrome struct {
	opts   Options
	logger *log.Logger
}

// NewChrome creates a Chrome launcher
func NewChrome(opts Options, logger *log.Logger) *Chrome {
	if logger == nil {
		logger = log.New(log.Writer(), "[browser] ", log.LstdFlags)
	}
	return &Chrome{opts: opts.withDefaults(), logger: logger}
}

// Launch starts a browser process. The session must be closed.
func (c *Chrome) Launch(ctx context.Context) (source.Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(c.opts.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// the first Run starts the process; it must not carry a timeout
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	select {
	case err := <-started:
		if err != nil {
			browserCancel()
			allocCancel()
			return nil, fmt.Errorf("start chrome: %w", err)
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, ctx.Err()
	}

	c.logger.Println("✓ Chrome started")
	return &Session{
		opts:        c.opts,
		logger:      c.logger,
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		limiter:     rate.NewLimiter(rate.Every(c.opts.Interval), 1),
	}, nil
}

// Session is one running browser. Every Open gets its own tab.
type Session struct {
	opts        Options
	logger      *log.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	limiter     *rate.Limiter
}

// Open navigates a new tab and waits until readySelector is present
func (s *Session) Open(ctx context.Context, url, readySelector string) (source.Page, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(s.ctx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}

	p := &Page{session: s, ctx: tabCtx, cancel: tabCancel, url: url, ready: readySelector}
	if err := p.navigate(ctx); err != nil {
		tabCancel()
		return nil, err
	}
	return p, nil
}

// Close shuts the browser down
func (s *Session) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	s.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	s.logger.Println("Chrome stopped")
	return nil
}

// Page is one browser tab
type Page struct {
	session *Session
	ctx     context.Context
	cancel  context.CancelFunc
	url     string
	ready   string
}

// URL implements source.Page
func (p *Page) URL() string {
	return p.url
}

// Document snapshots the rendered DOM
func (p *Page) Document(ctx context.Context) (*goquery.Document, error) {
	var html string
	if err := p.run(ctx, p.session.opts.PageTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("read %s: %w", p.url, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.url, err)
	}
	return doc, nil
}

// LoadMore clicks buttonSelector and waits for itemSelector to match more
// nodes. A button that never shows up means there is nothing more.
func (p *Page) LoadMore(ctx context.Context, buttonSelector, itemSelector string) (bool, error) {
	count := countExpr(itemSelector)

	var before int
	if err := p.run(ctx, p.session.opts.PageTimeout, chromedp.Evaluate(count, &before)); err != nil {
		return false, fmt.Errorf("count items: %w", err)
	}

	err := p.run(ctx, p.session.opts.ButtonTimeout, chromedp.WaitVisible(buttonSelector, chromedp.ByQuery))
	switch {
	case errors.Is(err, source.ErrTimeout):
		return false, nil
	case err != nil:
		return false, err
	}

	click := fmt.Sprintf(`document.querySelector(%s).click()`, strconv.Quote(buttonSelector))
	grown := fmt.Sprintf(`%s > %d`, count, before)
	err = p.run(ctx, p.session.opts.GrowTimeout+p.session.opts.ButtonTimeout,
		chromedp.Evaluate(click, nil),
		chromedp.Poll(grown, nil,
			chromedp.WithPollingInterval(250*time.Millisecond),
			chromedp.WithPollingTimeout(p.session.opts.GrowTimeout)),
	)
	if err != nil {
		return false, fmt.Errorf("load more items: %w", err)
	}
	return true, nil
}

// Reload navigates the tab to its URL again
func (p *Page) Reload(ctx context.Context) error {
	if err := p.session.limiter.Wait(ctx); err != nil {
		return err
	}
	return p.navigate(ctx)
}

// Close closes the tab
func (p *Page) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (p *Page) navigate(ctx context.Context) error {
	actions := []chromedp.Action{chromedp.Navigate(p.url)}
	if p.ready != "" {
		actions = append(actions, chromedp.WaitReady(p.ready, chromedp.ByQuery))
	}
	if err := p.run(ctx, p.session.opts.PageTimeout, actions...); err != nil {
		return fmt.Errorf("load %s: %w", p.url, err)
	}
	return nil
}

// run bounds actions by timeout and by the caller's ctx. Running out of time
// surfaces as source.ErrTimeout.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %v", source.ErrTimeout, timeout)
	}
	return err
}

func countExpr(selector string) string {
	return fmt.Sprintf(`document.querySelectorAll(%s).length`, strconv.Quote(selector))
}
