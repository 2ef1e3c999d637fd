package browser

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"github.com/fortuna/cricstats/internal/ingest/source"
)

// Static fetches server-rendered pages over plain HTTP. It cannot run
// scripts, so LoadMore always reports that nothing more is available.
type Static struct {
	opts    Options
	logger  *log.Logger
	limiter *rate.Limiter
}

// NewStatic creates a static page source
func NewStatic(opts Options, logger *log.Logger) *Static {
	opts = opts.withDefaults()
	if logger == nil {
		logger = log.New(log.Writer(), "[browser] ", log.LstdFlags)
	}
	return &Static{
		opts:    opts,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(opts.Interval), 1),
	}
}

// Launch implements source.Launcher; the static source holds no process
func (s *Static) Launch(ctx context.Context) (source.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close implements source.Session
func (s *Static) Close() error {
	return nil
}

// Open fetches url and checks that readySelector is present
func (s *Static) Open(ctx context.Context, url, readySelector string) (source.Page, error) {
	p := &StaticPage{static: s, url: url, ready: readySelector}
	if err := p.Reload(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Static) fetch(ctx context.Context, url string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	c := colly.NewCollector(colly.UserAgent(s.opts.UserAgent))
	c.SetRequestTimeout(s.opts.PageTimeout)
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})

	var (
		body   []byte
		status int
		reqErr error
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		reqErr = err
	})

	if err := c.Request(http.MethodGet, url, nil, nil, nil); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if reqErr != nil {
		return nil, fmt.Errorf("fetch %s (status %d): %w", url, status, reqErr)
	}
	if status >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch %s: status %d", url, status)
	}
	return body, nil
}

// StaticPage is one fetched document
type StaticPage struct {
	static *Static
	url    string
	ready  string

	mu  sync.Mutex
	doc *goquery.Document
}

// URL implements source.Page
func (p *StaticPage) URL() string {
	return p.url
}

// Document returns the last fetched document
func (p *StaticPage) Document(context.Context) (*goquery.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return nil, fmt.Errorf("%s: page not loaded", p.url)
	}
	return p.doc, nil
}

// LoadMore reports false; there is no script to reveal further items
func (p *StaticPage) LoadMore(context.Context, string, string) (bool, error) {
	return false, nil
}

// Reload fetches the page again
func (p *StaticPage) Reload(ctx context.Context) error {
	body, err := p.static.fetch(ctx, p.url)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse %s: %w", p.url, err)
	}
	if p.ready != "" && doc.Find(p.ready).Length() == 0 {
		return fmt.Errorf("load %s: %w", p.url, source.NotFound(p.ready))
	}

	p.mu.Lock()
	p.doc = doc
	p.mu.Unlock()
	return nil
}

// Close implements source.Page
func (p *StaticPage) Close() error {
	return nil
}
