// Package sourcetest serves canned HTML through the source.Browser contract.
package sourcetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/fortuna/cricstats/internal/ingest/source"
)

// Browser serves pages from memory. Each URL maps to a list of snapshots;
// LoadMore and Reload advance to the next one.
type Browser struct {
	mu        sync.Mutex
	pages     map[string][]string
	failures  map[string]int
	opened    []string
	openPages int
	sessions  int
}

// NewBrowser creates an empty fake browser
func NewBrowser() *Browser {
	return &Browser{
		pages:    make(map[string][]string),
		failures: make(map[string]int),
	}
}

// Serve registers the snapshots for url
func (b *Browser) Serve(url string, snapshots ...string) *Browser {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages[url] = snapshots
	return b
}

// FailOpen makes the next n opens of url fail with source.ErrTimeout
func (b *Browser) FailOpen(url string, n int) *Browser {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[url] = n
	return b
}

// Opened returns every URL passed to Open, in order
func (b *Browser) Opened() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.opened...)
}

// OpenPages returns how many pages are open and not yet closed
func (b *Browser) OpenPages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.openPages
}

// Sessions returns how many launched sessions are still open
func (b *Browser) Sessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions
}

// Launch implements source.Launcher. Every session shares the served pages.
func (b *Browser) Launch(ctx context.Context) (source.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions++
	return &session{Browser: b}, nil
}

type session struct {
	*Browser
	closed bool
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions--
	return nil
}

// Open implements source.Browser
func (b *Browser) Open(ctx context.Context, url, readySelector string) (source.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.opened = append(b.opened, url)

	if b.failures[url] > 0 {
		b.failures[url]--
		return nil, fmt.Errorf("open %s: %w", url, source.ErrTimeout)
	}

	snapshots, ok := b.pages[url]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", url, source.ErrTimeout)
	}

	p := &Page{browser: b, url: url, snapshots: snapshots}
	doc, err := p.Document(ctx)
	if err != nil {
		return nil, err
	}
	if readySelector != "" && doc.Find(readySelector).Length() == 0 {
		return nil, fmt.Errorf("open %s: %w", url, source.NotFound(readySelector))
	}

	b.openPages++
	return p, nil
}

// Page is one open fake page
type Page struct {
	browser   *Browser
	url       string
	snapshots []string
	current   int
	closed    bool
}

// URL implements source.Page
func (p *Page) URL() string {
	return p.url
}

// Document implements source.Page
func (p *Page) Document(context.Context) (*goquery.Document, error) {
	if len(p.snapshots) == 0 {
		return goquery.NewDocumentFromReader(strings.NewReader(""))
	}
	return goquery.NewDocumentFromReader(strings.NewReader(p.snapshots[p.current]))
}

// LoadMore advances to the next snapshot while the button is present
func (p *Page) LoadMore(ctx context.Context, buttonSelector, _ string) (bool, error) {
	doc, err := p.Document(ctx)
	if err != nil {
		return false, err
	}
	if doc.Find(buttonSelector).Length() == 0 || p.current+1 >= len(p.snapshots) {
		return false, nil
	}
	p.current++
	return true, nil
}

// Reload advances to the next snapshot, staying on the last one
func (p *Page) Reload(context.Context) error {
	if p.current+1 < len(p.snapshots) {
		p.current++
	}
	return nil
}

// Close implements source.Page
func (p *Page) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.browser.mu.Lock()
	p.browser.openPages--
	p.browser.mu.Unlock()
	return nil
}
