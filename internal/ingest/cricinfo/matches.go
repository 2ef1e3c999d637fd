// Package cricinfo scrapes scorecards and squads from ESPNcricinfo.
package cricinfo

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fortuna/cricstats/internal/ingest/source"
	"github.com/fortuna/cricstats/internal/records"
	"github.com/fortuna/cricstats/internal/retry"
	"github.com/fortuna/cricstats/internal/textnorm"
)

const (
	// Origin of every cricinfo page
	Origin = "https://www.espncricinfo.com"

	// ResultsURL lists the tournament fixtures
	ResultsURL = Origin + "/series/icc-men-s-t20-world-cup-2024-1411166/match-schedule-fixtures-and-results"

	// SquadsURL lists the tournament squads
	SquadsURL = Origin + "/series/icc-men-s-t20-world-cup-2024-1411166/squads"
)

const (
	matchCardSelector = `div.ds-p-4.hover\:ds-bg-ui-fill-translucent`
	showMoreSelector  = "button.ds-button.ds-text-center.ds-uppercase.ds-font-bold.ds-border-none.ds-bg-fill-primary"
	titleSelector     = "h1.ds-text-title-xs.ds-font-bold"
	inningsSelector   = "div.ds-rounded-lg.ds-mt-2"
	teamSelector      = "span.ds-text-title-xs.ds-font-bold.ds-capitalize"
)

// Extractor turns one innings block of a scorecard into records
type Extractor func(m source.MatchContext, team string, innings *goquery.Selection) []records.Record

// MatchCard is one fixture on the results listing
type MatchCard struct {
	Href string
}

// Matches walks the results listing, opening every finished match once and
// handing each innings to an Extractor.
type Matches struct {
	browser source.Browser
	url     string
	extract Extractor
	emitter *source.Emitter
	logger  *log.Logger

	listing source.Page
	ids     IDs
}

// NewMatches creates a listing source. url defaults to ResultsURL.
func NewMatches(browser source.Browser, url string, extract Extractor, emitter *source.Emitter, logger *log.Logger) *Matches {
	if url == "" {
		url = ResultsURL
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[cricinfo] ", log.LstdFlags)
	}
	return &Matches{
		browser: browser,
		url:     url,
		extract: extract,
		emitter: emitter,
		logger:  logger,
		ids:     NewMemoryIDs(),
	}
}

// UseIDs replaces the per-run id numbering, e.g. with one that survives a restart
func (m *Matches) UseIDs(ids IDs) *Matches {
	if ids != nil {
		m.ids = ids
	}
	return m
}

// NewBatting creates the batting scorecard scrape
func NewBatting(browser source.Browser, url string, emitter *source.Emitter, logger *log.Logger) *Matches {
	return NewMatches(browser, url, ExtractBatting, emitter, logger)
}

// NewBowling creates the bowling scorecard scrape
func NewBowling(browser source.Browser, url string, emitter *source.Emitter, logger *log.Logger) *Matches {
	return NewMatches(browser, url, ExtractBowling, emitter, logger)
}

// Fetch opens the listing on first use and returns the cards currently shown
func (m *Matches) Fetch(ctx context.Context) ([]MatchCard, error) {
	if m.listing == nil {
		page, err := m.browser.Open(ctx, m.url, matchCardSelector)
		if err != nil {
			return nil, fmt.Errorf("open results listing: %w", err)
		}
		m.listing = page
	}

	doc, err := m.listing.Document(ctx)
	if err != nil {
		return nil, fmt.Errorf("read results listing: %w", err)
	}

	var cards []MatchCard
	doc.Find(matchCardSelector).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Find("a").First().Attr("href")
		cards = append(cards, MatchCard{Href: href})
	})
	return cards, nil
}

// Key is the absolute match URL
func (m *Matches) Key(card MatchCard) (string, error) {
	return source.Resolve(m.url, card.Href)
}

// Process opens one match and emits a record set per innings
func (m *Matches) Process(ctx context.Context, card MatchCard) error {
	url, err := m.Key(card)
	if err != nil {
		return retry.Permanent(err)
	}

	page, err := m.browser.Open(ctx, url, titleSelector)
	if err != nil {
		return fmt.Errorf("open match %s: %w", url, err)
	}
	defer page.Close()

	doc, err := page.Document(ctx)
	if err != nil {
		return fmt.Errorf("read match %s: %w", url, err)
	}

	title := strings.TrimSpace(doc.Find(titleSelector).First().Text())
	if title == "" {
		return source.NotFound(titleSelector)
	}

	// numbered only once the page is known to be a scorecard
	id, err := m.ids.Assign(ctx, url)
	if err != nil {
		return fmt.Errorf("assign id for %s: %w", url, err)
	}
	name, _, _ := strings.Cut(title, ",")
	match := source.MatchContext{ID: id, Name: textnorm.Normalize(name), URL: url}

	m.logger.Printf("Match %s: %s", match.ID, match.Name)

	doc.Find(inningsSelector).Each(func(i int, innings *goquery.Selection) {
		team := textnorm.Normalize(innings.Find(teamSelector).First().Text())
		if team == "" {
			m.logger.Printf("⚠️  Match %s innings %d: %v", match.ID, i+1, source.NotFound(teamSelector))
			return
		}
		for _, r := range m.extract(match, team, innings) {
			m.emitter.Emit(ctx, r)
		}
	})

	return nil
}

// More clicks the listing's show-more button
func (m *Matches) More(ctx context.Context) (bool, error) {
	if m.listing == nil {
		return false, nil
	}
	return m.listing.LoadMore(ctx, showMoreSelector, matchCardSelector)
}

// Close releases the listing page
func (m *Matches) Close() error {
	if m.listing == nil {
		return nil
	}
	err := m.listing.Close()
	m.listing = nil
	return err
}
