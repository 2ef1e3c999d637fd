// Package cricbuzz scrapes match summaries from the Cricbuzz mobile site.
package cricbuzz

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fortuna/cricstats/internal/ingest/source"
	"github.com/fortuna/cricstats/internal/records"
	"github.com/fortuna/cricstats/internal/score"
	"github.com/fortuna/cricstats/internal/textnorm"
)

// MatchesURL lists every fixture of the tournament on one page
const MatchesURL = "https://m.cricbuzz.com/cricket-series/7476/icc-mens-t20-world-cup-2024/matches"

const (
	cardSelector   = "a.w-full.bg-cbWhite.flex.flex-col.p-3.gap-1"
	venueSelector  = "div.text-xs.text-cbTxtSec"
	scoreSelector  = "div.flex.flex-col.gap-3.my-2 > div"
	resultSelector = "span.text-cbComplete"

	venueSeparator = "•"
)

var marginPattern = regexp.MustCompile(`by (.+)`)

// Card is one fixture card, snapshotted from the listing
type Card struct {
	Index     int
	Href      string
	Title     string
	Selection *goquery.Selection
}

// Summary emits one match summary per fixture card. A card that cannot be
// read still yields a row, filled entirely with the sentinel.
type Summary struct {
	browser source.Browser
	url     string
	emitter *source.Emitter
	logger  *log.Logger

	listing source.Page
}

// NewSummary creates the match summary scrape. url defaults to MatchesURL.
func NewSummary(browser source.Browser, url string, emitter *source.Emitter, logger *log.Logger) *Summary {
	if url == "" {
		url = MatchesURL
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[cricbuzz] ", log.LstdFlags)
	}
	return &Summary{
		browser: browser,
		url:     url,
		emitter: emitter,
		logger:  logger,
	}
}

// Fetch opens the listing on first use and snapshots its cards
func (s *Summary) Fetch(ctx context.Context) ([]Card, error) {
	if s.listing == nil {
		page, err := s.browser.Open(ctx, s.url, cardSelector)
		if err != nil {
			return nil, fmt.Errorf("open matches listing: %w", err)
		}
		s.listing = page
	}

	doc, err := s.listing.Document(ctx)
	if err != nil {
		return nil, fmt.Errorf("read matches listing: %w", err)
	}

	var cards []Card
	doc.Find(cardSelector).Each(func(i int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		title, _ := sel.Attr("title")
		cards = append(cards, Card{Index: i, Href: href, Title: title, Selection: sel})
	})
	return cards, nil
}

// Key prefers the card link, then its title, then its position
func (s *Summary) Key(c Card) (string, error) {
	if url, err := source.Resolve(s.url, c.Href); err == nil {
		return url, nil
	}
	if title := strings.TrimSpace(c.Title); title != "" {
		return title, nil
	}
	return "card#" + strconv.Itoa(c.Index), nil
}

// Process parses a card and emits its summary
func (s *Summary) Process(ctx context.Context, c Card) error {
	summary, err := ParseCard(c.Selection)
	if err != nil {
		s.logger.Printf("⚠️  Card %d: %v (writing empty summary)", c.Index+1, err)
		summary = records.MatchSummary{}
	}
	s.emitter.Emit(ctx, summary)
	return nil
}

// More reports false; every fixture is on the first page
func (s *Summary) More(context.Context) (bool, error) {
	return false, nil
}

// Close releases the listing page
func (s *Summary) Close() error {
	if s.listing == nil {
		return nil
	}
	err := s.listing.Close()
	s.listing = nil
	return err
}

// ParseCard reads the teams, venue, scores and result of one fixture card.
// Fields that are missing are left empty and written as the sentinel.
func ParseCard(card *goquery.Selection) (records.MatchSummary, error) {
	var m records.MatchSummary
	if card == nil {
		return m, source.NotFound(cardSelector)
	}

	title, ok := card.Attr("title")
	if !ok {
		return m, source.NotFound(cardSelector + "[title]")
	}
	if err := parseTitle(title, &m); err != nil {
		return records.MatchSummary{}, err
	}

	venue := card.Find(venueSelector).First().Text()
	if i := strings.LastIndex(venue, venueSeparator); i >= 0 {
		m.Venue = textnorm.Clean(venue[i+len(venueSeparator):])
	}

	scores := card.Find(scoreSelector)
	if scores.Length() == 2 {
		scores.Each(func(i int, sel *goquery.Selection) {
			sc := score.Parse(sel.Text())
			m.Innings[i] = records.Innings{
				Runs:    sc.Runs,
				Wickets: sc.Wickets,
				Overs:   score.FormatOvers(sc.Overs),
			}
		})
	}

	result := card.Find(resultSelector)
	if result.Length() == 0 {
		return records.MatchSummary{}, source.NotFound(resultSelector)
	}
	text := textnorm.Clean(result.First().Text())
	m.Winner = text

	if strings.Contains(text, "won") {
		if match := marginPattern.FindStringSubmatch(text); match != nil {
			m.Margin = match[1]
		}
	} else {
		// no result, abandoned or upcoming: scores are not meaningful
		m.Innings = [2]records.Innings{}
	}

	return m, nil
}

// parseTitle splits "India vs Pakistan, 19th Match, Group A". Titles with
// fewer than three parts leave the fields empty.
func parseTitle(title string, m *records.MatchSummary) error {
	parts := strings.Split(title, ", ")
	if len(parts) < 3 {
		return nil
	}

	teams := strings.Split(parts[0], " vs ")
	if len(teams) != 2 {
		return &source.ParseError{Field: "teams", Raw: parts[0], Err: errors.New(`want "<team> vs <team>"`)}
	}

	m.Team1 = teams[0]
	m.Team2 = teams[1]
	m.MatchNo = strings.ReplaceAll(parts[1], "Match ", "")
	m.Group = strings.ReplaceAll(parts[2], "Group ", "")
	return nil
}
