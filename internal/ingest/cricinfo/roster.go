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
	countrySelector    = ".ds-flex.ds-flex-row.ds-space-x-2.ds-items-center"
	playerSelector     = ".ds-relative.ds-flex.ds-flex-row.ds-space-x-4.ds-p-3"
	playerNameSelector = "span.ds-text-compact-s.ds-font-bold"
	playerRoleSelector = "p.ds-text-tight-s"
	playerInfoSelector = "div.ds-flex.ds-items-center.ds-space-x-1, div.ds-flex.ds-items-start.ds-space-x-1"
)

// Country is one squad entry on the squads listing
type Country struct {
	Name string
	Href string
}

// Roster walks the squads listing and emits one record per player. The
// listing has no show-more control, so More reloads it and the run ends once
// a reload shows no unseen country.
type Roster struct {
	browser source.Browser
	url     string
	emitter *source.Emitter
	logger  *log.Logger

	listing source.Page
}

// NewRoster creates the squads scrape. url defaults to SquadsURL.
func NewRoster(browser source.Browser, url string, emitter *source.Emitter, logger *log.Logger) *Roster {
	if url == "" {
		url = SquadsURL
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[cricinfo] ", log.LstdFlags)
	}
	return &Roster{
		browser: browser,
		url:     url,
		emitter: emitter,
		logger:  logger,
	}
}

// Fetch opens the squads listing on first use and returns its countries
func (r *Roster) Fetch(ctx context.Context) ([]Country, error) {
	if r.listing == nil {
		page, err := r.browser.Open(ctx, r.url, countrySelector)
		if err != nil {
			return nil, fmt.Errorf("open squads listing: %w", err)
		}
		r.listing = page
	}

	doc, err := r.listing.Document(ctx)
	if err != nil {
		return nil, fmt.Errorf("read squads listing: %w", err)
	}

	var countries []Country
	doc.Find(countrySelector).Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Find("img").First().Attr("alt")
		href, _ := s.Find("a").First().Attr("href")
		countries = append(countries, Country{Name: strings.TrimSpace(name), Href: href})
	})
	return countries, nil
}

// Key is the country name
func (r *Roster) Key(c Country) (string, error) {
	if c.Name == "" {
		return "", source.NotFound(countrySelector + " img[alt]")
	}
	return c.Name, nil
}

// Process opens one squad page and emits its players
func (r *Roster) Process(ctx context.Context, c Country) error {
	url, err := source.Resolve(r.url, c.Href)
	if err != nil {
		return retry.Permanent(fmt.Errorf("squad link for %s: %w", c.Name, err))
	}

	page, err := r.browser.Open(ctx, url, playerSelector)
	if err != nil {
		return fmt.Errorf("open squad %s: %w", c.Name, err)
	}
	defer page.Close()

	doc, err := page.Document(ctx)
	if err != nil {
		return fmt.Errorf("read squad %s: %w", c.Name, err)
	}

	players := doc.Find(playerSelector)
	if players.Length() == 0 {
		return source.NotFound(playerSelector)
	}

	emitted := 0
	players.Each(func(i int, s *goquery.Selection) {
		player, ok := ExtractPlayer(c.Name, s)
		if !ok {
			r.logger.Printf("⚠️  %s player %d: %v", c.Name, i+1, source.NotFound(playerNameSelector))
			return
		}
		r.emitter.Emit(ctx, player)
		emitted++
	})

	r.logger.Printf("✓ %s: %d players", c.Name, emitted)
	return nil
}

// More reloads the squads listing
func (r *Roster) More(ctx context.Context) (bool, error) {
	if r.listing == nil {
		return false, nil
	}
	if err := r.listing.Reload(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Close releases the listing page
func (r *Roster) Close() error {
	if r.listing == nil {
		return nil
	}
	err := r.listing.Close()
	r.listing = nil
	return err
}

// ExtractPlayer reads one player card. ok is false when the card has no name.
func ExtractPlayer(country string, s *goquery.Selection) (records.Player, bool) {
	name := textnorm.CollapseSpace(s.Find(playerNameSelector).First().Text())
	if name == "" {
		return records.Player{}, false
	}
	image, _ := s.Find("img").First().Attr("src")

	return records.Player{
		Country:     country,
		Name:        name,
		Role:        textnorm.Clean(s.Find(playerRoleSelector).First().Text()),
		Age:         playerInfo(s, "Age:"),
		BattingType: playerInfo(s, "Batting:"),
		BowlingType: playerInfo(s, "Bowling:"),
		ImageURL:    strings.TrimSpace(image),
	}, true
}

// playerInfo returns the value span of the info row carrying label. Empty
// values fall back to the roster sentinel when the row is written.
func playerInfo(player *goquery.Selection, label string) string {
	var value string
	player.Find(playerInfoSelector).EachWithBreak(func(_ int, div *goquery.Selection) bool {
		if !strings.Contains(div.Text(), label) {
			return true
		}
		value = textnorm.Clean(div.Find("span").Eq(1).Text())
		return false
	})
	return value
}
