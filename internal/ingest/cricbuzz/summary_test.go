package cricbuzz

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/cricstats/internal/ingest/source"
	"github.com/fortuna/cricstats/internal/ingest/source/sourcetest"
	"github.com/fortuna/cricstats/internal/paginate"
	"github.com/fortuna/cricstats/internal/records"
	"github.com/fortuna/cricstats/internal/retry"
	"github.com/fortuna/cricstats/internal/sink"
)

var quiet = log.New(io.Discard, "", 0)

const matchesPage = `<html><body>
<a class="w-full bg-cbWhite flex flex-col p-3 gap-1" href="/live-cricket-scores/91/ind-vs-pak" title="India vs Pakistan, 19th Match, Group A">
  <div class="text-xs text-cbTxtSec dark:text-cbTxtSec">Sun, Jun 09 • Nassau County International Cricket Stadium, New York</div>
  <div class="flex flex-col gap-3 my-2">
    <div>IND 119 (19)</div>
    <div>PAK 113-7 (20)</div>
  </div>
  <span class="text-cbComplete">India won by 6 runs</span>
</a>
<a class="w-full bg-cbWhite flex flex-col p-3 gap-1" href="/live-cricket-scores/92/usa-vs-ire" title="United States vs Ireland, 30th Match, Group A">
  <div class="text-xs text-cbTxtSec">Fri, Jun 14 • Central Broward Park, Lauderhill</div>
  <div class="flex flex-col gap-3 my-2"><div>-</div><div>-</div></div>
  <span class="text-cbComplete">Match abandoned due to rain</span>
</a>
<a class="w-full bg-cbWhite flex flex-col p-3 gap-1" href="/live-cricket-scores/93/final" title="India vs South Africa, Final">
  <div class="text-xs text-cbTxtSec">Sat, Jun 29 • Kensington Oval, Bridgetown</div>
  <div class="flex flex-col gap-3 my-2"><div>IND 176-7 (20)</div><div>RSA 169-8 (20)</div></div>
  <span class="text-cbComplete">India won by 7 runs</span>
</a>
<a class="w-full bg-cbWhite flex flex-col p-3 gap-1" href="/live-cricket-scores/94/broken" title="India vs Canada, 33rd Match, Group A">
  <div class="text-xs text-cbTxtSec">Sat, Jun 15 • Lauderhill</div>
</a>
<a class="w-full bg-cbWhite flex flex-col p-3 gap-1" href="/live-cricket-scores/91/ind-vs-pak" title="India vs Pakistan, 19th Match, Group A">
  <span class="text-cbComplete">India won by 6 runs</span>
</a>
</body></html>`

func cards(t *testing.T) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(matchesPage))
	require.NoError(t, err)
	return doc.Find(cardSelector)
}

func TestParseCardCompletedMatch(t *testing.T) {
	m, err := ParseCard(cards(t).Eq(0))
	require.NoError(t, err)

	assert.Equal(t, records.MatchSummary{
		Team1:   "India",
		Team2:   "Pakistan",
		MatchNo: "19th Match",
		Group:   "A",
		Venue:   "Nassau County International Cricket Stadium, New York",
		Innings: [2]records.Innings{
			{Runs: "119", Wickets: "10", Overs: "19.0"},
			{Runs: "113", Wickets: "7", Overs: "20.0"},
		},
		Margin: "6 runs",
		Winner: "India won by 6 runs",
	}, m)
}

func TestParseCardWithoutWinnerDropsScores(t *testing.T) {
	m, err := ParseCard(cards(t).Eq(1))
	require.NoError(t, err)

	row := records.Row(m)
	assert.Equal(t, []string{
		"United States", "Ireland", "30th Match", "A", "Central Broward Park, Lauderhill",
		"NA", "NA", "NA", "NA", "NA", "NA",
		"NA", "Match abandoned due to rain",
	}, row)
}

func TestParseCardShortTitle(t *testing.T) {
	m, err := ParseCard(cards(t).Eq(2))
	require.NoError(t, err)

	row := records.Row(m)
	assert.Equal(t, "NA", row[0])
	assert.Equal(t, "NA", row[3])
	assert.Equal(t, "Kensington Oval, Bridgetown", m.Venue)
	assert.Equal(t, "176", m.Innings[0].Runs)
	assert.Equal(t, "7 runs", m.Margin)
}

func TestParseCardCollapsesWhitespace(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<a class="w-full bg-cbWhite flex flex-col p-3 gap-1" href="/m/5" title="Oman vs Scotland, 20th Match, Group B">
  <div class="text-xs text-cbTxtSec">Sun, Jun 09 • Sir Vivian  Richards
    Stadium, North Sound</div>
  <div class="flex flex-col gap-3 my-2"><div>OMAN 150-7 (20)</div><div>SCO 153-3 (13.1)</div></div>
  <span class="text-cbComplete">Scotland won
    by 7 wkts</span>
</a>`))
	require.NoError(t, err)

	m, err := ParseCard(doc.Find(cardSelector).First())
	require.NoError(t, err)
	assert.Equal(t, "Sir Vivian Richards Stadium, North Sound", m.Venue)
	assert.Equal(t, "Scotland won by 7 wkts", m.Winner)
}

func TestParseCardMissingResult(t *testing.T) {
	_, err := ParseCard(cards(t).Eq(3))
	assert.ErrorIs(t, err, source.ErrElementNotFound)
}

func TestParseTitleRejectsMalformedTeams(t *testing.T) {
	var m records.MatchSummary
	err := parseTitle("India v Pakistan, 19th Match, Group A", &m)

	var perr *source.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "teams", perr.Field)
}

func TestSummaryScrape(t *testing.T) {
	const url = "https://m.cricbuzz.com/cricket-series/1/test/matches"
	browser := sourcetest.NewBrowser().Serve(url, matchesPage)

	var got [][]string
	emitter := source.NewEmitter(sink.Func(func(_ context.Context, r records.Record) error {
		got = append(got, records.Row(r))
		return nil
	}), quiet)

	scrape := NewSummary(browser, url, emitter, quiet)
	defer scrape.Close()

	opts := paginate.Options{Retry: retry.Policy{MaxAttempts: 1}}
	stats, err := paginate.New[Card](scrape, nil, opts, quiet).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Passes)
	assert.Equal(t, 1, stats.Duplicates)
	require.Len(t, got, 4)
	assert.Equal(t, "India won by 6 runs", got[0][12])

	// the card without a result becomes a full sentinel row
	for _, v := range got[3] {
		assert.Equal(t, "NA", v)
	}
}
