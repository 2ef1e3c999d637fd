package cricinfo

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fortuna/cricstats/internal/ingest/source"
	"github.com/fortuna/cricstats/internal/records"
	"github.com/fortuna/cricstats/internal/textnorm"
)

const (
	battingTableSelector = "table.ci-scorecard-table"
	bowlingTableSelector = "table.ds-w-full.ds-table.ds-table-md.ds-table-auto"

	minBattingCells = 8
	minBowlingCells = 11
)

// ExtractBatting reads the batting table of an innings. Rows with too few
// cells (headers, extras, totals) are skipped and do not consume a position.
func ExtractBatting(m source.MatchContext, team string, innings *goquery.Selection) []records.Record {
	var out []records.Record
	pos := 1

	innings.Find(battingTableSelector).First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < minBattingCells {
			return
		}
		cell := cellText(cells)

		out = append(out, records.Batting{
			MatchID:    m.ID,
			Match:      m.Name,
			Team:       team,
			BatPos:     pos,
			Name:       textnorm.Normalize(cells.Eq(0).Text()),
			NotOut:     strings.Contains(strings.ToLower(cell(1)), "not out"),
			Runs:       cell(2),
			Balls:      cell(3),
			Minutes:    cell(4),
			Fours:      cell(5),
			Sixes:      cell(6),
			StrikeRate: cell(7),
		})
		pos++
	})

	return out
}

// ExtractBowling reads the table headed "Bowling" inside an innings
func ExtractBowling(m source.MatchContext, team string, innings *goquery.Selection) []records.Record {
	table := bowlingTable(innings)
	if table == nil {
		return nil
	}

	var out []records.Record
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < minBowlingCells {
			return
		}
		cell := cellText(cells)

		out = append(out, records.Bowling{
			MatchID: m.ID,
			Match:   m.Name,
			Team:    team,
			Name:    textnorm.Normalize(cells.Eq(0).Text()),
			Overs:   cell(1),
			Maidens: cell(2),
			Runs:    cell(3),
			Wickets: cell(4),
			Economy: cell(5),
			Dots:    cell(6),
			Fours:   cell(7),
			Sixes:   cell(8),
			Wides:   cell(9),
			NoBalls: cell(10),
		})
	})

	return out
}

func bowlingTable(innings *goquery.Selection) *goquery.Selection {
	var found *goquery.Selection
	innings.Find(bowlingTableSelector).EachWithBreak(func(_ int, table *goquery.Selection) bool {
		if strings.TrimSpace(table.Find("thead th").First().Text()) == "Bowling" {
			found = table
			return false
		}
		return true
	})
	return found
}

func cellText(cells *goquery.Selection) func(int) string {
	return func(i int) string {
		return strings.TrimSpace(cells.Eq(i).Text())
	}
}
