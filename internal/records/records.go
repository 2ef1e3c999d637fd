// Package records defines the fixed-shape rows every scrape emits.
package records

import (
	"fmt"
	"strconv"
	"strings"
)

// Sentinels used when a field cannot be determined
const (
	NotAvailableShort = "N/A"
	NotAvailable      = "NA"
	NotAvailableLong  = "Not Available"
)

// Schema describes one output table: CSV header, DB columns and fallback value.
type Schema struct {
	Name     string
	File     string
	Table    string
	Columns  []string // CSV header, in output order
	Fields   []string // DB column names, same order as Columns
	Sentinel string
}

var (
	BattingSchema = Schema{
		Name:     "batting",
		File:     "batting_stats.csv",
		Table:    "batting_stats",
		Columns:  []string{"match_id", "match", "team", "bat_pos", "name", "not_out", "runs", "balls", "minutes", "fours", "sixes", "strike_rate"},
		Fields:   []string{"match_id", "match", "team", "bat_pos", "name", "not_out", "runs", "balls", "minutes", "fours", "sixes", "strike_rate"},
		Sentinel: NotAvailableShort,
	}

	BowlingSchema = Schema{
		Name:     "bowling",
		File:     "bowling_stats.csv",
		Table:    "bowling_stats",
		Columns:  []string{"match_id", "match", "team", "name", "overs", "maidens", "runs", "wickets", "economy", "dots", "fours", "sixes", "wides", "no_balls"},
		Fields:   []string{"match_id", "match", "team", "name", "overs", "maidens", "runs", "wickets", "economy", "dots", "fours", "sixes", "wides", "no_balls"},
		Sentinel: NotAvailableShort,
	}

	MatchSummarySchema = Schema{
		Name:     "summary",
		File:     "match_summary.csv",
		Table:    "match_summaries",
		Columns:  []string{"Team 1", "Team 2", "Match No", "Group", "Venue", "Team 1 Runs", "Team 1 Wickets", "Team 1 Overs", "Team 2 Runs", "Team 2 Wickets", "Team 2 Overs", "Margin", "Winner"},
		Fields:   []string{"team1", "team2", "match_no", "group_name", "venue", "team1_runs", "team1_wickets", "team1_overs", "team2_runs", "team2_wickets", "team2_overs", "margin", "winner"},
		Sentinel: NotAvailable,
	}

	PlayerSchema = Schema{
		Name:     "roster",
		File:     "player_data.csv",
		Table:    "players",
		Columns:  []string{"Country", "Name", "Role", "Age", "Batting Type", "Bowling Type", "Image URL"},
		Fields:   []string{"country", "name", "role", "age", "batting_type", "bowling_type", "image_url"},
		Sentinel: NotAvailableLong,
	}
)

// Schemas lists every known schema
func Schemas() []Schema {
	return []Schema{BattingSchema, BowlingSchema, MatchSummarySchema, PlayerSchema}
}

// SchemaByName looks up a schema by its short name
func SchemaByName(name string) (Schema, bool) {
	for _, s := range Schemas() {
		if s.Name == name {
			return s, true
		}
	}
	return Schema{}, false
}

// Record is one output row
type Record interface {
	Schema() Schema
	Values() []string
}

// Row returns the record's values in column order, with every empty field
// replaced by the schema sentinel.
func Row(r Record) []string {
	schema := r.Schema()
	values := r.Values()
	row := make([]string, len(schema.Columns))
	for i := range row {
		v := ""
		if i < len(values) {
			v = strings.TrimSpace(values[i])
		}
		if v == "" {
			v = schema.Sentinel
		}
		row[i] = v
	}
	return row
}

// Map returns the filled row keyed by CSV column name
func Map(r Record) map[string]string {
	schema := r.Schema()
	row := Row(r)
	out := make(map[string]string, len(row))
	for i, col := range schema.Columns {
		out[col] = row[i]
	}
	return out
}

// Validate checks that the record supplies exactly one value per column
func Validate(r Record) error {
	schema := r.Schema()
	if got, want := len(r.Values()), len(schema.Columns); got != want {
		return fmt.Errorf("%s record has %d values, want %d", schema.Name, got, want)
	}
	return nil
}

// Describe renders a record for log lines
func Describe(r Record) string {
	schema := r.Schema()
	row := Row(r)
	parts := make([]string, len(row))
	for i, col := range schema.Columns {
		parts[i] = fmt.Sprintf("%s=%q", col, row[i])
	}
	return fmt.Sprintf("%s{%s}", schema.Name, strings.Join(parts, ", "))
}

// Batting is one batter's line in an innings
type Batting struct {
	MatchID    string `json:"match_id"`
	Match      string `json:"match"`
	Team       string `json:"team"`
	BatPos     int    `json:"bat_pos"`
	Name       string `json:"name"`
	NotOut     bool   `json:"not_out"`
	Runs       string `json:"runs"`
	Balls      string `json:"balls"`
	Minutes    string `json:"minutes"`
	Fours      string `json:"fours"`
	Sixes      string `json:"sixes"`
	StrikeRate string `json:"strike_rate"`
}

func (b Batting) Schema() Schema { return BattingSchema }

func (b Batting) Values() []string {
	notOut := "Out"
	if b.NotOut {
		notOut = "Not Out"
	}
	pos := ""
	if b.BatPos > 0 {
		pos = strconv.Itoa(b.BatPos)
	}
	return []string{b.MatchID, b.Match, b.Team, pos, b.Name, notOut, b.Runs, b.Balls, b.Minutes, b.Fours, b.Sixes, b.StrikeRate}
}

// Bowling is one bowler's figures in an innings
type Bowling struct {
	MatchID string `json:"match_id"`
	Match   string `json:"match"`
	Team    string `json:"team"`
	Name    string `json:"name"`
	Overs   string `json:"overs"`
	Maidens string `json:"maidens"`
	Runs    string `json:"runs"`
	Wickets string `json:"wickets"`
	Economy string `json:"economy"`
	Dots    string `json:"dots"`
	Fours   string `json:"fours"`
	Sixes   string `json:"sixes"`
	Wides   string `json:"wides"`
	NoBalls string `json:"no_balls"`
}

func (b Bowling) Schema() Schema { return BowlingSchema }

func (b Bowling) Values() []string {
	return []string{b.MatchID, b.Match, b.Team, b.Name, b.Overs, b.Maidens, b.Runs, b.Wickets, b.Economy, b.Dots, b.Fours, b.Sixes, b.Wides, b.NoBalls}
}

// Innings is one side's total inside a match summary
type Innings struct {
	Runs    string `json:"runs"`
	Wickets string `json:"wickets"`
	Overs   string `json:"overs"`
}

// MatchSummary is the result line of one fixture
type MatchSummary struct {
	Team1   string     `json:"team1"`
	Team2   string     `json:"team2"`
	MatchNo string     `json:"match_no"`
	Group   string     `json:"group"`
	Venue   string     `json:"venue"`
	Innings [2]Innings `json:"innings"`
	Margin  string     `json:"margin"`
	Winner  string     `json:"winner"`
}

func (m MatchSummary) Schema() Schema { return MatchSummarySchema }

func (m MatchSummary) Values() []string {
	return []string{
		m.Team1, m.Team2, m.MatchNo, m.Group, m.Venue,
		m.Innings[0].Runs, m.Innings[0].Wickets, m.Innings[0].Overs,
		m.Innings[1].Runs, m.Innings[1].Wickets, m.Innings[1].Overs,
		m.Margin, m.Winner,
	}
}

// Player is one squad member
type Player struct {
	Country     string `json:"country"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Age         string `json:"age"`
	BattingType string `json:"batting_type"`
	BowlingType string `json:"bowling_type"`
	ImageURL    string `json:"image_url"`
}

func (p Player) Schema() Schema { return PlayerSchema }

func (p Player) Values() []string {
	return []string{p.Country, p.Name, p.Role, p.Age, p.BattingType, p.BowlingType, p.ImageURL}
}
