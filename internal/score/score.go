// Package score decomposes innings totals such as "157-6 (20)" into their parts.
package score

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultWickets stands in when a total carries no wicket count. A bare
// "183 (19.4)" means the side was bowled out, or the count is unknown.
const DefaultWickets = "10"

// Score is a parsed innings total.
type Score struct {
	Runs    string  `json:"runs"`
	Wickets string  `json:"wickets"`
	Overs   float64 `json:"overs"`
}

var (
	oversPattern = regexp.MustCompile(`\((\d+(?:[.,]\d+)?)\)`)
	nonDigit     = regexp.MustCompile(`\D`)
)

// Parse splits a composite score string. It never fails: malformed input yields
// empty runs, DefaultWickets and zero overs.
func Parse(raw string) Score {
	var runs, wickets string

	if left, right, ok := strings.Cut(raw, "-"); ok {
		runs = strings.TrimSpace(left)
		wickets, _, _ = strings.Cut(right, " ")
	} else {
		runs, _, _ = strings.Cut(raw, "(")
		runs = strings.TrimSpace(runs)
	}

	oversText := "0.0"
	if m := oversPattern.FindStringSubmatch(raw); m != nil {
		oversText = m[1]
	}

	runs = nonDigit.ReplaceAllString(runs, "")
	wickets = nonDigit.ReplaceAllString(wickets, "")
	if wickets == "" {
		wickets = DefaultWickets
	}

	return Score{
		Runs:    runs,
		Wickets: wickets,
		Overs:   parseOvers(oversText),
	}
}

// parseOvers reads a comma as the decimal separator.
func parseOvers(s string) float64 {
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0.0
	}
	return f
}

// FormatOvers renders overs the way the scorecards print them: always with a
// fractional part ("20.0", "19.4").
func FormatOvers(overs float64) string {
	s := strconv.FormatFloat(overs, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
