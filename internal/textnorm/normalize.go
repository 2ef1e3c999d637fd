// Package textnorm turns noisy scraped strings into clean field values.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Marker is the leading symbol scorecards put in front of a wicket-keeper's name.
const Marker = '†'

// Step is a single pure cleanup stage.
type Step func(string) string

// Steps is the ordered Normalize pipeline.
var Steps = []Step{
	StripParens,
	StripMarker,
	FoldASCII,
	StripSymbols,
	CollapseSpace,
}

var (
	parensPattern = regexp.MustCompile(`\s*\([^)]*\)`)
	markerPattern = regexp.MustCompile(`^` + string(Marker) + `\s*`)
)

// Normalize runs every step in Steps, in order.
// It is total and idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	out := raw
	for _, step := range Steps {
		out = step(out)
	}
	return out
}

// StripParens removes every parenthesised annotation, e.g. "(c)" or "(wk)",
// together with the whitespace in front of it.
func StripParens(s string) string {
	return parensPattern.ReplaceAllString(s, "")
}

// StripMarker removes a leading dagger and the whitespace after it.
func StripMarker(s string) string {
	return markerPattern.ReplaceAllString(s, "")
}

// FoldASCII decomposes accented characters and drops everything left outside ASCII.
func FoldASCII(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	result, _, err := transform.String(t, s)
	if err != nil {
		return dropNonASCII(s)
	}
	return result
}

func dropNonASCII(s string) string {
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)
}

// StripSymbols removes every rune that is not an ASCII letter, digit or whitespace.
func StripSymbols(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case unicode.IsSpace(r):
			return r
		default:
			return -1
		}
	}, s)
}

// CollapseSpace squeezes whitespace runs into one space and trims the ends.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Clean only collapses whitespace. Used for free-text cells (venues, roles,
// results) where punctuation carries meaning.
func Clean(raw string) string {
	return CollapseSpace(raw)
}
