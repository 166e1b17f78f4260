// Package extract turns raw result-card text into prices and city names.
// Every function here is pure: no I/O, no panics, identical input yields
// identical output.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MatchPolicy picks among several matches of the same price pattern.
type MatchPolicy int

const (
	// MatchLast takes the last match; card text tends to end with the fare.
	MatchLast MatchPolicy = iota
	MatchFirst
)

// ParseMatchPolicy maps "last" and "first" to a policy.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "last":
		return MatchLast, nil
	case "first":
		return MatchFirst, nil
	default:
		return MatchLast, fmt.Errorf("extract: unknown match policy %q", s)
	}
}

func (p MatchPolicy) String() string {
	if p == MatchFirst {
		return "first"
	}
	return "last"
}

const (
	// amount accepts thousands separators (comma, dot, or a plain, no-break
	// or narrow no-break space) and an optional 1-2 digit fraction.
	amount   = `(\d{1,3}(?:[.,\x{0020}\x{00A0}\x{202F}]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?)`
	currency = `(?:€|EUR|\$|USD|£|GBP)`

	minPlausible = 10
	maxPlausible = 10000
)

// priceLadder is tried in order; the first pattern with any match wins.
var priceLadder = []*regexp.Regexp{
	regexp.MustCompile(`(?i)from\s+` + amount + `\s*` + currency),
	regexp.MustCompile(`(?i)` + amount + `\s*` + currency),
	regexp.MustCompile(`(?i)` + currency + `\s*` + amount),
	regexp.MustCompile(`(?i)tickets?\s+from\s+` + amount),
}

var digitRun = regexp.MustCompile(`\d+`)

// PriceExtractor extracts a fare from card text. The zero value uses MatchLast.
type PriceExtractor struct {
	Policy MatchPolicy
}

// Extract returns the price found in text, or 0 when nothing plausible is there.
func (p PriceExtractor) Extract(text string) float64 {
	for _, re := range priceLadder {
		matches := re.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}
		if v := parseAmount(p.pick(matches)[1]); v > 0 {
			return v
		}
	}
	return p.fallback(text)
}

// fallback considers every digit run and keeps those in the plausible range.
func (p PriceExtractor) fallback(text string) float64 {
	var plausible []float64
	for _, run := range digitRun.FindAllString(text, -1) {
		v, err := strconv.ParseFloat(run, 64)
		if err != nil {
			continue
		}
		if v >= minPlausible && v <= maxPlausible {
			plausible = append(plausible, v)
		}
	}
	if len(plausible) == 0 {
		return 0
	}
	if p.Policy == MatchFirst {
		return plausible[0]
	}
	return plausible[len(plausible)-1]
}

func (p PriceExtractor) pick(matches [][]string) []string {
	if p.Policy == MatchFirst {
		return matches[0]
	}
	return matches[len(matches)-1]
}

// parseAmount reads "1,234", "1 234", "1.234,50" and "165.50" style numbers.
// A separator followed by exactly one or two trailing digits is a decimal point.
func parseAmount(s string) float64 {
	s = strings.NewReplacer(" ", ",", "\u00a0", ",", "\u202f", ",").Replace(s)

	intPart, frac := s, ""
	if i := strings.LastIndexAny(s, ".,"); i >= 0 && len(s)-i-1 <= 2 {
		intPart, frac = s[:i], s[i+1:]
	}
	intPart = strings.NewReplacer(",", "", ".", "").Replace(intPart)

	num := intPart
	if frac != "" {
		num += "." + frac
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	return v
}
