package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Unknown is returned when no stage yields a usable city name.
const Unknown = "unknown"

// ProbeSelectors are the inner-element CSS selectors tried by the last stage.
var ProbeSelectors = []string{
	`[data-test*="destination"]`,
	`[class*="destination"]`,
	`h2`,
	`h3`,
	`h4`,
	`[class*="title"]`,
	`[class*="city"]`,
}

var (
	whitespace      = regexp.MustCompile(`\s+`)
	loadingPrefix   = regexp.MustCompile(`(?i)^loading`)
	stopKeyword     = regexp.MustCompile(`(?i)tickets|from`)
	edgeSeparators  = regexp.MustCompile(`^[→,:\-\s]+|[→,:\-\s]+$`)
	ariaDestination = regexp.MustCompile(`(?i)\bto\s+([\p{L}\s'-]+)`)
	probeNoise      = regexp.MustCompile(`[→,]`)
)

// Probe reads the text of the first element inside a card matching a CSS
// selector. It returns "" when nothing matches.
type Probe interface {
	Text(selector string) string
}

// CityExtractor derives a destination city from a card. Cards usually read
// "<origin> → <city> Tickets from <price>", so the origin token anchors stage one.
type CityExtractor struct {
	origin   string
	originRe *regexp.Regexp
}

// NewCityExtractor returns an extractor for cards departing from origin.
func NewCityExtractor(origin string) *CityExtractor {
	origin = strings.TrimSpace(origin)
	c := &CityExtractor{origin: origin}
	if origin != "" {
		c.originRe = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(origin))
	}
	return c
}

// Extract runs the three stages in order and returns the first usable
// result, or Unknown. probe may be nil.
func (c *CityExtractor) Extract(rawText, ariaLabel string, probe Probe) string {
	if city, ok := c.fromText(rawText); ok {
		return city
	}
	if city, ok := c.fromAriaLabel(ariaLabel); ok {
		return city
	}
	if probe != nil {
		if city, ok := c.fromProbe(probe); ok {
			return city
		}
	}
	return Unknown
}

// fromText slices the city between the origin token and the first
// "tickets"/"from" keyword.
func (c *CityExtractor) fromText(raw string) (string, bool) {
	s := strings.TrimSpace(whitespace.ReplaceAllString(raw, " "))
	if s == "" {
		return "", false
	}

	if c.originRe != nil {
		if loc := c.originRe.FindStringIndex(s); loc != nil {
			s = strings.TrimSpace(s[loc[1]:])
		}
	}
	s = strings.TrimSpace(loadingPrefix.ReplaceAllString(s, ""))
	if loc := stopKeyword.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	s = strings.TrimSpace(edgeSeparators.ReplaceAllString(s, ""))

	return s, c.usable(s)
}

func (c *CityExtractor) fromAriaLabel(label string) (string, bool) {
	m := ariaDestination.FindStringSubmatch(label)
	if m == nil {
		return "", false
	}
	s := strings.TrimSpace(whitespace.ReplaceAllString(m[1], " "))
	if loc := stopKeyword.FindStringIndex(s); loc != nil && loc[0] > 0 {
		s = s[:loc[0]]
	}
	s = strings.TrimSpace(edgeSeparators.ReplaceAllString(s, ""))
	return s, c.usable(s)
}

func (c *CityExtractor) fromProbe(probe Probe) (string, bool) {
	for _, sel := range ProbeSelectors {
		txt := probeNoise.ReplaceAllString(probe.Text(sel), "")
		txt = strings.TrimSpace(whitespace.ReplaceAllString(txt, " "))
		if utf8.RuneCountInString(txt) > 1 && c.usable(txt) {
			return txt, true
		}
	}
	return "", false
}

func (c *CityExtractor) usable(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0 && !strings.EqualFold(s, c.origin)
}
