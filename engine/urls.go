package engine

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/use-agent/farescout/models"
)

// defaultSlugs maps lower-case city names to the site's location slugs.
var defaultSlugs = map[string]string{
	"amsterdam":  "amsterdam-netherlands",
	"athens":     "athens-greece",
	"barcelona":  "barcelona-spain",
	"berlin":     "berlin-germany",
	"budapest":   "budapest-hungary",
	"copenhagen": "copenhagen-denmark",
	"edinburgh":  "edinburgh-united-kingdom",
	"faro":       "faro-portugal",
	"krakow":     "krakow-poland",
	"kraków":     "krakow-poland",
	"lisbon":     "lisbon-portugal",
	"london":     "london-united-kingdom",
	"madrid":     "madrid-spain",
	"malaga":     "malaga-spain",
	"málaga":     "malaga-spain",
	"milan":      "milan-italy",
	"munich":     "munich-germany",
	"new york":   "new-york-city-new-york-united-states",
	"nice":       "nice-france",
	"paris":      "paris-france",
	"porto":      "porto-portugal",
	"prague":     "prague-czechia",
	"rome":       "rome-italy",
	"tenerife":   "tenerife-spain",
	"vienna":     "vienna-austria",
	"warsaw":     "warsaw-poland",
}

// URLBuilder produces deterministic search URLs.
type URLBuilder struct {
	base       string
	originSlug string
	slugs      map[string]string
}

// NewURLBuilder merges extra into the built-in slug table; extra wins.
func NewURLBuilder(base, originSlug string, extra map[string]string) *URLBuilder {
	slugs := make(map[string]string, len(defaultSlugs)+len(extra))
	for k, v := range defaultSlugs {
		slugs[k] = v
	}
	for k, v := range extra {
		slugs[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &URLBuilder{
		base:       strings.TrimRight(base, "/"),
		originSlug: originSlug,
		slugs:      slugs,
	}
}

// Slug returns the table entry for city or a normalized fallback.
func (b *URLBuilder) Slug(city string) string {
	key := strings.ToLower(strings.Join(strings.Fields(city), " "))
	if s, ok := b.slugs[key]; ok {
		return s
	}
	return Slugify(city)
}

// Targeted returns the results URL for one destination, cheapest first.
func (b *URLBuilder) Targeted(dest models.Destination, from, to string) string {
	return b.base + "/en/search/results/" +
		url.PathEscape(b.originSlug) + "/" +
		url.PathEscape(b.Slug(dest.City)) + "/" +
		url.PathEscape(from) + "/" +
		url.PathEscape(to) + "?sortBy=price"
}

// Explore returns the "anywhere" tiles URL. Dates are optional.
func (b *URLBuilder) Explore(from, to string) string {
	u := b.base + "/en/search/tiles/" + url.PathEscape(b.originSlug) + "/anywhere"
	if from != "" && to != "" {
		u += "/" + url.PathEscape(from) + "/" + url.PathEscape(to)
	}
	return u + "?sortAggregateBy=price"
}

// Slugify lower-cases s, strips diacritics and collapses every run of
// non-alphanumerics into a single hyphen.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var sb strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			hyphen = false
			continue
		}
		if !hyphen && sb.Len() > 0 {
			sb.WriteByte('-')
			hyphen = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}
