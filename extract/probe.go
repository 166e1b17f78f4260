package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLProbe answers Probe queries against a card's outer HTML. Lookups only
// consider descendants of the card, never the card element itself.
type HTMLProbe struct {
	roots *goquery.Selection
}

// NewHTMLProbe parses html. Unparseable input yields a probe that matches nothing.
func NewHTMLProbe(html string) *HTMLProbe {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return &HTMLProbe{}
	}
	return &HTMLProbe{roots: doc.Find("body").Children()}
}

func (p *HTMLProbe) Text(selector string) string {
	if p == nil || p.roots == nil {
		return ""
	}
	return p.roots.Find(selector).First().Text()
}
