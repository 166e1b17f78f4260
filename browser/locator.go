package browser

import (
	"fmt"
	"regexp"

	"github.com/andybalholm/cascadia"
)

// LocatorKind is how a Locator's query is interpreted.
type LocatorKind int

const (
	KindCSS LocatorKind = iota
	KindText
	KindXPath
)

// Locator identifies elements. Text locators match elements selected by
// Query whose visible text matches the case-insensitive pattern Text.
type Locator struct {
	Kind  LocatorKind
	Query string
	Text  string
}

// CSS returns a CSS selector locator.
func CSS(sel string) Locator { return Locator{Kind: KindCSS, Query: sel} }

// Text returns a locator for elements matching sel whose text matches pattern.
func Text(sel, pattern string) Locator {
	return Locator{Kind: KindText, Query: sel, Text: pattern}
}

// XPath returns an XPath locator.
func XPath(expr string) Locator { return Locator{Kind: KindXPath, Query: expr} }

func (l Locator) String() string {
	switch l.Kind {
	case KindText:
		return fmt.Sprintf("%s:text(%s)", l.Query, l.Text)
	case KindXPath:
		return "xpath=" + l.Query
	default:
		return l.Query
	}
}

// Validate checks that CSS queries parse and text patterns compile.
// XPath expressions are evaluated by the browser and are not checked.
func (l Locator) Validate() error {
	switch l.Kind {
	case KindCSS, KindText:
		if _, err := cascadia.ParseGroup(l.Query); err != nil {
			return fmt.Errorf("locator %q: %w", l, err)
		}
		if l.Kind == KindText {
			if _, err := regexp.Compile(l.Text); err != nil {
				return fmt.Errorf("locator %q: %w", l, err)
			}
		}
	case KindXPath:
		if l.Query == "" {
			return fmt.Errorf("locator: empty xpath")
		}
	default:
		return fmt.Errorf("locator: unknown kind %d", l.Kind)
	}
	return nil
}

// TextMatcher compiles the case-insensitive text pattern of a text locator.
func (l Locator) TextMatcher() (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + l.Text)
}
