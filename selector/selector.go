// Package selector resolves semantic page targets through ordered ladders of
// alternative locators. Running off the end of a ladder is an expected
// outcome on a third-party page and is reported as ok=false, not as an error.
package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/farescout/browser"
)

// Ladder is an immutable, named, ordered list of candidate locators.
type Ladder struct {
	name       string
	candidates []browser.Locator
}

// NewLadder validates every candidate and returns the ladder.
func NewLadder(name string, candidates ...browser.Locator) (Ladder, error) {
	if len(candidates) == 0 {
		return Ladder{}, fmt.Errorf("selector: ladder %q has no candidates", name)
	}
	for _, c := range candidates {
		if err := c.Validate(); err != nil {
			return Ladder{}, fmt.Errorf("selector: ladder %q: %w", name, err)
		}
	}
	return Ladder{name: name, candidates: append([]browser.Locator(nil), candidates...)}, nil
}

// MustLadder is NewLadder for package-level ladders; it panics on invalid input.
func MustLadder(name string, candidates ...browser.Locator) Ladder {
	l, err := NewLadder(name, candidates...)
	if err != nil {
		panic(err)
	}
	return l
}

func (l Ladder) Name() string { return l.name }

func (l Ladder) Len() int { return len(l.candidates) }

// Candidates returns a copy of the ladder's locators in priority order.
func (l Ladder) Candidates() []browser.Locator {
	return append([]browser.Locator(nil), l.candidates...)
}

// Match is a resolved ladder rung.
type Match struct {
	Ladder  string
	Index   int
	Locator browser.Locator
	Element browser.Element
}

// Resolve tries each candidate in order, waiting up to perCandidate for it to
// become visible, and returns the first hit. ok is false when the ladder is
// exhausted or ctx is done. err is non-nil only when the session is gone.
func Resolve(ctx context.Context, scope browser.Scope, l Ladder, perCandidate time.Duration) (m Match, ok bool, err error) {
	for i, loc := range l.candidates {
		if ctx.Err() != nil {
			return Match{}, false, nil
		}

		el, err := find(ctx, scope, loc, perCandidate)
		if err != nil {
			if errors.Is(err, browser.ErrSessionClosed) {
				return Match{}, false, err
			}
			if !errors.Is(err, browser.ErrNotFound) {
				slog.Debug("selector candidate failed", "ladder", l.name, "locator", loc.String(), "error", err)
			}
			continue
		}

		slog.Debug("selector resolved", "ladder", l.name, "locator", loc.String(), "index", i)
		return Match{Ladder: l.name, Index: i, Locator: loc, Element: el}, true, nil
	}
	return Match{}, false, nil
}

// ResolveAll finds the first candidate that becomes visible and returns every
// element currently matching that same candidate, in presentation order.
func ResolveAll(ctx context.Context, scope browser.Scope, l Ladder, perCandidate time.Duration) (browser.Locator, []browser.Element, bool, error) {
	m, ok, err := Resolve(ctx, scope, l, perCandidate)
	if !ok {
		return browser.Locator{}, nil, false, err
	}

	els, err := scope.FindAll(ctx, m.Locator)
	if err != nil {
		if errors.Is(err, browser.ErrSessionClosed) {
			return browser.Locator{}, nil, false, err
		}
		els = nil
	}
	if len(els) == 0 {
		els = []browser.Element{m.Element}
	}
	return m.Locator, els, true, nil
}

// First returns the first candidate with a current match, without waiting.
func First(ctx context.Context, scope browser.Scope, l Ladder) (Match, bool, error) {
	for i, loc := range l.candidates {
		if ctx.Err() != nil {
			return Match{}, false, nil
		}
		els, err := scope.FindAll(ctx, loc)
		if err != nil {
			if errors.Is(err, browser.ErrSessionClosed) {
				return Match{}, false, err
			}
			continue
		}
		if len(els) > 0 {
			return Match{Ladder: l.name, Index: i, Locator: loc, Element: els[0]}, true, nil
		}
	}
	return Match{}, false, nil
}

func find(ctx context.Context, scope browser.Scope, loc browser.Locator, timeout time.Duration) (browser.Element, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return scope.Find(cctx, loc)
}
