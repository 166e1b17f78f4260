// Package browser is the narrow automation surface the search engine drives:
// one session, one page, element lookup by locator, text, attributes, clicks
// and screenshots. The production implementation is backed by go-rod.
package browser

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no element matches a locator before the
	// context deadline.
	ErrNotFound = errors.New("browser: element not found")

	// ErrSessionClosed is returned by every operation after the owning
	// session has been closed or the browser process has died.
	ErrSessionClosed = errors.New("browser: session closed")
)

// WaitStrategy selects the lifecycle event Navigate waits for.
type WaitStrategy int

const (
	WaitDOMContentLoaded WaitStrategy = iota
	WaitLoad
)

func (w WaitStrategy) String() string {
	if w == WaitLoad {
		return "load"
	}
	return "domcontentloaded"
}

// Scope is anything elements can be looked up in: the page or an element.
type Scope interface {
	// Find waits until an element matching loc is visible.
	Find(ctx context.Context, loc Locator) (Element, error)

	// FindAll returns the elements currently matching loc without waiting.
	FindAll(ctx context.Context, loc Locator) ([]Element, error)
}

// Element is a handle to a DOM node.
type Element interface {
	Scope
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, error)
	HTML(ctx context.Context) (string, error)
	Click(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
}

// Page is the single tab a session drives.
type Page interface {
	Scope
	Navigate(ctx context.Context, url string, wait WaitStrategy) error
	URL(ctx context.Context) string

	// DismissOverlays strips fixed-position banners and modals.
	DismissOverlays(ctx context.Context) error
}

// Session owns a browser process and its page.
type Session interface {
	Page() Page
	Close() error
}

// Launcher starts sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}
