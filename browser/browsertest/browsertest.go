// Package browsertest provides an in-memory browser.Launcher for tests.
// Pages are scripted per URL as a map from locator string to matching nodes.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/use-agent/farescout/browser"
)

// Node is a scripted element.
type Node struct {
	Text     string
	HTML     string
	Attrs    map[string]string
	Children Doc

	PNG           []byte
	TextErr       error
	ScreenshotErr error
	ClickErr      error
	PanicOnText   bool

	site   *Site
	clicks int
}

// Clicks reports how many times the node was clicked.
func (n *Node) Clicks() int {
	n.site.mu.Lock()
	defer n.site.mu.Unlock()
	return n.clicks
}

// Doc maps a Locator's String() to the nodes it matches, in document order.
type Doc map[string][]*Node

// Site is a scripted set of pages shared by every session it launches.
type Site struct {
	mu        sync.Mutex
	docs      map[string]Doc
	navFails  map[string]int
	navErr    map[string]error
	crashURLs map[string]bool
	navLog    []string
	launches  int
	closes    int
	active    int
	maxActive int

	// LaunchErr makes every Launch fail.
	LaunchErr error
}

// NewSite returns an empty site.
func NewSite() *Site {
	return &Site{
		docs:      make(map[string]Doc),
		navFails:  make(map[string]int),
		navErr:    make(map[string]error),
		crashURLs: make(map[string]bool),
	}
}

// Serve registers the document returned for url.
func (s *Site) Serve(url string, doc Doc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[url] = doc
	s.bind(doc)
}

func (s *Site) bind(doc Doc) {
	for _, nodes := range doc {
		for _, n := range nodes {
			n.site = s
			s.bind(n.Children)
		}
	}
}

// FailNavigation makes the next times navigations to url fail with err.
// A negative times fails every navigation.
func (s *Site) FailNavigation(url string, times int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navFails[url] = times
	s.navErr[url] = err
}

// Crash makes navigating to url kill the session.
func (s *Site) Crash(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crashURLs[url] = true
}

// Navigations returns every URL navigated to, in order.
func (s *Site) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navLog...)
}

// Stats returns launch and close counts and the peak number of open sessions.
func (s *Site) Stats() (launches, closes, maxActive int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launches, s.closes, s.maxActive
}

// Launch implements browser.Launcher.
func (s *Site) Launch(ctx context.Context) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LaunchErr != nil {
		return nil, s.LaunchErr
	}
	s.launches++
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	sess := &session{site: s}
	sess.page = &page{sess: sess}
	return sess, nil
}

type session struct {
	site   *Site
	page   *page
	closed bool
}

func (s *session) Page() browser.Page { return s.page }

func (s *session) Close() error {
	s.site.mu.Lock()
	defer s.site.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.site.closes++
	s.site.active--
	return nil
}

type page struct {
	sess *session
	url  string
	doc  Doc
}

func (p *page) Navigate(ctx context.Context, url string, _ browser.WaitStrategy) error {
	site := p.sess.site
	site.mu.Lock()
	defer site.mu.Unlock()
	if p.sess.closed {
		return browser.ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	site.navLog = append(site.navLog, url)

	if site.crashURLs[url] {
		p.sess.closed = true
		site.closes++
		site.active--
		return fmt.Errorf("%w: browser crashed", browser.ErrSessionClosed)
	}
	if n := site.navFails[url]; n != 0 {
		if n > 0 {
			site.navFails[url] = n - 1
		}
		err := site.navErr[url]
		if err == nil {
			err = errors.New("net::ERR_CONNECTION_RESET")
		}
		return err
	}

	p.url = url
	p.doc = site.docs[url]
	return nil
}

func (p *page) URL(context.Context) string {
	p.sess.site.mu.Lock()
	defer p.sess.site.mu.Unlock()
	return p.url
}

func (p *page) DismissOverlays(context.Context) error {
	p.sess.site.mu.Lock()
	defer p.sess.site.mu.Unlock()
	if p.sess.closed {
		return browser.ErrSessionClosed
	}
	return nil
}

func (p *page) Find(ctx context.Context, loc browser.Locator) (browser.Element, error) {
	p.sess.site.mu.Lock()
	doc := p.doc
	p.sess.site.mu.Unlock()
	return find(ctx, p.sess, doc, loc)
}

func (p *page) FindAll(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	p.sess.site.mu.Lock()
	doc := p.doc
	p.sess.site.mu.Unlock()
	return findAll(ctx, p.sess, doc, loc)
}

func find(ctx context.Context, s *session, doc Doc, loc browser.Locator) (browser.Element, error) {
	els, err := findAll(ctx, s, doc, loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %s", browser.ErrNotFound, loc)
	}
	return els[0], nil
}

func findAll(ctx context.Context, s *session, doc Doc, loc browser.Locator) ([]browser.Element, error) {
	if err := alive(s); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", browser.ErrNotFound, loc)
	}
	nodes := doc[loc.String()]
	out := make([]browser.Element, len(nodes))
	for i, n := range nodes {
		out[i] = &element{sess: s, node: n}
	}
	return out, nil
}

func alive(s *session) error {
	s.site.mu.Lock()
	defer s.site.mu.Unlock()
	if s.closed {
		return browser.ErrSessionClosed
	}
	return nil
}

type element struct {
	sess *session
	node *Node
}

func (e *element) Find(ctx context.Context, loc browser.Locator) (browser.Element, error) {
	return find(ctx, e.sess, e.node.Children, loc)
}

func (e *element) FindAll(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	return findAll(ctx, e.sess, e.node.Children, loc)
}

func (e *element) Text(context.Context) (string, error) {
	if err := alive(e.sess); err != nil {
		return "", err
	}
	if e.node.PanicOnText {
		panic("browsertest: scripted panic")
	}
	return e.node.Text, e.node.TextErr
}

func (e *element) Attribute(_ context.Context, name string) (string, error) {
	if err := alive(e.sess); err != nil {
		return "", err
	}
	return e.node.Attrs[name], nil
}

func (e *element) HTML(context.Context) (string, error) {
	if err := alive(e.sess); err != nil {
		return "", err
	}
	if e.node.HTML != "" {
		return e.node.HTML, nil
	}
	return "<div>" + e.node.Text + "</div>", nil
}

func (e *element) Click(context.Context) error {
	if err := alive(e.sess); err != nil {
		return err
	}
	e.sess.site.mu.Lock()
	e.node.clicks++
	e.sess.site.mu.Unlock()
	return e.node.ClickErr
}

func (e *element) Screenshot(context.Context) ([]byte, error) {
	if err := alive(e.sess); err != nil {
		return nil, err
	}
	if e.node.ScreenshotErr != nil {
		return nil, e.node.ScreenshotErr
	}
	if e.node.PNG != nil {
		return e.node.PNG, nil
	}
	return []byte("\x89PNG\r\n\x1a\n"), nil
}
