package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/farescout/config"
	"github.com/use-agent/farescout/models"
	"github.com/ysmood/gson"
)

// RodLauncher starts a dedicated Chromium process per session.
type RodLauncher struct {
	cfg config.BrowserConfig
}

// NewRodLauncher returns a launcher for cfg.
func NewRodLauncher(cfg config.BrowserConfig) *RodLauncher {
	return &RodLauncher{cfg: cfg}
}

// Launch starts the browser, connects to it and prepares a single page with
// stealth evasions, user agent, viewport, extra headers and request filtering.
func (r *RodLauncher) Launch(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := launcher.New().
		Headless(r.cfg.Headless).
		NoSandbox(r.cfg.NoSandbox)

	if r.cfg.BrowserBin != "" {
		l = l.Bin(r.cfg.BrowserBin)
	}
	if r.cfg.DefaultProxy != "" {
		l = l.Proxy(r.cfg.DefaultProxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	if r.cfg.AcceptLanguage != "" {
		l.Set(flags.Flag("lang"), r.cfg.AcceptLanguage)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeSessionFailure, "failed to launch browser", err)
	}
	slog.Debug("browser launched", "controlURL", controlURL)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, models.NewScrapeError(models.ErrCodeSessionFailure, "failed to connect to browser", err)
	}

	s := &rodSession{launcher: l, browser: b}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = s.Close()
		return nil, models.NewScrapeError(models.ErrCodeSessionFailure, "failed to open page", err)
	}
	if err := r.preparePage(page); err != nil {
		_ = s.Close()
		return nil, models.NewScrapeError(models.ErrCodeSessionFailure, "failed to prepare page", err)
	}

	s.router = newRequestFilter(r.cfg.BlockedResourceTypes, r.cfg.BlockAds).install(page)
	s.page = &rodPage{s: s, page: page}
	return s, nil
}

// preparePage must run before the first navigation.
func (r *RodLauncher) preparePage(page *rod.Page) error {
	if r.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	if r.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      r.cfg.UserAgent,
			AcceptLanguage: r.cfg.AcceptLanguage,
		}); err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}

	if r.cfg.ViewportWidth > 0 && r.cfg.ViewportHeight > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             r.cfg.ViewportWidth,
			Height:            r.cfg.ViewportHeight,
			DeviceScaleFactor: 1,
		}); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
	}

	if r.cfg.AcceptLanguage != "" {
		if err := (proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Accept-Language": r.cfg.AcceptLanguage}),
		}).Call(page); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
	}
	return nil
}

// toHeadersMap converts a plain string map to proto.NetworkHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	router   *rod.HijackRouter
	page     *rodPage

	closed atomic.Bool
	dead   atomic.Bool
}

func (s *rodSession) Page() Page { return s.page }

// Close is idempotent. It stops request filtering, closes the browser and
// reaps the process and its profile directory.
func (s *rodSession) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.router != nil {
		_ = s.router.Stop()
	}
	err := s.browser.Close()
	s.launcher.Kill()
	s.launcher.Cleanup()
	return err
}

func (s *rodSession) usable() error {
	if s.closed.Load() || s.dead.Load() {
		return ErrSessionClosed
	}
	return nil
}

// check classifies an error from the driver. Context errors pass through;
// anything else triggers a liveness probe so a crashed browser surfaces as
// ErrSessionClosed rather than a per-element failure.
func (s *rodSession) check(err error) error {
	if err == nil {
		return nil
	}
	if s.closed.Load() || s.dead.Load() {
		return ErrSessionClosed
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if _, verr := (proto.BrowserGetVersion{}).Call(s.browser.Timeout(2 * time.Second)); verr != nil {
		s.dead.Store(true)
		return fmt.Errorf("%w: %w", ErrSessionClosed, err)
	}
	return err
}

// lookupErr maps a failed element lookup. Running out of time is a miss.
func (s *rodSession) lookupErr(ctx context.Context, loc Locator, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	return s.check(err)
}

// querier is the lookup surface shared by *rod.Page and *rod.Element.
type querier interface {
	Element(selector string) (*rod.Element, error)
	ElementR(selector, jsRegex string) (*rod.Element, error)
	ElementX(xPath string) (*rod.Element, error)
	Elements(selector string) (rod.Elements, error)
	ElementsX(xpath string) (rod.Elements, error)
}

func (s *rodSession) find(ctx context.Context, q querier, loc Locator) (Element, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}

	var (
		el  *rod.Element
		err error
	)
	switch loc.Kind {
	case KindText:
		el, err = q.ElementR(loc.Query, "/"+loc.Text+"/i")
	case KindXPath:
		el, err = q.ElementX(loc.Query)
	default:
		el, err = q.Element(loc.Query)
	}
	if err == nil {
		err = el.WaitVisible()
	}
	if err != nil {
		return nil, s.lookupErr(ctx, loc, err)
	}
	return &rodElement{s: s, el: el}, nil
}

func (s *rodSession) findAll(q querier, loc Locator) ([]Element, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}

	var (
		els rod.Elements
		err error
	)
	if loc.Kind == KindXPath {
		els, err = q.ElementsX(loc.Query)
	} else {
		els, err = q.Elements(loc.Query)
	}
	if err != nil {
		return nil, s.check(err)
	}

	if loc.Kind != KindText {
		out := make([]Element, len(els))
		for i, el := range els {
			out[i] = &rodElement{s: s, el: el}
		}
		return out, nil
	}

	re, err := loc.TextMatcher()
	if err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		txt, err := el.Text()
		if err != nil || !re.MatchString(txt) {
			continue
		}
		out = append(out, &rodElement{s: s, el: el})
	}
	return out, nil
}

type rodPage struct {
	s    *rodSession
	page *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string, wait WaitStrategy) error {
	if err := p.s.usable(); err != nil {
		return err
	}
	pg := p.page.Context(ctx)

	// The lifecycle listener must exist before Navigate or the event is missed.
	var waitDOM func()
	if wait == WaitDOMContentLoaded {
		waitDOM = pg.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	}
	if err := pg.Navigate(url); err != nil {
		return p.s.check(err)
	}
	if waitDOM != nil {
		waitDOM()
		return p.s.check(ctx.Err())
	}
	return p.s.check(pg.WaitLoad())
}

func (p *rodPage) URL(ctx context.Context) string {
	if p.s.usable() != nil {
		return ""
	}
	res, err := p.page.Context(ctx).Eval(`() => window.location.href`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

func (p *rodPage) DismissOverlays(ctx context.Context) error {
	if err := p.s.usable(); err != nil {
		return err
	}
	_, err := p.page.Context(ctx).Eval(dismissOverlaysJS)
	return p.s.check(err)
}

func (p *rodPage) Find(ctx context.Context, loc Locator) (Element, error) {
	return p.s.find(ctx, p.page.Context(ctx), loc)
}

func (p *rodPage) FindAll(ctx context.Context, loc Locator) ([]Element, error) {
	return p.s.findAll(p.page.Context(ctx), loc)
}

type rodElement struct {
	s  *rodSession
	el *rod.Element
}

func (e *rodElement) Find(ctx context.Context, loc Locator) (Element, error) {
	return e.s.find(ctx, e.el.Context(ctx), loc)
}

func (e *rodElement) FindAll(ctx context.Context, loc Locator) ([]Element, error) {
	return e.s.findAll(e.el.Context(ctx), loc)
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	if err := e.s.usable(); err != nil {
		return "", err
	}
	txt, err := e.el.Context(ctx).Text()
	return txt, e.s.check(err)
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, error) {
	if err := e.s.usable(); err != nil {
		return "", err
	}
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", e.s.check(err)
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

func (e *rodElement) HTML(ctx context.Context) (string, error) {
	if err := e.s.usable(); err != nil {
		return "", err
	}
	html, err := e.el.Context(ctx).HTML()
	return html, e.s.check(err)
}

func (e *rodElement) Click(ctx context.Context) error {
	if err := e.s.usable(); err != nil {
		return err
	}
	el := e.el.Context(ctx)
	if err := el.ScrollIntoView(); err != nil {
		return e.s.check(err)
	}
	return e.s.check(el.Click(proto.InputMouseButtonLeft, 1))
}

func (e *rodElement) Screenshot(ctx context.Context) ([]byte, error) {
	if err := e.s.usable(); err != nil {
		return nil, err
	}
	el := e.el.Context(ctx)
	if err := el.ScrollIntoView(); err != nil {
		return nil, e.s.check(err)
	}
	png, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	return png, e.s.check(err)
}

// dismissOverlaysJS removes fixed or sticky banners and consent layers and
// restores page scrolling.
const dismissOverlaysJS = `() => {
	const selectors = [
		'[class*="cookie"]', '[class*="consent"]', '[class*="overlay"]',
		'[id*="cookie"]', '[id*="consent"]', '[id*="overlay"]',
		'[class*="gdpr"]', '[id*="gdpr"]', '[role="dialog"]',
	];
	for (const sel of selectors) {
		document.querySelectorAll(sel).forEach(el => {
			const pos = window.getComputedStyle(el).position;
			if (pos === 'fixed' || pos === 'sticky') {
				el.remove();
			}
		});
	}
	document.documentElement.style.overflow = '';
	document.body.style.overflow = '';
}`
