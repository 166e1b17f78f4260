package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/use-agent/farescout/browser"
	"github.com/use-agent/farescout/config"
	"github.com/use-agent/farescout/extract"
	"github.com/use-agent/farescout/metrics"
	"github.com/use-agent/farescout/models"
	"github.com/use-agent/farescout/selector"
)

// State is a step of the per-destination state machine.
type State string

const (
	StateNavigating      State = "NAVIGATING"
	StateConsent         State = "CONSENT_HANDLING"
	StateResultDetection State = "RESULT_DETECTION"
	StateNoResults       State = "NO_RESULTS"
	StateExtracting      State = "EXTRACTING"
	StateOfferFound      State = "OFFER_FOUND"
	StateCardsExhausted  State = "CARDS_EXHAUSTED"
	StateError           State = "ERROR"
	StateRecovery        State = "RECOVERY"
	StateFailed          State = "FAILED"
)

// Terminal reports whether s ends a destination.
func (s State) Terminal() bool {
	switch s {
	case StateNoResults, StateOfferFound, StateCardsExhausted, StateFailed:
		return true
	}
	return false
}

// target is one unit of work for the loop: a destination, or the single
// "anywhere" page in explore mode.
type target struct {
	label   string
	dest    models.Destination
	url     string
	explore bool
}

// DestinationResult is how one destination ended.
type DestinationResult struct {
	Target string
	URL    string
	State  State
	Offers []models.FlightOffer

	// Err is set for FAILED destinations.
	Err error
}

type loop struct {
	cfg      config.SearchConfig
	urls     *URLBuilder
	evidence *EvidenceStore
	prices   extract.PriceExtractor
	cities   *extract.CityExtractor
	now      func() time.Time
	sleep    func(context.Context, time.Duration)
}

// visit carries one destination through the state machine.
type visit struct {
	*loop
	page browser.Page
	req  *models.SearchRequest
	ctrl *Controller
	have int
	t    target
	log  *slog.Logger
	res  DestinationResult
}

// run processes t to a terminal state. Errors and panics are contained here;
// the caller inspects res.Err only for browser.ErrSessionClosed.
func (l *loop) run(ctx context.Context, page browser.Page, req *models.SearchRequest, ctrl *Controller, have int, t target, log *slog.Logger) (res DestinationResult) {
	v := &visit{
		loop: l,
		page: page,
		req:  req,
		ctrl: ctrl,
		have: have,
		t:    t,
		log:  log.With("target", t.label),
		res:  DestinationResult{Target: t.label, URL: t.url, State: StateNavigating},
	}
	defer func() {
		if p := recover(); p != nil {
			v.fail(ctx, fmt.Errorf("panic in %s: %v", v.res.State, p))
		}
		res = v.res
	}()

	if err := v.step(ctx); err != nil {
		v.fail(ctx, err)
	}
	return v.res
}

func (v *visit) transition(s State) {
	v.res.State = s
	v.log.Debug("destination state", "state", s)
}

func (v *visit) step(ctx context.Context) error {
	if err := v.navigate(ctx); err != nil {
		return err
	}

	v.transition(StateConsent)
	if err := v.consent(ctx); err != nil {
		return err
	}

	v.transition(StateResultDetection)
	_, empty, err := selector.Resolve(ctx, v.page, selector.NoResults, v.cfg.NoResultsTimeout)
	if err != nil {
		return err
	}
	if empty {
		v.transition(StateNoResults)
		return nil
	}

	ladder := selector.ResultCards
	if v.t.explore {
		ladder = selector.DestinationCards
	}
	loc, cards, ok, err := selector.ResolveAll(ctx, v.page, ladder, v.cfg.CardsTimeout)
	if err != nil {
		return err
	}
	if !ok {
		metrics.SelectorMisses.WithLabelValues(ladder.Name()).Inc()
		v.transition(StateCardsExhausted)
		return nil
	}
	v.log.Debug("cards located", "locator", loc.String(), "count", len(cards))

	v.transition(StateExtracting)
	if v.t.explore {
		return v.extractExplore(ctx, cards)
	}
	return v.extractTargeted(ctx, cards)
}

// navigate loads the search URL, retrying once with the load-event strategy.
func (v *visit) navigate(ctx context.Context) error {
	err := v.goTo(ctx, browser.WaitDOMContentLoaded)
	if err != nil {
		if sessionLost(err) || ctx.Err() != nil {
			return err
		}
		v.log.Warn("navigation failed, retrying with load strategy", "url", v.t.url, "error", err)

		if err = v.goTo(ctx, browser.WaitLoad); err != nil {
			if sessionLost(err) || ctx.Err() != nil {
				return err
			}
			return models.NewScrapeError(models.ErrCodeNavigation, "navigation to "+v.t.url+" failed", err)
		}
	}
	v.sleep(ctx, v.cfg.SettleDelay)
	return nil
}

func (v *visit) goTo(ctx context.Context, wait browser.WaitStrategy) error {
	nctx, cancel := context.WithTimeout(ctx, v.cfg.NavigationTimeout)
	defer cancel()
	return v.page.Navigate(nctx, v.t.url, wait)
}

// consent dismisses the cookie banner. Absence is normal.
func (v *visit) consent(ctx context.Context) error {
	m, ok, err := selector.Resolve(ctx, v.page, selector.Consent, v.cfg.ConsentTimeout)
	if err != nil {
		return err
	}

	actx, cancel := context.WithTimeout(ctx, v.cfg.ActionTimeout)
	defer cancel()

	if !ok {
		if !v.cfg.DismissOverlays {
			return nil
		}
		if err := v.page.DismissOverlays(actx); err != nil {
			if sessionLost(err) {
				return err
			}
			v.log.Debug("overlay removal failed", "error", err)
		}
		return nil
	}

	if err := m.Element.Click(actx); err != nil {
		if sessionLost(err) {
			return err
		}
		v.log.Debug("consent click failed", "locator", m.Locator.String(), "error", err)
	}
	return nil
}

// extractTargeted accepts the first of the leading cards whose price is
// within budget and whose evidence can be captured.
func (v *visit) extractTargeted(ctx context.Context, cards []browser.Element) error {
	limit := min(len(cards), v.cfg.CardsPerDestination)
	for i := 0; i < limit; i++ {
		if i > 0 && !v.ctrl.ShouldContinue(v.have) {
			v.log.Debug("budget exhausted between cards", "card", i)
			break
		}

		price, err := v.cardPrice(ctx, cards[i])
		if err != nil {
			if sessionLost(err) {
				return err
			}
			v.log.Debug("card unreadable", "card", i, "error", err)
			continue
		}
		if !v.req.WithinBudget(price) {
			v.log.Debug("card rejected", "card", i, "price", price, "budget", v.req.MaxBudget)
			continue
		}

		offer, err := v.capture(ctx, cards[i], v.t.dest.City, v.t.dest.IATACode, price)
		if err != nil {
			if hasCode(err, models.ErrCodeScreenshot) {
				v.log.Warn("card evidence unavailable", "card", i, "error", err)
				continue
			}
			return err
		}

		v.res.Offers = append(v.res.Offers, offer)
		v.log.Info("offer found", "city", offer.City, "price", offer.Price, "screenshot", offer.ScreenshotRef)
		v.transition(StateOfferFound)
		return nil
	}

	v.transition(StateCardsExhausted)
	return nil
}

// cardPrice prefers the card's price block and falls back to its full text.
func (v *visit) cardPrice(ctx context.Context, card browser.Element) (float64, error) {
	actx, cancel := context.WithTimeout(ctx, v.cfg.ActionTimeout)
	defer cancel()

	m, ok, err := selector.First(actx, card, selector.ResultPrice)
	if err != nil {
		return 0, err
	}
	if ok {
		if txt, err := m.Element.Text(actx); err == nil {
			if price := v.prices.Extract(txt); price > 0 {
				return price, nil
			}
		}
	}

	txt, err := card.Text(actx)
	if err != nil {
		return 0, err
	}
	return v.prices.Extract(txt), nil
}

type candidate struct {
	city  string
	price float64
	card  browser.Element
}

// extractExplore ranks destination cards by price and captures evidence for
// as many as the remaining result capacity allows.
func (v *visit) extractExplore(ctx context.Context, cards []browser.Element) error {
	limit := min(len(cards), v.cfg.ExploreCardLimit)

	var cands []candidate
	seen := make(map[string]int)
	for i := 0; i < limit; i++ {
		c, err := v.readDestinationCard(ctx, cards[i])
		if err != nil {
			if sessionLost(err) {
				return err
			}
			v.log.Debug("card unreadable", "card", i, "error", err)
			continue
		}
		if c.city == extract.Unknown || !v.req.WithinBudget(c.price) {
			v.log.Debug("card rejected", "card", i, "city", c.city, "price", c.price)
			continue
		}

		key := strings.ToLower(c.city)
		if j, dup := seen[key]; dup {
			if c.price < cands[j].price {
				cands[j] = c
			}
			continue
		}
		seen[key] = len(cands)
		cands = append(cands, c)
	}

	sort.SliceStable(cands, func(a, b int) bool { return cands[a].price < cands[b].price })

	for _, c := range cands {
		if !v.ctrl.ShouldContinue(v.have + len(v.res.Offers)) {
			break
		}
		offer, err := v.capture(ctx, c.card, c.city, "", c.price)
		if err != nil {
			if hasCode(err, models.ErrCodeScreenshot) {
				v.log.Warn("card evidence unavailable", "city", c.city, "error", err)
				continue
			}
			return err
		}
		v.res.Offers = append(v.res.Offers, offer)
		v.log.Info("offer found", "city", offer.City, "price", offer.Price, "screenshot", offer.ScreenshotRef)
	}

	if len(v.res.Offers) > 0 {
		v.transition(StateOfferFound)
	} else {
		v.transition(StateCardsExhausted)
	}
	return nil
}

func (v *visit) readDestinationCard(ctx context.Context, card browser.Element) (candidate, error) {
	actx, cancel := context.WithTimeout(ctx, v.cfg.ActionTimeout)
	defer cancel()

	txt, err := card.Text(actx)
	if err != nil {
		return candidate{}, err
	}
	aria, err := card.Attribute(actx, "aria-label")
	if err != nil {
		if sessionLost(err) {
			return candidate{}, err
		}
		aria = ""
	}
	var probe extract.Probe
	if html, err := card.HTML(actx); err == nil {
		probe = extract.NewHTMLProbe(html)
	} else if sessionLost(err) {
		return candidate{}, err
	}

	return candidate{
		city:  v.cities.Extract(txt, aria, probe),
		price: v.prices.Extract(txt),
		card:  card,
	}, nil
}

// capture screenshots card and builds the offer. A failed screenshot is
// reported as SCREENSHOT_FAILED so the caller can move on to another card;
// a failed write is not recoverable per card.
func (v *visit) capture(ctx context.Context, card browser.Element, city, code string, price float64) (models.FlightOffer, error) {
	actx, cancel := context.WithTimeout(ctx, v.cfg.ActionTimeout)
	defer cancel()

	png, err := card.Screenshot(actx)
	if err != nil {
		if sessionLost(err) {
			return models.FlightOffer{}, err
		}
		return models.FlightOffer{}, models.NewScrapeError(models.ErrCodeScreenshot, "card screenshot failed", err)
	}

	name := v.evidence.Name(v.urls.Slug(city), v.req.DepartureDate, v.req.ReturnDate, price)
	ref, err := v.evidence.Save(name, png)
	if err != nil {
		return models.FlightOffer{}, err
	}

	pageURL := v.page.URL(actx)
	if pageURL == "" {
		pageURL = v.t.url
	}
	return models.FlightOffer{
		City:          city,
		Code:          code,
		Price:         price,
		Currency:      v.cfg.Currency,
		ScreenshotRef: ref,
		ResultPageURL: pageURL,
		DiscoveredAt:  v.now(),
	}, nil
}

// fail ends the destination. Navigation failures, session loss and caller
// cancellation skip recovery; anything else gets one best-effort re-navigation.
// Offers accepted before the failure are kept.
func (v *visit) fail(ctx context.Context, err error) {
	v.res.Err = err
	if sessionLost(err) || hasCode(err, models.ErrCodeNavigation) || ctx.Err() != nil {
		v.log.Warn("destination abandoned", "state", v.res.State, "error", err)
		v.res.State = StateFailed
		return
	}

	v.log.Warn("destination failed", "state", v.res.State, "error", err)
	v.transition(StateError)
	v.transition(StateRecovery)

	rctx, cancel := context.WithTimeout(ctx, v.cfg.RecoveryTimeout)
	defer cancel()
	if rerr := v.page.Navigate(rctx, v.t.url, browser.WaitDOMContentLoaded); rerr != nil {
		v.log.Debug("recovery navigation failed", "error", rerr)
		if sessionLost(rerr) {
			v.res.Err = rerr
		}
	}
	v.transition(StateFailed)
}

func sessionLost(err error) bool {
	return errors.Is(err, browser.ErrSessionClosed)
}

func hasCode(err error, code string) bool {
	var se *models.ScrapeError
	return errors.As(err, &se) && se.Code == code
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
