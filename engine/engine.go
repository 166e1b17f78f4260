// Package engine drives one browser session per search run through the
// per-destination state machine, gated by a time and result budget.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/use-agent/farescout/browser"
	"github.com/use-agent/farescout/config"
	"github.com/use-agent/farescout/extract"
	"github.com/use-agent/farescout/metrics"
	"github.com/use-agent/farescout/models"
)

// Engine runs flight searches. It is safe for concurrent use; each run owns
// its own browser session and the number of simultaneous sessions is capped.
type Engine struct {
	launcher    browser.Launcher
	loop        *loop
	urls        *URLBuilder
	sessions    *semaphore.Weighted
	maxSessions int
	active      atomic.Int32
	now         func() time.Time
}

type options struct {
	now   func() time.Time
	sleep func(context.Context, time.Duration)
}

// Option customises an Engine.
type Option func(*options)

// WithClock replaces time.Now for budgets, timestamps and evidence names.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSleep replaces the settle-delay wait.
func WithSleep(sleep func(context.Context, time.Duration)) Option {
	return func(o *options) { o.sleep = sleep }
}

// New builds an engine that launches sessions with l.
func New(l browser.Launcher, search config.SearchConfig, shots config.ScreenshotConfig, maxSessions int, opts ...Option) (*Engine, error) {
	o := options{now: time.Now, sleep: sleepCtx}
	for _, opt := range opts {
		opt(&o)
	}

	policy, err := extract.ParseMatchPolicy(search.MatchPolicy)
	if err != nil {
		return nil, err
	}
	if maxSessions < 1 {
		maxSessions = 1
	}

	urls := NewURLBuilder(search.BaseURL, search.OriginSlug, search.CitySlugs)
	return &Engine{
		launcher: l,
		urls:     urls,
		loop: &loop{
			cfg:      search,
			urls:     urls,
			evidence: NewEvidenceStore(shots.Dir, shots.PublicPrefix, o.now),
			prices:   extract.PriceExtractor{Policy: policy},
			cities:   extract.NewCityExtractor(search.OriginCity),
			now:      o.now,
			sleep:    o.sleep,
		},
		sessions:    semaphore.NewWeighted(int64(maxSessions)),
		maxSessions: maxSessions,
		now:         o.now,
	}, nil
}

// Stats reports browser session utilisation.
func (e *Engine) Stats() models.SessionStats {
	return models.SessionStats{
		MaxSessions:    e.maxSessions,
		ActiveSessions: int(e.active.Load()),
	}
}

// Run executes one search. Per-destination failures never surface; the
// returned error is non-nil only for malformed requests, session failures and
// cancellation, in which case the outcome (if any) holds the offers gathered
// before the abort.
func (e *Engine) Run(ctx context.Context, req *models.SearchRequest) (*models.ScrapeOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := slog.With("run_id", runID, "mode", req.Mode())

	if err := e.sessions.Acquire(ctx, 1); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeTimeout, "no browser session available", err)
	}
	defer e.sessions.Release(1)

	ctrl := NewController(req, e.now)
	outcome := &models.ScrapeOutcome{RunID: runID}
	defer func() {
		outcome.Elapsed = ctrl.Elapsed()
		metrics.RecordRun(req.Mode(), outcome)
		log.Info("search finished",
			"offers", len(outcome.Offers),
			"elapsed", outcome.Elapsed,
			"reason", outcome.TerminationReason,
		)
	}()

	sess, err := e.launcher.Launch(ctx)
	if err != nil {
		outcome.TerminationReason = models.TerminationSessionFailure
		return outcome, sessionFailure(err)
	}
	e.active.Add(1)
	metrics.ActiveSessions.Inc()
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn("browser close failed", "error", cerr)
		}
		e.active.Add(-1)
		metrics.ActiveSessions.Dec()
	}()

	targets := e.targets(req)
	page := sess.Page()

	var runErr error
	next := 0
	for next < len(targets) && ctrl.ShouldContinue(len(outcome.Offers)) {
		if err := ctx.Err(); err != nil {
			outcome.TerminationReason = models.TerminationCanceled
			runErr = models.NewScrapeError(models.ErrCodeTimeout, "search canceled", err)
			break
		}

		res := e.loop.run(ctx, page, req, ctrl, len(outcome.Offers), targets[next], log)
		next++
		metrics.DestinationsTotal.WithLabelValues(string(res.State)).Inc()
		outcome.Offers = append(outcome.Offers, res.Offers...)

		if errors.Is(res.Err, browser.ErrSessionClosed) {
			log.Error("browser session lost", "target", res.Target, "error", res.Err)
			outcome.TerminationReason = models.TerminationSessionFailure
			runErr = sessionFailure(res.Err)
			break
		}
	}

	if len(outcome.Offers) > req.MaxResults {
		outcome.Offers = outcome.Offers[:req.MaxResults]
	}
	// Cancellation during the final destination ends the loop without
	// passing the check at its top.
	if err := ctx.Err(); runErr == nil && err != nil && ctrl.ShouldContinue(len(outcome.Offers)) {
		outcome.TerminationReason = models.TerminationCanceled
		runErr = models.NewScrapeError(models.ErrCodeTimeout, "search canceled", err)
	}
	if runErr == nil {
		outcome.TerminationReason = ctrl.Reason(len(outcome.Offers), next < len(targets))
	}
	return outcome, runErr
}

// targets expands the request into loop work units.
func (e *Engine) targets(req *models.SearchRequest) []target {
	if req.Mode() == models.ModeExplore {
		return []target{{
			label:   "anywhere",
			url:     e.urls.Explore(req.DepartureDate, req.ReturnDate),
			explore: true,
		}}
	}
	out := make([]target, len(req.Destinations))
	for i, d := range req.Destinations {
		out[i] = target{
			label: d.City,
			dest:  d,
			url:   e.urls.Targeted(d, req.DepartureDate, req.ReturnDate),
		}
	}
	return out
}

func sessionFailure(err error) error {
	var se *models.ScrapeError
	if errors.As(err, &se) && se.Code == models.ErrCodeSessionFailure {
		return err
	}
	return models.NewScrapeError(models.ErrCodeSessionFailure, "browser session failed", err)
}
