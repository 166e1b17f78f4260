package engine

import (
	"time"

	"github.com/use-agent/farescout/models"
)

// ShouldContinue is the run's stopping rule: keep going while there is time
// left and fewer than maxResults offers have been collected.
func ShouldContinue(elapsed, maxDuration time.Duration, count, maxResults int) bool {
	return elapsed < maxDuration && count < maxResults
}

// Controller binds the stopping rule to a start time. It only gates the next
// step; it never interrupts one in flight.
type Controller struct {
	start       time.Time
	now         func() time.Time
	maxDuration time.Duration
	maxResults  int
}

// NewController starts the clock for req.
func NewController(req *models.SearchRequest, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{
		start:       now(),
		now:         now,
		maxDuration: req.MaxDuration,
		maxResults:  req.MaxResults,
	}
}

func (c *Controller) Elapsed() time.Duration { return c.now().Sub(c.start) }

func (c *Controller) ShouldContinue(count int) bool {
	return ShouldContinue(c.Elapsed(), c.maxDuration, count, c.maxResults)
}

// Reason derives why the run stopped. pending reports whether destinations
// were left unvisited.
func (c *Controller) Reason(count int, pending bool) models.TerminationReason {
	switch {
	case count >= c.maxResults:
		return models.TerminationMaxResults
	case pending && c.Elapsed() >= c.maxDuration:
		return models.TerminationTimeBudget
	default:
		return models.TerminationDestinations
	}
}
