package engine

import (
	"testing"
	"time"

	"github.com/use-agent/farescout/models"
)

func TestShouldContinue(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		count   int
		want    bool
	}{
		{"fresh run", 0, 0, true},
		{"time left, results left", 59 * time.Second, 2, true},
		{"time exhausted, results left", time.Minute, 0, false},
		{"time overrun", 2 * time.Minute, 1, false},
		{"results reached, time left", time.Second, 3, false},
		{"results overrun", time.Second, 4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldContinue(tt.elapsed, time.Minute, tt.count, 3); got != tt.want {
				t.Errorf("ShouldContinue(%v, %d) = %v, want %v", tt.elapsed, tt.count, got, tt.want)
			}
		})
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestController(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	req := &models.SearchRequest{MaxResults: 2, MaxDuration: time.Minute}
	c := NewController(req, clock.Now)

	if !c.ShouldContinue(0) {
		t.Fatal("fresh controller should continue")
	}

	clock.Advance(30 * time.Second)
	if got := c.Elapsed(); got != 30*time.Second {
		t.Errorf("Elapsed() = %v, want 30s", got)
	}
	if c.ShouldContinue(2) {
		t.Error("should stop once maxResults is reached")
	}
	if got := c.Reason(2, true); got != models.TerminationMaxResults {
		t.Errorf("Reason(2, pending) = %s, want %s", got, models.TerminationMaxResults)
	}
	if got := c.Reason(1, false); got != models.TerminationDestinations {
		t.Errorf("Reason(1, done) = %s, want %s", got, models.TerminationDestinations)
	}

	clock.Advance(30 * time.Second)
	if c.ShouldContinue(0) {
		t.Error("should stop once elapsed reaches maxDuration")
	}
	if got := c.Reason(1, true); got != models.TerminationTimeBudget {
		t.Errorf("Reason(1, pending) = %s, want %s", got, models.TerminationTimeBudget)
	}
	if got := c.Reason(1, false); got != models.TerminationDestinations {
		t.Errorf("Reason(1, done) after timeout = %s, want %s", got, models.TerminationDestinations)
	}
}
