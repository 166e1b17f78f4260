package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// DateLayout is the calendar date format used in search URLs and requests.
const DateLayout = "2006-01-02"

// Destination is one candidate city supplied by the caller.
type Destination struct {
	City     string `json:"city" binding:"required"`
	IATACode string `json:"iata_code,omitempty"`
}

// SearchMode distinguishes the two request variants the engine supports.
type SearchMode string

const (
	// ModeTargeted searches each listed destination in turn.
	ModeTargeted SearchMode = "targeted"

	// ModeExplore ranks every destination card on the generic "anywhere" page.
	ModeExplore SearchMode = "explore"
)

// SearchRequest is the engine's input for a single run. It is read-only
// once handed to the engine.
type SearchRequest struct {
	Origin        string
	Destinations  []Destination
	DepartureDate string
	ReturnDate    string
	MaxBudget     float64
	MaxResults    int
	MaxDuration   time.Duration
}

// Mode reports whether the request targets specific destinations or
// explores broadly.
func (r *SearchRequest) Mode() SearchMode {
	if len(r.Destinations) == 0 {
		return ModeExplore
	}
	return ModeTargeted
}

// WithinBudget is the single budget predicate used by the engine.
func (r *SearchRequest) WithinBudget(price float64) bool {
	return price > 0 && price <= r.MaxBudget
}

// Validate rejects malformed requests before any browser is launched.
func (r *SearchRequest) Validate() error {
	if r.MaxBudget <= 0 {
		return invalid("budget must be positive")
	}
	if r.MaxResults <= 0 {
		return invalid("max_results must be positive")
	}
	if r.MaxDuration <= 0 {
		return invalid("max_duration must be positive")
	}
	for i, d := range r.Destinations {
		if strings.TrimSpace(d.City) == "" {
			return invalid(fmt.Sprintf("destinations[%d].city is empty", i))
		}
		// A city without letters or digits has no URL slug.
		if strings.IndexFunc(d.City, isSlugRune) < 0 {
			return invalid(fmt.Sprintf("destinations[%d].city %q has no letters or digits", i, d.City))
		}
	}

	// Explore mode may omit the date window entirely.
	if r.Mode() == ModeExplore && r.DepartureDate == "" && r.ReturnDate == "" {
		return nil
	}

	dep, err := time.Parse(DateLayout, r.DepartureDate)
	if err != nil {
		return invalid("departure_date must be YYYY-MM-DD")
	}
	ret, err := time.Parse(DateLayout, r.ReturnDate)
	if err != nil {
		return invalid("return_date must be YYYY-MM-DD")
	}
	if ret.Before(dep) {
		return invalid("return_date is before departure_date")
	}
	return nil
}

func isSlugRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func invalid(msg string) *ScrapeError {
	return NewScrapeError(ErrCodeInvalidInput, msg, nil)
}

// FlightOffer is one discovered destination/price/evidence tuple.
type FlightOffer struct {
	City          string    `json:"city"`
	Code          string    `json:"code,omitempty"`
	Price         float64   `json:"price"`
	Currency      string    `json:"currency"`
	ScreenshotRef string    `json:"screenshot"`
	ResultPageURL string    `json:"page_url"`
	DiscoveredAt  time.Time `json:"discovered_at"`
}

// TerminationReason records why a run stopped.
type TerminationReason string

const (
	TerminationMaxResults   TerminationReason = "MAX_RESULTS_REACHED"
	TerminationTimeBudget   TerminationReason = "TIME_BUDGET_EXHAUSTED"
	TerminationDestinations TerminationReason = "DESTINATIONS_EXHAUSTED"

	// Only set when Run also returns an error.
	TerminationSessionFailure TerminationReason = "SESSION_FAILURE"
	TerminationCanceled       TerminationReason = "CANCELED"
)

// ScrapeOutcome is produced once per run.
type ScrapeOutcome struct {
	RunID             string
	Offers            []FlightOffer
	Elapsed           time.Duration
	TerminationReason TerminationReason
}
