package models

import "time"

// SearchResponse is the response for POST /api/v1/flights/search.
type SearchResponse struct {
	// Success is false only for malformed requests and session-level failures.
	// A successful search may legitimately return zero results.
	Success bool `json:"success"`

	RunID             string            `json:"run_id,omitempty"`
	Results           []FlightOffer     `json:"results"`
	ElapsedMs         int64             `json:"elapsed_ms"`
	TerminationReason TerminationReason `json:"termination_reason,omitempty"`

	// CacheStatus is "hit", "miss", or empty when caching was not requested.
	CacheStatus string `json:"cache_status,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewSearchResponse converts an engine outcome into the API envelope.
func NewSearchResponse(outcome *ScrapeOutcome) *SearchResponse {
	results := outcome.Offers
	if results == nil {
		results = []FlightOffer{}
	}
	return &SearchResponse{
		Success:           true,
		RunID:             outcome.RunID,
		Results:           results,
		ElapsedMs:         outcome.Elapsed.Milliseconds(),
		TerminationReason: outcome.TerminationReason,
	}
}

// ErrorResponse is the generic failure envelope.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewErrorResponse builds an ErrorResponse from a code and message.
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{Success: false, Error: message, ErrorCode: code}
}

// SuggestResponse is the response for POST /api/v1/destinations/suggest.
type SuggestResponse struct {
	Success      bool          `json:"success"`
	Destinations []Destination `json:"destinations"`
}

// SavedOffer is an accepted offer persisted for one API key.
type SavedOffer struct {
	ID            string    `json:"id"`
	City          string    `json:"city"`
	Code          string    `json:"code,omitempty"`
	Price         float64   `json:"price"`
	Currency      string    `json:"currency"`
	ScreenshotRef string    `json:"screenshot"`
	PageURL       string    `json:"page_url"`
	DepartureDate string    `json:"departure_date"`
	ReturnDate    string    `json:"return_date"`
	ScrapedAt     time.Time `json:"scraped_at"`
	CreatedAt     time.Time `json:"created_at"`

	// ExpiresAt hides the offer from listings once passed. Zero never expires.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// SaveOfferResponse is the response for POST /api/v1/offers.
type SaveOfferResponse struct {
	Success bool        `json:"success"`
	Offer   *SavedOffer `json:"offer"`
}

// OffersResponse is the response for GET /api/v1/offers.
type OffersResponse struct {
	Success bool          `json:"success"`
	Offers  []*SavedOffer `json:"offers"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string       `json:"status"` // "healthy" or "degraded"
	Uptime       string       `json:"uptime"`
	SessionStats SessionStats `json:"session_stats"`
	Version      string       `json:"version"`
}

// SessionStats reports browser session utilisation across concurrent runs.
type SessionStats struct {
	MaxSessions    int `json:"max_sessions"`
	ActiveSessions int `json:"active_sessions"`
}
