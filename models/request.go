package models

import "time"

// FlightSearchRequest is the payload for POST /api/v1/flights/search.
type FlightSearchRequest struct {
	// Destinations is the list of candidate cities. Leave empty to explore
	// every destination the site offers from the origin.
	Destinations []Destination `json:"destinations" binding:"omitempty,max=50,dive"`

	// DepartureDate and ReturnDate bound the trip (YYYY-MM-DD).
	// Required unless exploring.
	DepartureDate string `json:"departure_date" binding:"omitempty,datetime=2006-01-02"`
	ReturnDate    string `json:"return_date" binding:"omitempty,datetime=2006-01-02"`

	// Budget is the maximum accepted price. Required.
	Budget float64 `json:"budget" binding:"required,gt=0"`

	// MaxResults caps the number of offers returned.
	// Default: FARESCOUT_DEFAULT_MAX_RESULTS.
	MaxResults int `json:"max_results,omitempty" binding:"omitempty,min=1,max=100"`

	// MaxDurationSeconds caps the wall-clock time of the run.
	// Default: FARESCOUT_DEFAULT_MAX_DURATION, clamped to FARESCOUT_MAX_DURATION.
	MaxDurationSeconds int `json:"max_duration_seconds,omitempty" binding:"omitempty,min=1"`

	// MaxAge enables the outcome cache: a cached outcome younger than MaxAge
	// milliseconds is returned without launching a browser.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`

	// WebhookURL receives a signed search.completed / search.failed event.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// Defaults applies default values to unset fields and clamps the duration.
func (r *FlightSearchRequest) Defaults(maxResults int, maxDuration, durationCap time.Duration) {
	if r.MaxResults == 0 {
		r.MaxResults = maxResults
	}
	if r.MaxDurationSeconds == 0 {
		r.MaxDurationSeconds = int(maxDuration.Seconds())
	}
	if durationCap > 0 && time.Duration(r.MaxDurationSeconds)*time.Second > durationCap {
		r.MaxDurationSeconds = int(durationCap.Seconds())
	}
}

// ToSearchRequest builds the engine request for the configured origin.
func (r *FlightSearchRequest) ToSearchRequest(origin string) *SearchRequest {
	dests := make([]Destination, len(r.Destinations))
	copy(dests, r.Destinations)
	return &SearchRequest{
		Origin:        origin,
		Destinations:  dests,
		DepartureDate: r.DepartureDate,
		ReturnDate:    r.ReturnDate,
		MaxBudget:     r.Budget,
		MaxResults:    r.MaxResults,
		MaxDuration:   time.Duration(r.MaxDurationSeconds) * time.Second,
	}
}

// SuggestRequest is the payload for POST /api/v1/destinations/suggest.
type SuggestRequest struct {
	DepartureDate string  `json:"departure_date" binding:"required,datetime=2006-01-02"`
	ReturnDate    string  `json:"return_date" binding:"required,datetime=2006-01-02"`
	Budget        float64 `json:"budget" binding:"required,gt=0"`

	// Weather is a free-form hint such as "warm" or "20-25°C".
	Weather string `json:"weather,omitempty"`

	// Count is the number of cities to ask for. Default: 20. Max: 40.
	Count int `json:"count,omitempty" binding:"omitempty,min=1,max=40"`
}

// Defaults applies default values to unset fields.
func (r *SuggestRequest) Defaults() {
	if r.Count == 0 {
		r.Count = 20
	}
}

// SaveOfferRequest is the payload for POST /api/v1/offers.
type SaveOfferRequest struct {
	Offer         FlightOffer `json:"offer"`
	DepartureDate string      `json:"departure_date" binding:"required,datetime=2006-01-02"`
	ReturnDate    string      `json:"return_date" binding:"required,datetime=2006-01-02"`
}

// AirportsRequest is the payload for POST /api/v1/destinations/airports.
type AirportsRequest struct {
	Cities []string `json:"cities" binding:"required,min=1,max=50,dive,required"`
}
