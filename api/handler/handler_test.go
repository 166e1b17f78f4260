package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/farescout/api/middleware"
	"github.com/use-agent/farescout/cache"
	"github.com/use-agent/farescout/config"
	"github.com/use-agent/farescout/llm"
	"github.com/use-agent/farescout/models"
	"github.com/use-agent/farescout/storage/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSearcher struct {
	mu      sync.Mutex
	calls   []*models.SearchRequest
	outcome *models.ScrapeOutcome
	err     error
}

func (f *fakeSearcher) Run(_ context.Context, req *models.SearchRequest) (*models.ScrapeOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.outcome, f.err
}

func (f *fakeSearcher) Stats() models.SessionStats {
	return models.SessionStats{MaxSessions: 2, ActiveSessions: 2}
}

var searchCfg = config.SearchConfig{
	OriginCity:         "Dublin",
	DefaultMaxResults:  10,
	DefaultMaxDuration: 5 * time.Minute,
	MaxDuration:        15 * time.Minute,
}

func call(h gin.HandlerFunc, method, body string) *httptest.ResponseRecorder {
	r := gin.New()
	r.Handle(method, "/", h)
	req := httptest.NewRequest(method, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

const searchBody = `{"destinations":[{"city":"Porto"},{"city":"Nice","iata_code":"NCE"}],
	"departure_date":"2025-06-01","return_date":"2025-06-08","budget":150,"max_duration_seconds":3600}`

func TestSearch(t *testing.T) {
	s := &fakeSearcher{outcome: &models.ScrapeOutcome{
		RunID:             "run-1",
		Offers:            []models.FlightOffer{{City: "Porto", Price: 80, Currency: "EUR"}},
		Elapsed:           2 * time.Second,
		TerminationReason: models.TerminationDestinations,
	}}

	w := call(Search(s, nil, searchCfg, ""), http.MethodPost, searchBody)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decode[models.SearchResponse](t, w)
	if !resp.Success || resp.RunID != "run-1" || len(resp.Results) != 1 || resp.ElapsedMs != 2000 {
		t.Errorf("response = %+v", resp)
	}
	if resp.CacheStatus != "" {
		t.Errorf("cache_status = %q without max_age", resp.CacheStatus)
	}

	req := s.calls[0]
	if req.Origin != "Dublin" || req.MaxBudget != 150 || req.MaxResults != 10 {
		t.Errorf("engine request = %+v", req)
	}
	if req.MaxDuration != 15*time.Minute {
		t.Errorf("MaxDuration = %v, want the 15m cap", req.MaxDuration)
	}
	if len(req.Destinations) != 2 || req.Destinations[1].IATACode != "NCE" {
		t.Errorf("destinations = %+v", req.Destinations)
	}
}

func TestSearchValidation(t *testing.T) {
	s := &fakeSearcher{}
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"budget":`},
		{"missing budget", `{"destinations":[{"city":"Porto"}],"departure_date":"2025-06-01","return_date":"2025-06-08"}`},
		{"empty city", `{"destinations":[{"city":""}],"departure_date":"2025-06-01","return_date":"2025-06-08","budget":100}`},
		{"missing dates", `{"destinations":[{"city":"Porto"}],"budget":100}`},
		{"reversed dates", `{"destinations":[{"city":"Porto"}],"departure_date":"2025-06-08","return_date":"2025-06-01","budget":100}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(Search(s, nil, searchCfg, ""), http.MethodPost, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
			resp := decode[models.ErrorResponse](t, w)
			if resp.Success || resp.ErrorCode != models.ErrCodeInvalidInput {
				t.Errorf("response = %+v", resp)
			}
		})
	}
	if len(s.calls) != 0 {
		t.Errorf("invalid requests reached the engine %d times", len(s.calls))
	}
}

func TestSearchExploreNeedsNoDates(t *testing.T) {
	s := &fakeSearcher{outcome: &models.ScrapeOutcome{TerminationReason: models.TerminationDestinations}}
	w := call(Search(s, nil, searchCfg, ""), http.MethodPost, `{"budget":100}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decode[models.SearchResponse](t, w)
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Errorf("results = %v, want an empty list", resp.Results)
	}
	if s.calls[0].Mode() != models.ModeExplore {
		t.Errorf("mode = %s", s.calls[0].Mode())
	}
}

func TestSearchSessionFailureKeepsResults(t *testing.T) {
	s := &fakeSearcher{
		outcome: &models.ScrapeOutcome{
			RunID:             "run-2",
			Offers:            []models.FlightOffer{{City: "Berlin", Price: 60}},
			TerminationReason: models.TerminationSessionFailure,
		},
		err: models.NewScrapeError(models.ErrCodeSessionFailure, "browser session failed", errors.New("crash")),
	}
	w := call(Search(s, nil, searchCfg, ""), http.MethodPost, searchBody)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	resp := decode[models.SearchResponse](t, w)
	if resp.Success || resp.ErrorCode != models.ErrCodeSessionFailure || len(resp.Results) != 1 {
		t.Errorf("response = %+v", resp)
	}
	if resp.TerminationReason != models.TerminationSessionFailure {
		t.Errorf("termination_reason = %s", resp.TerminationReason)
	}
}

func TestSearchCache(t *testing.T) {
	s := &fakeSearcher{outcome: &models.ScrapeOutcome{RunID: "run-3", TerminationReason: models.TerminationDestinations}}
	cc := cache.New(10)
	defer cc.Close()

	body := searchBody[:len(searchBody)-1] + `,"max_age":60000}`
	h := Search(s, cc, searchCfg, "")

	first := decode[models.SearchResponse](t, call(h, http.MethodPost, body))
	second := decode[models.SearchResponse](t, call(h, http.MethodPost, body))
	if first.CacheStatus != "miss" || second.CacheStatus != "hit" {
		t.Errorf("cache_status = %q then %q, want miss then hit", first.CacheStatus, second.CacheStatus)
	}
	if second.RunID != "run-3" {
		t.Errorf("cached run_id = %q", second.RunID)
	}
	if len(s.calls) != 1 {
		t.Errorf("engine called %d times, want 1", len(s.calls))
	}

	// A failed search is never cached.
	s.err = models.NewScrapeError(models.ErrCodeSessionFailure, "down", nil)
	other := `{"destinations":[{"city":"Riga"}],"departure_date":"2025-06-01","return_date":"2025-06-08","budget":150,"max_age":60000}`
	call(h, http.MethodPost, other)
	call(h, http.MethodPost, other)
	if len(s.calls) != 3 {
		t.Errorf("engine called %d times, want failures to bypass the cache", len(s.calls))
	}
}

func TestHealth(t *testing.T) {
	w := call(Health(&fakeSearcher{}, time.Now().Add(-time.Minute)), http.MethodGet, "")
	resp := decode[models.HealthResponse](t, w)
	if resp.Status != "degraded" || resp.SessionStats.MaxSessions != 2 || resp.Version != Version {
		t.Errorf("response = %+v", resp)
	}
}

type fakeSuggester struct {
	params llm.SuggestParams
	err    error
}

func (f *fakeSuggester) SuggestDestinations(_ context.Context, p llm.SuggestParams) ([]models.Destination, error) {
	f.params = p
	return []models.Destination{{City: "Lisbon", IATACode: "LIS"}}, f.err
}

func (f *fakeSuggester) AirportCodes(_ context.Context, cities []string) ([]models.Destination, error) {
	out := make([]models.Destination, len(cities))
	for i, c := range cities {
		out[i] = models.Destination{City: c, IATACode: "XXX"}
	}
	return out, f.err
}

func TestSuggest(t *testing.T) {
	sg := &fakeSuggester{}
	w := call(Suggest(sg), http.MethodPost, `{"departure_date":"2025-06-01","return_date":"2025-06-08","budget":120,"weather":"warm"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decode[models.SuggestResponse](t, w)
	if !resp.Success || len(resp.Destinations) != 1 || resp.Destinations[0].IATACode != "LIS" {
		t.Errorf("response = %+v", resp)
	}
	if sg.params.Count != 20 || sg.params.Weather != "warm" || sg.params.Budget != 120 {
		t.Errorf("params = %+v", sg.params)
	}

	sg.err = models.NewScrapeError(models.ErrCodeLLMRateLimited, "slow down", nil)
	w = call(Suggest(sg), http.MethodPost, `{"departure_date":"2025-06-01","return_date":"2025-06-08","budget":120}`)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}

	w = call(Suggest(sg), http.MethodPost, `{"departure_date":"2025-06-08","return_date":"2025-06-01","budget":120}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("reversed dates: status = %d, want 400", w.Code)
	}
}

func TestAirports(t *testing.T) {
	sg := &fakeSuggester{}
	w := call(Airports(sg), http.MethodPost, `{"cities":["Porto","Nice"]}`)
	resp := decode[models.SuggestResponse](t, w)
	if w.Code != http.StatusOK || len(resp.Destinations) != 2 {
		t.Errorf("status = %d, response = %+v", w.Code, resp)
	}
	if w := call(Airports(sg), http.MethodPost, `{"cities":[]}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty cities: status = %d, want 400", w.Code)
	}
}

func TestOffers(t *testing.T) {
	b, err := sqlite.New("file::memory:?cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.APIKeyContextKey, c.GetHeader("X-API-Key"))
		c.Next()
	})
	r.POST("/offers", SaveOffer(b, 120*time.Hour))
	r.GET("/offers", ListOffers(b))
	r.DELETE("/offers/:id", DeleteOffer(b))

	do := func(method, path, key, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", key)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	body := `{"offer":{"city":"Porto","price":89,"currency":"EUR","screenshot":"/screenshots/a.png","page_url":"https://www.kiwi.com/x"},
		"departure_date":"2025-06-01","return_date":"2025-06-08"}`
	w := do(http.MethodPost, "/offers", "alice", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("save status = %d, body %s", w.Code, w.Body.String())
	}
	saved := decode[models.SaveOfferResponse](t, w).Offer
	if saved == nil || saved.ID == "" || saved.PageURL != "https://www.kiwi.com/x" {
		t.Fatalf("saved = %+v", saved)
	}
	if ttl := saved.ExpiresAt.Sub(saved.CreatedAt); ttl != 120*time.Hour {
		t.Errorf("expiry = %v after creation, want 120h", ttl)
	}

	if w := do(http.MethodPost, "/offers", "alice", body); w.Code != http.StatusConflict {
		t.Errorf("duplicate save status = %d, want 409", w.Code)
	}
	if w := do(http.MethodPost, "/offers", "alice", `{"offer":{"city":"Porto","price":0},"departure_date":"2025-06-01","return_date":"2025-06-08"}`); w.Code != http.StatusBadRequest {
		t.Errorf("zero price status = %d, want 400", w.Code)
	}

	list := decode[models.OffersResponse](t, do(http.MethodGet, "/offers", "alice", ""))
	if len(list.Offers) != 1 || list.Offers[0].ID != saved.ID {
		t.Errorf("alice offers = %+v", list.Offers)
	}
	bobList := decode[models.OffersResponse](t, do(http.MethodGet, "/offers", "bob", ""))
	if bobList.Offers == nil || len(bobList.Offers) != 0 {
		t.Errorf("bob offers = %+v, want an empty list", bobList.Offers)
	}
	if w := do(http.MethodGet, "/offers?limit=0", "alice", ""); w.Code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d, want 400", w.Code)
	}

	if w := do(http.MethodDelete, "/offers/"+saved.ID, "bob", ""); w.Code != http.StatusNotFound {
		t.Errorf("foreign delete status = %d, want 404", w.Code)
	}
	if w := do(http.MethodDelete, "/offers/"+saved.ID, "alice", ""); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", w.Code)
	}
}
