package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/use-agent/farescout/models"
)

func TestDeliverSignsBody(t *testing.T) {
	var gotSig, gotType string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotType = r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	ev := SearchEvent(&models.ScrapeOutcome{
		RunID:             "run-1",
		Offers:            []models.FlightOffer{{City: "Porto", Price: 80, Currency: "EUR"}},
		Elapsed:           1500 * time.Millisecond,
		TerminationReason: models.TerminationDestinations,
	}, nil)
	if err := Deliver(context.Background(), srv.URL, "s3cret", ev); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	if gotType != "application/json" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if want := Sign("s3cret", body); gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}

	var decoded struct {
		Type  string `json:"type"`
		RunID string `json:"run_id"`
		Data  struct {
			Success   bool                 `json:"success"`
			Results   []models.FlightOffer `json:"results"`
			ElapsedMs int64                `json:"elapsed_ms"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Type != EventSearchCompleted || decoded.RunID != "run-1" {
		t.Errorf("event = %+v", decoded)
	}
	if !decoded.Data.Success || len(decoded.Data.Results) != 1 || decoded.Data.ElapsedMs != 1500 {
		t.Errorf("data = %+v", decoded.Data)
	}
}

func TestDeliverUnsignedAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(SignatureHeader) != "" {
			t.Error("signature sent without a secret")
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := Deliver(context.Background(), srv.URL, "", SearchEvent(nil, nil)); err == nil {
		t.Error("Deliver() should fail on a 5xx response")
	}
}

func TestSearchEventFailed(t *testing.T) {
	err := models.NewScrapeError(models.ErrCodeSessionFailure, "browser session failed", errors.New("crash"))
	ev := SearchEvent(&models.ScrapeOutcome{RunID: "run-2"}, err)
	if ev.Type != EventSearchFailed {
		t.Errorf("Type = %s, want %s", ev.Type, EventSearchFailed)
	}
	data := ev.Data.(*models.SearchResponse)
	if data.Success || data.ErrorCode != models.ErrCodeSessionFailure {
		t.Errorf("data = %+v", data)
	}
	if data.Results == nil {
		t.Error("results should be an empty list, not null")
	}
}

func TestDeliverAsyncRetries(t *testing.T) {
	saved := retryDelays
	retryDelays = []time.Duration{0, time.Millisecond, time.Millisecond}
	defer func() { retryDelays = saved }()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	select {
	case <-DeliverAsync(srv.URL, "", SearchEvent(nil, nil)):
	case <-time.After(5 * time.Second):
		t.Fatal("DeliverAsync did not finish")
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("attempts = %d, want 3", n)
	}
}
