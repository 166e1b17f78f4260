package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/farescout/models"
)

func TestHandlerExposesRunMetrics(t *testing.T) {
	RecordRun(models.ModeTargeted, &models.ScrapeOutcome{
		Offers:            []models.FlightOffer{{City: "Porto", Price: 80}},
		Elapsed:           12 * time.Second,
		TerminationReason: models.TerminationMaxResults,
	})
	RecordRun(models.ModeTargeted, nil)
	DestinationsTotal.WithLabelValues("OFFER_FOUND").Inc()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	output := string(body)

	for _, want := range []string{
		`farescout_search_runs_total{mode="targeted",reason="MAX_RESULTS_REACHED"}`,
		`farescout_search_run_duration_seconds_bucket`,
		`farescout_offers_total{mode="targeted"}`,
		`farescout_destinations_total{state="OFFER_FOUND"}`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in exposition", want)
		}
	}
}
