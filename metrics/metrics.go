// Package metrics exposes Prometheus collectors for search runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/farescout/models"
)

var (
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farescout_search_runs_total",
			Help: "Search runs by termination reason",
		},
		[]string{"mode", "reason"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "farescout_search_run_duration_seconds",
			Help:    "Wall-clock duration of search runs in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 900},
		},
		[]string{"mode"},
	)

	DestinationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farescout_destinations_total",
			Help: "Destinations processed by terminal state",
		},
		[]string{"state"},
	)

	OffersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farescout_offers_total",
			Help: "Offers accepted within budget",
		},
		[]string{"mode"},
	)

	SelectorMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farescout_selector_misses_total",
			Help: "Selector ladders exhausted without a match",
		},
		[]string{"ladder"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "farescout_browser_sessions_active",
			Help: "Browser sessions currently open",
		},
	)
)

// RecordRun updates run-level collectors from a finished outcome.
func RecordRun(mode models.SearchMode, outcome *models.ScrapeOutcome) {
	if outcome == nil {
		return
	}
	RunsTotal.WithLabelValues(string(mode), string(outcome.TerminationReason)).Inc()
	RunDuration.WithLabelValues(string(mode)).Observe(outcome.Elapsed.Seconds())
	OffersTotal.WithLabelValues(string(mode)).Add(float64(len(outcome.Offers)))
}

// Handler serves the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
