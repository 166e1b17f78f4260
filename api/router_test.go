package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/farescout/config"
	"github.com/use-agent/farescout/llm"
	"github.com/use-agent/farescout/models"
)

type stubEngine struct{}

func (stubEngine) Run(context.Context, *models.SearchRequest) (*models.ScrapeOutcome, error) {
	return &models.ScrapeOutcome{TerminationReason: models.TerminationDestinations}, nil
}

func (stubEngine) Stats() models.SessionStats { return models.SessionStats{MaxSessions: 1} }

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := config.Load()
	cfg.Server.Mode = "test"
	cfg.Auth.Enabled = true
	cfg.Auth.APIKeys = []string{"secret"}
	cfg.Screenshot.Dir = t.TempDir()
	if err := os.WriteFile(filepath.Join(cfg.Screenshot.Dir, "flight-x.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	sg := llm.NewClient(nil, cfg.LLM, cfg.Search.OriginCity, cfg.Search.Currency)
	return NewRouter(stubEngine{}, sg, nil, cfg, nil, time.Now())
}

func TestRoutes(t *testing.T) {
	r := testRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		key    string
		body   string
		status int
	}{
		{"health is public", http.MethodGet, "/api/v1/health", "", "", http.StatusOK},
		{"metrics are public", http.MethodGet, "/metrics", "", "", http.StatusOK},
		{"screenshots are public", http.MethodGet, "/screenshots/flight-x.png", "", "", http.StatusOK},
		{"search needs a key", http.MethodPost, "/api/v1/flights/search", "", `{"budget":100}`, http.StatusUnauthorized},
		{"search", http.MethodPost, "/api/v1/flights/search", "secret", `{"budget":100}`, http.StatusOK},
		{"offers unmounted without storage", http.MethodGet, "/api/v1/offers", "secret", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Errorf("%s %s = %d, want %d (%s)", tt.method, tt.path, w.Code, tt.status, w.Body.String())
			}
		})
	}
}
