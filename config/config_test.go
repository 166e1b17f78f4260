package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Search.OriginSlug != "dublin-ireland" {
		t.Errorf("Search.OriginSlug = %q, want dublin-ireland", cfg.Search.OriginSlug)
	}
	if cfg.Search.CardsPerDestination != 3 {
		t.Errorf("Search.CardsPerDestination = %d, want 3", cfg.Search.CardsPerDestination)
	}
	if cfg.Search.NavigationTimeout != 60*time.Second {
		t.Errorf("Search.NavigationTimeout = %v, want 60s", cfg.Search.NavigationTimeout)
	}
	if cfg.Search.MatchPolicy != "last" {
		t.Errorf("Search.MatchPolicy = %q, want last", cfg.Search.MatchPolicy)
	}
	if cfg.Storage.OfferTTL != 120*time.Hour {
		t.Errorf("Storage.OfferTTL = %v, want 120h", cfg.Storage.OfferTTL)
	}
	if cfg.LLM.APIKey != "" {
		t.Errorf("LLM.APIKey should be empty without env, got %q", cfg.LLM.APIKey)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FARESCOUT_PORT", "9090")
	t.Setenv("FARESCOUT_HEADLESS", "false")
	t.Setenv("FARESCOUT_NAV_TIMEOUT", "5s")
	t.Setenv("FARESCOUT_API_KEYS", "a, b ,,c")
	t.Setenv("FARESCOUT_CITY_SLUGS", "Porto=porto-portugal, bad, =x,Nice=nice-france")

	cfg := Load()

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Browser.Headless {
		t.Error("Browser.Headless should be false")
	}
	if cfg.Search.NavigationTimeout != 5*time.Second {
		t.Errorf("Search.NavigationTimeout = %v, want 5s", cfg.Search.NavigationTimeout)
	}
	if len(cfg.Auth.APIKeys) != 3 {
		t.Errorf("Auth.APIKeys = %v, want 3 keys", cfg.Auth.APIKeys)
	}

	want := map[string]string{"porto": "porto-portugal", "nice": "nice-france"}
	if len(cfg.Search.CitySlugs) != len(want) {
		t.Fatalf("CitySlugs = %v, want %v", cfg.Search.CitySlugs, want)
	}
	for k, v := range want {
		if cfg.Search.CitySlugs[k] != v {
			t.Errorf("CitySlugs[%q] = %q, want %q", k, cfg.Search.CitySlugs[k], v)
		}
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("FARESCOUT_PORT", "not-a-number")
	t.Setenv("FARESCOUT_SETTLE_DELAY", "soon")

	cfg := Load()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want fallback 8080", cfg.Server.Port)
	}
	if cfg.Search.SettleDelay != 3*time.Second {
		t.Errorf("Search.SettleDelay = %v, want fallback 3s", cfg.Search.SettleDelay)
	}
}
