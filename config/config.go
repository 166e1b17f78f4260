package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Browser    BrowserConfig
	Search     SearchConfig
	Screenshot ScreenshotConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Cache      CacheConfig
	Log        LogConfig
	Storage    StorageConfig
	LLM        LLMConfig
	Webhook    WebhookConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instances. One browser is launched
// per search run.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxSessions bounds simultaneous browser instances across concurrent runs.
	MaxSessions int // default: 2

	// DefaultProxy is the proxy URL for all browser traffic.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Stealth injects go-rod/stealth evasions into every page.
	Stealth bool // default: true

	UserAgent      string
	AcceptLanguage string // default: "en-US,en;q=0.9"
	ViewportWidth  int    // default: 1280
	ViewportHeight int    // default: 720

	// BlockedResourceTypes lists resource types to block. Images stay enabled
	// because result cards are captured as evidence.
	// default: ["Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds drops requests to well-known ad and tracking domains.
	BlockAds bool // default: true
}

// SearchConfig controls the discovery engine.
type SearchConfig struct {
	// BaseURL is the flight-search site root.
	BaseURL string // default: "https://www.kiwi.com"

	// OriginCity is the token the city extractor strips from card text.
	OriginCity string // default: "Dublin"

	// OriginSlug is the origin path segment of search URLs.
	OriginSlug string // default: "dublin-ireland"

	// CitySlugs extends the built-in city→slug table ("city=slug,...").
	CitySlugs map[string]string

	// Currency labels extracted prices.
	Currency string // default: "EUR"

	NavigationTimeout time.Duration // default: 60s
	SettleDelay       time.Duration // default: 3s
	ConsentTimeout    time.Duration // per candidate; default: 2s
	NoResultsTimeout  time.Duration // per candidate; default: 2s
	CardsTimeout      time.Duration // per candidate; default: 10s
	ActionTimeout     time.Duration // text/attribute/click/screenshot; default: 10s
	RecoveryTimeout   time.Duration // default: 15s

	// CardsPerDestination is how many result cards are inspected per city.
	CardsPerDestination int // default: 3

	// ExploreCardLimit is how many destination cards explore mode evaluates.
	ExploreCardLimit int // default: 10

	// DismissOverlays strips fixed banners when no consent button matched.
	DismissOverlays bool // default: false

	// MatchPolicy picks among several price matches: "last" or "first".
	MatchPolicy string // default: "last"

	DefaultMaxResults  int           // default: 10
	DefaultMaxDuration time.Duration // default: 5m
	MaxDuration        time.Duration // cap for client-supplied durations; default: 15m
}

// ScreenshotConfig controls where evidence is written and how it is served.
type ScreenshotConfig struct {
	// Dir is created on demand.
	Dir string // default: "screenshots"

	// PublicPrefix is the URL path the directory is served under.
	PublicPrefix string // default: "/screenshots"
}

// CacheConfig controls the search outcome cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached outcomes.
	MaxEntries int // default: 200
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// StorageConfig selects the saved-offer backend.
type StorageConfig struct {
	// Driver is "sqlite", "postgres", or "none".
	Driver string // default: "sqlite"

	// DSN is the driver-specific data source name.
	DSN string // default: "farescout.db"

	// OfferTTL is how long a saved offer stays listed. 0 keeps offers forever.
	OfferTTL time.Duration // default: 120h
}

// LLMConfig points the destination suggester at an OpenAI-compatible API.
type LLMConfig struct {
	BaseURL string        // default: "https://api.groq.com/openai/v1"
	Model   string        // default: "llama-3.3-70b-versatile"
	APIKey  string        // env only; suggestions are disabled when empty
	Timeout time.Duration // default: 60s
}

// WebhookConfig controls completion webhooks.
type WebhookConfig struct {
	// Secret signs webhook bodies with HMAC-SHA256 when non-empty.
	Secret string
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("FARESCOUT_HOST", "0.0.0.0"),
			Port: envIntOr("FARESCOUT_PORT", 8080),
			Mode: envOr("FARESCOUT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("FARESCOUT_HEADLESS", true),
			MaxSessions:    envIntOr("FARESCOUT_MAX_SESSIONS", 2),
			DefaultProxy:   os.Getenv("FARESCOUT_PROXY"),
			NoSandbox:      envBoolOr("FARESCOUT_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("FARESCOUT_BROWSER_BIN"),
			Stealth:        envBoolOr("FARESCOUT_STEALTH", true),
			UserAgent:      envOr("FARESCOUT_USER_AGENT", defaultUserAgent),
			AcceptLanguage: envOr("FARESCOUT_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			ViewportWidth:  envIntOr("FARESCOUT_VIEWPORT_WIDTH", 1280),
			ViewportHeight: envIntOr("FARESCOUT_VIEWPORT_HEIGHT", 720),
			BlockedResourceTypes: envSliceOr("FARESCOUT_BLOCKED_RESOURCES", []string{
				"Font", "Media",
			}),
			BlockAds: envBoolOr("FARESCOUT_BLOCK_ADS", true),
		},
		Search: SearchConfig{
			BaseURL:             envOr("FARESCOUT_BASE_URL", "https://www.kiwi.com"),
			OriginCity:          envOr("FARESCOUT_ORIGIN_CITY", "Dublin"),
			OriginSlug:          envOr("FARESCOUT_ORIGIN_SLUG", "dublin-ireland"),
			CitySlugs:           envMapOr("FARESCOUT_CITY_SLUGS", nil),
			Currency:            envOr("FARESCOUT_CURRENCY", "EUR"),
			NavigationTimeout:   envDurationOr("FARESCOUT_NAV_TIMEOUT", 60*time.Second),
			SettleDelay:         envDurationOr("FARESCOUT_SETTLE_DELAY", 3*time.Second),
			ConsentTimeout:      envDurationOr("FARESCOUT_CONSENT_TIMEOUT", 2*time.Second),
			NoResultsTimeout:    envDurationOr("FARESCOUT_NO_RESULTS_TIMEOUT", 2*time.Second),
			CardsTimeout:        envDurationOr("FARESCOUT_CARDS_TIMEOUT", 10*time.Second),
			ActionTimeout:       envDurationOr("FARESCOUT_ACTION_TIMEOUT", 10*time.Second),
			RecoveryTimeout:     envDurationOr("FARESCOUT_RECOVERY_TIMEOUT", 15*time.Second),
			CardsPerDestination: envIntOr("FARESCOUT_CARDS_PER_DESTINATION", 3),
			ExploreCardLimit:    envIntOr("FARESCOUT_EXPLORE_CARD_LIMIT", 10),
			DismissOverlays:     envBoolOr("FARESCOUT_DISMISS_OVERLAYS", false),
			MatchPolicy:         envOr("FARESCOUT_MATCH_POLICY", "last"),
			DefaultMaxResults:   envIntOr("FARESCOUT_DEFAULT_MAX_RESULTS", 10),
			DefaultMaxDuration:  envDurationOr("FARESCOUT_DEFAULT_MAX_DURATION", 5*time.Minute),
			MaxDuration:         envDurationOr("FARESCOUT_MAX_DURATION", 15*time.Minute),
		},
		Screenshot: ScreenshotConfig{
			Dir:          envOr("FARESCOUT_SCREENSHOT_DIR", "screenshots"),
			PublicPrefix: envOr("FARESCOUT_SCREENSHOT_PREFIX", "/screenshots"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("FARESCOUT_AUTH_ENABLED", true),
			APIKeys: envSliceOr("FARESCOUT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("FARESCOUT_RATE_RPS", 1.0),
			Burst:             envIntOr("FARESCOUT_RATE_BURST", 5),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("FARESCOUT_CACHE_MAX_ENTRIES", 200),
		},
		Log: LogConfig{
			Level:  envOr("FARESCOUT_LOG_LEVEL", "info"),
			Format: envOr("FARESCOUT_LOG_FORMAT", "json"),
		},
		Storage: StorageConfig{
			Driver:   envOr("FARESCOUT_STORAGE_DRIVER", "sqlite"),
			DSN:      envOr("FARESCOUT_STORAGE_DSN", "farescout.db"),
			OfferTTL: envDurationOr("FARESCOUT_OFFER_TTL", 120*time.Hour),
		},
		LLM: LLMConfig{
			BaseURL: envOr("FARESCOUT_LLM_BASE_URL", "https://api.groq.com/openai/v1"),
			Model:   envOr("FARESCOUT_LLM_MODEL", "llama-3.3-70b-versatile"),
			APIKey:  os.Getenv("FARESCOUT_LLM_API_KEY"),
			Timeout: envDurationOr("FARESCOUT_LLM_TIMEOUT", 60*time.Second),
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("FARESCOUT_WEBHOOK_SECRET"),
		},
	}
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

// envMapOr parses "k1=v1,k2=v2". Keys are lower-cased; malformed pairs are skipped.
func envMapOr(key string, fallback map[string]string) map[string]string {
	pairs := envSliceOr(key, nil)
	if len(pairs) == 0 {
		return fallback
	}
	result := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		result[strings.ToLower(k)] = v
	}
	return result
}
