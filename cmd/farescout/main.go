package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/use-agent/farescout/api"
	"github.com/use-agent/farescout/browser"
	"github.com/use-agent/farescout/cache"
	"github.com/use-agent/farescout/config"
	"github.com/use-agent/farescout/engine"
	"github.com/use-agent/farescout/llm"
	"github.com/use-agent/farescout/storage"
	"github.com/use-agent/farescout/storage/postgres"
	"github.com/use-agent/farescout/storage/sqlite"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("farescout starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"origin", cfg.Search.OriginCity,
		"maxSessions", cfg.Browser.MaxSessions,
	)

	// ── 3. Initialise search engine ─────────────────────────────────
	// Browsers are launched per search, not here.
	eng, err := engine.New(
		browser.NewRodLauncher(cfg.Browser),
		cfg.Search,
		cfg.Screenshot,
		cfg.Browser.MaxSessions,
	)
	if err != nil {
		slog.Error("failed to initialise engine", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.Screenshot.Dir, 0o755); err != nil {
		slog.Error("screenshot directory not writable", "dir", cfg.Screenshot.Dir, "error", err)
		os.Exit(1)
	}

	// ── 4. Initialise storage ───────────────────────────────────────
	store, err := openStorage(context.Background(), cfg.Storage)
	if err != nil {
		slog.Error("failed to open storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	if store != nil {
		defer store.Close()
	}

	// ── 4b. Initialise cache and LLM client ─────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries)
	defer cc.Close()

	llmClient := llm.NewClient(nil, cfg.LLM, cfg.Search.OriginCity, cfg.Search.Currency)
	if !llmClient.Enabled() {
		slog.Warn("FARESCOUT_LLM_API_KEY not set, destination suggestions disabled")
	}

	// ── 5. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(eng, llmClient, store, cfg, cc, startTime)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Searches run for minutes; give them 30 seconds before cutting off.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("farescout stopped")
}

// openStorage opens the configured backend. Driver "none" disables saved
// offers and returns a nil backend.
func openStorage(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	switch strings.ToLower(cfg.Driver) {
	case "none", "":
		return nil, nil
	case "sqlite":
		return sqlite.New(cfg.DSN)
	case "postgres":
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return postgres.New(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
