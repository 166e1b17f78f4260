package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/farescout/api/handler"
	"github.com/use-agent/farescout/api/middleware"
	"github.com/use-agent/farescout/cache"
	"github.com/use-agent/farescout/config"
	"github.com/use-agent/farescout/metrics"
	"github.com/use-agent/farescout/storage"
)

// Searcher is what the search and health endpoints need from the engine.
type Searcher interface {
	handler.Searcher
	handler.SessionStatter
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health, metrics and screenshots are outside auth so probes and offer
// links always work. Offer routes are only mounted when store is non-nil.
func NewRouter(s Searcher, sg handler.Suggester, store storage.Backend, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.Static(cfg.Screenshot.PublicPrefix, cfg.Screenshot.Dir)

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(s, startTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Search
	protected.POST("/flights/search", handler.Search(s, cc, cfg.Search, cfg.Webhook.Secret))

	// Destination suggestions (LLM)
	protected.POST("/destinations/suggest", handler.Suggest(sg))
	protected.POST("/destinations/airports", handler.Airports(sg))

	// Saved offers
	if store != nil {
		protected.POST("/offers", handler.SaveOffer(store, cfg.Storage.OfferTTL))
		protected.GET("/offers", handler.ListOffers(store))
		protected.DELETE("/offers/:id", handler.DeleteOffer(store))
	}

	return r
}
