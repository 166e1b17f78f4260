package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/farescout/cache"
	"github.com/use-agent/farescout/config"
	"github.com/use-agent/farescout/models"
	"github.com/use-agent/farescout/webhook"
)

// Searcher runs one flight search.
type Searcher interface {
	Run(ctx context.Context, req *models.SearchRequest) (*models.ScrapeOutcome, error)
}

// Search returns a handler for POST /api/v1/flights/search.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults and the duration cap.
//  2. Serve from the outcome cache when max_age allows.
//  3. Searcher.Run.
//  4. Cache successful outcomes, fire the webhook, respond.
//
// A session failure still returns the offers collected before it.
func Search(s Searcher, cc *cache.Cache, cfg config.SearchConfig, webhookSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// ── 1. Parse request ────────────────────────────────────────
		var body models.FlightSearchRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			invalidInput(c, err)
			return
		}
		body.Defaults(cfg.DefaultMaxResults, cfg.DefaultMaxDuration, cfg.MaxDuration)

		req := body.ToSearchRequest(cfg.OriginCity)
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}

		// ── 2. Cache lookup ─────────────────────────────────────────
		var cacheKey string
		if cc != nil && body.MaxAge > 0 {
			cacheKey = cache.Key(req)
			if cached, hit := cc.Get(cacheKey, body.MaxAge); hit {
				resp := models.NewSearchResponse(cached)
				resp.CacheStatus = "hit"
				c.JSON(http.StatusOK, resp)
				return
			}
		}

		// ── 3. Search ───────────────────────────────────────────────
		outcome, err := s.Run(c.Request.Context(), req)

		if body.WebhookURL != "" {
			webhook.DeliverAsync(body.WebhookURL, webhookSecret, webhook.SearchEvent(outcome, err))
		}

		if err != nil {
			slog.Warn("search failed", "error", err)
			respondSearchError(c, outcome, err)
			return
		}

		// ── 4. Cache store and respond ──────────────────────────────
		resp := models.NewSearchResponse(outcome)
		if cacheKey != "" {
			cc.Set(cacheKey, outcome)
			resp.CacheStatus = "miss"
		}
		c.JSON(http.StatusOK, resp)
	}
}

// respondSearchError writes the failure envelope, keeping partial results.
func respondSearchError(c *gin.Context, outcome *models.ScrapeOutcome, err error) {
	se := asScrapeError(err)

	resp := &models.SearchResponse{Results: []models.FlightOffer{}}
	if outcome != nil {
		resp = models.NewSearchResponse(outcome)
	}
	resp.Success = false
	resp.Error = se.Message
	resp.ErrorCode = se.Code

	c.JSON(mapErrorToStatus(se), resp)
}
