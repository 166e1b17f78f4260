package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/use-agent/farescout/api/middleware"
	"github.com/use-agent/farescout/models"
	"github.com/use-agent/farescout/storage"
)

const (
	defaultOffersLimit = 50
	maxOffersLimit     = 200
)

func owner(c *gin.Context) string {
	return storage.Owner(c.GetString(middleware.APIKeyContextKey))
}

// SaveOffer returns a handler for POST /api/v1/offers. Offers expire after
// ttl; a zero ttl keeps them.
func SaveOffer(b storage.Backend, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SaveOfferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err)
			return
		}
		o := req.Offer
		if strings.TrimSpace(o.City) == "" || o.Price <= 0 {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse(models.ErrCodeInvalidInput, "offer needs a city and a positive price"))
			return
		}

		now := time.Now().UTC()
		scraped := o.DiscoveredAt
		if scraped.IsZero() {
			scraped = now
		}
		saved := &models.SavedOffer{
			ID:            uuid.NewString(),
			City:          strings.TrimSpace(o.City),
			Code:          o.Code,
			Price:         o.Price,
			Currency:      o.Currency,
			ScreenshotRef: o.ScreenshotRef,
			PageURL:       o.ResultPageURL,
			DepartureDate: req.DepartureDate,
			ReturnDate:    req.ReturnDate,
			ScrapedAt:     scraped.UTC(),
			CreatedAt:     now,
		}
		if ttl > 0 {
			saved.ExpiresAt = now.Add(ttl)
		}

		if err := b.Save(c.Request.Context(), owner(c), saved); err != nil {
			respondError(c, storageError(err))
			return
		}
		c.JSON(http.StatusCreated, models.SaveOfferResponse{Success: true, Offer: saved})
	}
}

// ListOffers returns a handler for GET /api/v1/offers.
func ListOffers(b storage.Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := queryInt(c, "limit", defaultOffersLimit)
		if err != nil || limit < 1 || limit > maxOffersLimit {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse(models.ErrCodeInvalidInput, "limit must be between 1 and 200"))
			return
		}
		offset, err := queryInt(c, "offset", 0)
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse(models.ErrCodeInvalidInput, "offset must be a non-negative integer"))
			return
		}

		offers, err := b.List(c.Request.Context(), owner(c), storage.Filter{Limit: limit, Offset: offset})
		if err != nil {
			respondError(c, storageError(err))
			return
		}
		if offers == nil {
			offers = []*models.SavedOffer{}
		}
		c.JSON(http.StatusOK, models.OffersResponse{Success: true, Offers: offers})
	}
}

// DeleteOffer returns a handler for DELETE /api/v1/offers/:id.
func DeleteOffer(b storage.Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := b.Delete(c.Request.Context(), owner(c), c.Param("id")); err != nil {
			respondError(c, storageError(err))
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// storageError maps backend sentinels onto API error codes.
func storageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		return models.NewScrapeError(models.ErrCodeDuplicate, "offer already saved for these dates", err)
	case errors.Is(err, storage.ErrNotFound):
		return models.NewScrapeError(models.ErrCodeNotFound, "offer not found", err)
	default:
		return models.NewScrapeError(models.ErrCodeStorage, "storage unavailable", err)
	}
}
