package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/farescout/llm"
	"github.com/use-agent/farescout/models"
)

// Suggester proposes destinations with an LLM.
type Suggester interface {
	SuggestDestinations(ctx context.Context, p llm.SuggestParams) ([]models.Destination, error)
	AirportCodes(ctx context.Context, cities []string) ([]models.Destination, error)
}

// Suggest returns a handler for POST /api/v1/destinations/suggest.
func Suggest(sg Suggester) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SuggestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err)
			return
		}
		req.Defaults()
		if req.ReturnDate < req.DepartureDate {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse(models.ErrCodeInvalidInput, "return_date is before departure_date"))
			return
		}

		dests, err := sg.SuggestDestinations(c.Request.Context(), llm.SuggestParams{
			DepartureDate: req.DepartureDate,
			ReturnDate:    req.ReturnDate,
			Budget:        req.Budget,
			Weather:       req.Weather,
			Count:         req.Count,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuggestResponse{Success: true, Destinations: dests})
	}
}

// Airports returns a handler for POST /api/v1/destinations/airports.
func Airports(sg Suggester) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AirportsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err)
			return
		}

		dests, err := sg.AirportCodes(c.Request.Context(), req.Cities)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuggestResponse{Success: true, Destinations: dests})
	}
}
