package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/farescout/models"
)

// asScrapeError unwraps err to a ScrapeError, wrapping unknown errors as
// INTERNAL_ERROR.
func asScrapeError(err error) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	return models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
}

// respondError maps err to the correct HTTP status code and writes the
// generic error envelope.
func respondError(c *gin.Context, err error) {
	se := asScrapeError(err)
	c.JSON(mapErrorToStatus(se), models.NewErrorResponse(se.Code, se.Message))
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeSessionFailure:
		return http.StatusBadGateway // 502
	case models.ErrCodeLLMFailure, models.ErrCodeLLMAuthFailure, models.ErrCodeLLMRateLimited:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeDuplicate:
		return http.StatusConflict // 409
	default:
		return http.StatusInternalServerError // 500
	}
}

func invalidInput(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.NewErrorResponse(models.ErrCodeInvalidInput, err.Error()))
}
