package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/farescout/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// SessionStatter reports browser session utilisation.
type SessionStatter interface {
	Stats() models.SessionStats
}

// Health returns a handler for GET /api/v1/health.
//
// Status degrades when every browser session slot is in use, since new
// searches will queue.
func Health(s SessionStatter, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := s.Stats()

		status := "healthy"
		if stats.MaxSessions > 0 && stats.ActiveSessions >= stats.MaxSessions {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:       status,
			Uptime:       time.Since(startTime).Round(time.Second).String(),
			SessionStats: stats,
			Version:      Version,
		})
	}
}
