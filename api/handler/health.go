package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/finpulse/models"
)

// Health returns a handler for GET /api/v1/health.
func Health(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sources []string
		if d.Runner != nil {
			sources = d.Runner.Sources()
		}
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  "healthy",
			Uptime:  d.clock().Since(d.StartTime).Round(time.Second).String(),
			Version: Version,
			Models:  d.Scorer.Models(),
			Sources: sources,
		})
	}
}
