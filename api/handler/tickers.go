package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/finpulse/models"
	"github.com/use-agent/finpulse/ticker"
)

// Tickers returns a handler for POST /api/v1/tickers.
func Tickers() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.TickerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err)
			return
		}
		c.JSON(http.StatusOK, models.TickerResponse{
			Success:  true,
			Tickers:  ticker.Detect(req.Text),
			Mentions: ticker.Mentions(req.Text),
		})
	}
}
