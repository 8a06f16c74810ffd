package handler

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/finpulse/cache"
	"github.com/use-agent/finpulse/models"
)

// Sentiment returns a handler for POST /api/v1/sentiment.
func Sentiment(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SentimentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err)
			return
		}

		model := req.Model
		if model == "" {
			model = d.Scorer.Default()
		}
		key := cache.Key("sentiment", model, strconv.FormatBool(req.All), req.Text)
		if d.Results != nil {
			if cached, ok := d.Results.Get(key); ok {
				// no model ran for this request
				results := slices.Clone(cached)
				for i := range results {
					results[i].Duration = 0
				}
				c.JSON(http.StatusOK, models.SentimentResponse{Success: true, Results: results, CacheStatus: "hit"})
				return
			}
		}

		var results []models.SentimentResult
		if req.All {
			results = d.Scorer.AnalyzeAll(req.Text)
		} else {
			res, err := d.Scorer.Analyze(req.Text, model)
			if err != nil {
				respondError(c, err)
				return
			}
			results = []models.SentimentResult{res}
		}

		if d.Results != nil {
			d.Results.Set(key, results)
		}
		c.JSON(http.StatusOK, models.SentimentResponse{Success: true, Results: results, CacheStatus: "miss"})
	}
}
