// Package handler implements the on-demand HTTP API. Handlers are built from
// a shared Deps and return gin.HandlerFunc values wired by api.NewRouter.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/use-agent/finpulse/cache"
	"github.com/use-agent/finpulse/fetch"
	"github.com/use-agent/finpulse/models"
	"github.com/use-agent/finpulse/scraper"
	"github.com/use-agent/finpulse/sentiment"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Deps are the collaborators shared by every handler.
type Deps struct {
	Scorer *sentiment.Scorer
	// Fetchers serves /extract with one rate-limited fetcher per host.
	Fetchers *fetch.Pool
	// Runner is nil when no sources are configured.
	Runner *scraper.Runner
	Runs   *RunStore

	// Results caches sentiment analyses; Pages caches fetched pages for
	// /extract. Either may be nil.
	Results *cache.Cache[[]models.SentimentResult]
	Pages   *cache.Cache[*fetch.Result]

	Logger    *slog.Logger
	Clock     clockwork.Clock
	StartTime time.Time

	group singleflight.Group
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d *Deps) clock() clockwork.Clock {
	if d.Clock == nil {
		return clockwork.NewRealClock()
	}
	return d.Clock
}

// respondError maps err to an HTTP status and writes an ErrorResponse.
func respondError(c *gin.Context, err error) {
	pe := models.AsPipelineError(err)
	c.JSON(statusFor(pe.Code), models.ErrorResponse{Error: pe.ToDetail()})
}

func invalidInput(c *gin.Context, err error) {
	respondError(c, models.NewPipelineError(models.ErrCodeInvalidInput, err.Error(), err))
}

func statusFor(code string) int {
	switch code {
	case models.ErrCodeInvalidInput, models.ErrCodeUnsupportedModel:
		return http.StatusBadRequest
	case models.ErrCodeNotFound:
		return http.StatusNotFound
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case models.ErrCodeFetchFailed, models.ErrCodeSourceFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
