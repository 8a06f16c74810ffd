package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/use-agent/finpulse/api/handler"
	"github.com/use-agent/finpulse/api/middleware"
	"github.com/use-agent/finpulse/config"
	"github.com/use-agent/finpulse/metrics"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
// ctx bounds the rate limiter's background sweeper.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → Metrics
//	API:     Auth (if enabled) → RateLimit
//
// Health and /metrics stay outside auth so probes and scrapers always work.
func NewRouter(ctx context.Context, d *handler.Deps, cfg *config.Config, m *metrics.Metrics, reg *prometheus.Registry) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.Metrics(m, d.Clock))

	if reg != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(reg)))
	}

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(d))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit, d.Clock))

	// Analysis
	protected.POST("/sentiment", handler.Sentiment(d))
	protected.POST("/tickers", handler.Tickers())
	protected.POST("/extract", handler.Extract(d))

	// Runs
	protected.GET("/sources", handler.Sources(d))
	protected.POST("/runs", handler.PostRun(d))
	protected.GET("/runs/:id", handler.GetRun(d))

	return r
}
