package main

import (
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/use-agent/finpulse/config"
	"github.com/use-agent/finpulse/fetch"
	"github.com/use-agent/finpulse/metrics"
	"github.com/use-agent/finpulse/notify"
	"github.com/use-agent/finpulse/render"
	"github.com/use-agent/finpulse/scraper"
	"github.com/use-agent/finpulse/sentiment"
)

// pipeline holds the long-lived components built from the configuration.
type pipeline struct {
	clock     clockwork.Clock
	logger    *slog.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	scorer    *sentiment.Scorer
	renderer  *render.Renderer
	fetchOpts fetch.Options
	runner    *scraper.Runner
}

func build(cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	p := &pipeline{clock: clockwork.NewRealClock(), logger: logger, registry: metrics.NewRegistry()}
	p.metrics = metrics.New(p.registry)

	scorer, err := sentiment.New(sentiment.Options{
		Models:  cfg.Sentiment.Models,
		Default: cfg.Sentiment.DefaultModel,
		Clock:   p.clock,
		Metrics: p.metrics,
	})
	if err != nil {
		return nil, err
	}
	p.scorer = scorer

	p.fetchOpts = fetch.Options{
		Delay:      cfg.Fetch.Delay,
		MaxRetries: cfg.Fetch.MaxRetries,
		NoRetry:    cfg.Fetch.MaxRetries == 0,
		Timeout:    cfg.Fetch.Timeout,
		UserAgent:  cfg.Fetch.UserAgent,
		ChromeTLS:  cfg.Fetch.ChromeTLS,
		Proxy:      cfg.Fetch.Proxy,
		Logger:     logger,
		Clock:      p.clock,
		Metrics:    p.metrics,
	}

	if cfg.Browser.Enabled {
		r, err := render.New(render.Options{
			Bin:       cfg.Browser.Bin,
			Headless:  cfg.Browser.Headless,
			NoSandbox: cfg.Browser.NoSandbox,
			Proxy:     cfg.Fetch.Proxy,
			MaxPages:  cfg.Browser.MaxPages,
			Block:     cfg.Browser.Block,
			BlockAds:  cfg.Browser.BlockAds,
			Stealth:   cfg.Browser.Stealth,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		p.renderer = r
		p.fetchOpts.Renderer = r
		p.fetchOpts.Escalate = cfg.Fetch.Escalate
		p.fetchOpts.Hosts = fetch.NewHostMemory(fetch.DefaultHostTTL, p.clock)
	}

	runner, err := scraper.New(scraper.Options{
		Sources:        cfg.Sources,
		Fetch:          p.fetchOpts,
		Scorer:         scorer,
		Models:         cfg.Sentiment.Score,
		Sink:           scraper.LogSink{Logger: logger},
		Dedup:          cfg.Run.Dedup,
		DedupThreshold: cfg.Run.DedupThreshold,
		Parallelism:    cfg.Run.Parallelism,
		Notifier:       notify.New(cfg.Webhook.URL, cfg.Webhook.Secret, logger, p.clock),
		Logger:         logger,
		Clock:          p.clock,
		Metrics:        p.metrics,
	})
	if err != nil {
		p.Close()
		return nil, err
	}
	p.runner = runner
	return p, nil
}

// Close kills the browser, if one was launched.
func (p *pipeline) Close() {
	if p.renderer == nil {
		return
	}
	if err := p.renderer.Close(); err != nil {
		p.logger.Warn("browser did not close cleanly", "error", err)
	}
}
