// Command finpulse runs the ingestion pipeline.
//
//	finpulse run [-source name]   run once and print the report as JSON
//	finpulse serve                serve the API and run on the configured interval
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/finpulse/api"
	"github.com/use-agent/finpulse/api/handler"
	"github.com/use-agent/finpulse/cache"
	"github.com/use-agent/finpulse/config"
	"github.com/use-agent/finpulse/fetch"
	"github.com/use-agent/finpulse/models"
	"github.com/use-agent/finpulse/scraper"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	// ── 1. Load configuration ───────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	logger := initLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "run":
		err = runOnce(ctx, cfg, logger, os.Args[2:])
	case "serve":
		err = serve(ctx, cfg, logger)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error("finpulse failed", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: finpulse run [-source name] | finpulse serve")
}

func runOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	only := fs.String("source", "", "run only the named source")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	var report *scraper.Report
	if *only != "" {
		report, err = p.runner.RunSource(ctx, *only)
	} else {
		report, err = p.runner.Run(ctx)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if report.Failed() {
		return errors.New("every source failed")
	}
	return nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("finpulse starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"sources", len(cfg.Sources),
		"browser", cfg.Browser.Enabled,
	)

	// ── 3. Build the pipeline (launches the browser if enabled) ─────
	p, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	// ── 4. Initialise caches ────────────────────────────────────────
	results := cache.New[[]models.SentimentResult](cfg.Cache.MaxEntries, cfg.Cache.TTL, p.clock)
	defer results.Close()
	pages := cache.New[*fetch.Result](cfg.Cache.MaxEntries, cfg.Cache.TTL, p.clock)
	defer pages.Close()

	// ── 5. Setup router ─────────────────────────────────────────────
	runs := handler.NewRunStore(ctx, p.clock)
	deps := &handler.Deps{
		Scorer:    p.scorer,
		Fetchers:  fetch.NewPool(p.fetchOpts, 0),
		Runner:    p.runner,
		Runs:      runs,
		Results:   results,
		Pages:     pages,
		Logger:    logger,
		Clock:     p.clock,
		StartTime: p.clock.Now(),
	}
	defer deps.Fetchers.Close()
	router := api.NewRouter(ctx, deps, cfg, p.metrics, p.registry)

	// ── 6. Scheduled runs ───────────────────────────────────────────
	if cfg.Run.Interval > 0 && len(cfg.Sources) > 0 {
		go p.runner.Schedule(ctx, cfg.Run.Interval, func(r *scraper.Report) {
			logger.Info("scheduled run finished", "run_id", r.RunID, "items", r.Items, "sources_failed", r.SourcesFailed)
		})
		logger.Info("scheduled runs enabled", "interval", cfg.Run.Interval)
	}

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	select {
	case err := <-errc:
		return fmt.Errorf("HTTP server: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	// Give in-flight requests 5 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server forced shutdown", "error", err)
	} else {
		logger.Info("HTTP server drained gracefully")
	}

	// runs were cancelled with ctx; wait for them to write their reports
	runs.Wait()
	logger.Info("finpulse stopped")
	return nil
}

// initLogger configures slog based on the LogConfig and returns the logger.
func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	// stdout carries the run report
	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(os.Stderr, opts)
	} else {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}
