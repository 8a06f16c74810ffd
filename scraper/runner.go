// Package scraper runs configured sources end to end.
//
// Each source gets its own fetcher for the duration of a run. The fetcher is
// opened when the source starts and closed when it finishes, whatever the
// outcome. Sources run in parallel; items within a source are produced in
// order. A failing item or source never aborts the run: failures are counted
// and reported in the run summary.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/finpulse/fetch"
	"github.com/use-agent/finpulse/fingerprint"
	"github.com/use-agent/finpulse/metrics"
	"github.com/use-agent/finpulse/models"
	"github.com/use-agent/finpulse/notify"
	"github.com/use-agent/finpulse/sentiment"
	"github.com/use-agent/finpulse/source"
)

// Options configures a Runner.
type Options struct {
	Sources  []source.Config
	Registry *source.Registry

	// Fetch is the template for every per-source fetcher. Source-level
	// Delay and MaxRetries override it.
	Fetch fetch.Options

	// Scorer is optional. When set, every item is scored with Models, or
	// with the scorer's default model when Models is empty.
	Scorer *sentiment.Scorer
	Models []string

	Sink Sink

	// Dedup drops items whose fingerprint is within DedupThreshold bits of
	// an item already produced in the same run.
	Dedup          bool
	DedupThreshold int

	// Parallelism bounds how many sources run at once; <= 0 runs all.
	Parallelism int

	Notifier *notify.Notifier
	Logger   *slog.Logger
	Clock    clockwork.Clock
	Metrics  *metrics.Metrics
}

// Runner executes runs over a fixed set of sources. Runs may overlap; each
// builds its own fetchers.
type Runner struct {
	sources []source.Source
	configs []source.Config
	opts    Options
	logger  *slog.Logger
	clock   clockwork.Clock
}

// New builds every configured source and validates the scoring models.
func New(opts Options) (*Runner, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Registry == nil {
		opts.Registry = source.NewRegistry()
	}
	if opts.Sink == nil {
		opts.Sink = LogSink{Logger: opts.Logger}
	}
	if opts.Scorer != nil && len(opts.Models) == 0 {
		opts.Models = []string{opts.Scorer.Default()}
	}
	if opts.Scorer != nil {
		// Analyze rejects unknown names; check them once here instead of per item.
		for _, m := range opts.Models {
			if _, err := opts.Scorer.Analyze("", m); err != nil {
				return nil, fmt.Errorf("scraper: %w", err)
			}
		}
	}

	r := &Runner{
		opts:   opts,
		logger: opts.Logger.With("component", "scraper"),
		clock:  opts.Clock,
	}
	seen := map[string]bool{}
	for _, cfg := range opts.Sources {
		if seen[cfg.Name] {
			return nil, fmt.Errorf("scraper: duplicate source name %q", cfg.Name)
		}
		seen[cfg.Name] = true
		src, err := opts.Registry.Build(cfg, source.Deps{Logger: opts.Logger, Clock: opts.Clock})
		if err != nil {
			return nil, fmt.Errorf("scraper: %w", err)
		}
		r.sources = append(r.sources, src)
		r.configs = append(r.configs, cfg)
	}
	return r, nil
}

// Sources returns the configured source names in configuration order.
func (r *Runner) Sources() []string {
	names := make([]string, len(r.sources))
	for i, s := range r.sources {
		names[i] = s.Name()
	}
	return names
}

// SourceReport summarizes one source within a run.
type SourceReport struct {
	Name       string          `json:"name"`
	Kind       string          `json:"kind"`
	Stats      models.RunStats `json:"stats"`
	Duplicates int             `json:"duplicates"`
	SinkErrors int             `json:"sink_errors"`
	Error      string          `json:"error,omitempty"`
}

// OK reports whether the source completed without a source-level error.
func (s SourceReport) OK() bool { return s.Error == "" }

// Report is the summary of one run.
type Report struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Sources    []SourceReport `json:"sources"`

	Items             int `json:"items"`
	Duplicates        int `json:"duplicates"`
	RequestsSucceeded int `json:"requests_succeeded"`
	RequestsFailed    int `json:"requests_failed"`
	SourcesFailed     int `json:"sources_failed"`
}

// Failed reports whether every source failed.
func (r *Report) Failed() bool {
	return len(r.Sources) > 0 && r.SourcesFailed == len(r.Sources)
}

func (r *Report) add(s SourceReport) {
	r.Sources = append(r.Sources, s)
	r.Items += s.Stats.ItemsProduced
	r.Duplicates += s.Duplicates
	r.RequestsSucceeded += s.Stats.RequestsSucceeded
	r.RequestsFailed += s.Stats.RequestsFailed
	if !s.OK() {
		r.SourcesFailed++
	}
}

// Run executes every source once. It returns an error only when ctx ends
// before the run completes; source failures are recorded in the report.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	return r.run(ctx, r.sources, r.configs)
}

// RunSource executes the single named source.
func (r *Runner) RunSource(ctx context.Context, name string) (*Report, error) {
	for i, s := range r.sources {
		if s.Name() == name {
			return r.run(ctx, r.sources[i:i+1], r.configs[i:i+1])
		}
	}
	return nil, models.NewPipelineError(models.ErrCodeNotFound, fmt.Sprintf("source %q is not configured", name), nil)
}

func (r *Runner) run(ctx context.Context, sources []source.Source, configs []source.Config) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), StartedAt: r.clock.Now()}
	logger := r.logger.With("run_id", report.RunID)
	logger.Info("run started", "sources", len(sources))

	var index *fingerprint.Index
	if r.opts.Dedup {
		index = fingerprint.NewIndex(r.opts.DedupThreshold)
	}

	results := make([]SourceReport, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	if r.opts.Parallelism > 0 {
		g.SetLimit(r.opts.Parallelism)
	}
	for i := range sources {
		g.Go(func() error {
			results[i] = r.runSource(gctx, logger, sources[i], configs[i], index)
			return nil
		})
	}
	_ = g.Wait()

	for _, s := range results {
		report.add(s)
	}
	report.FinishedAt = r.clock.Now()

	logger.Info("run finished",
		"duration", report.FinishedAt.Sub(report.StartedAt),
		"items", report.Items,
		"duplicates", report.Duplicates,
		"requests_succeeded", report.RequestsSucceeded,
		"requests_failed", report.RequestsFailed,
		"sources_failed", report.SourcesFailed,
	)
	r.notify(report)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("scraper: run %s interrupted: %w", report.RunID, err)
	}
	return report, nil
}

// runSource owns one fetcher from open to close.
func (r *Runner) runSource(ctx context.Context, logger *slog.Logger, src source.Source, cfg source.Config, index *fingerprint.Index) SourceReport {
	logger = logger.With("source", src.Name())
	f := r.fetcherFor(cfg)
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("closing fetcher", "error", err)
		}
	}()
	f.ResetStats()

	rep := SourceReport{Name: src.Name(), Kind: cfg.Kind}
	items := 0

	err := src.Scrape(ctx, f, func(item models.ScrapedItem) error {
		if index != nil && index.Seen(item.Fingerprint) {
			rep.Duplicates++
			logger.Debug("dropping near-duplicate", "url", item.URL)
			return nil
		}
		scored := r.score(item)
		if err := r.opts.Sink.Put(ctx, scored); err != nil {
			rep.SinkErrors++
			logger.Warn("sink rejected item", "url", item.URL, "error", err)
			return ctx.Err()
		}
		items++
		return nil
	})

	rep.Stats = f.Stats()
	rep.Stats.ItemsProduced = items
	rep.Stats.FinishedAt = r.clock.Now()
	if err != nil {
		rep.Error = err.Error()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("source interrupted", "error", err)
		} else {
			logger.Error("source failed", "error", err)
		}
	}

	r.opts.Metrics.ObserveRun(src.Name(), rep.OK(), items, rep.Stats.Duration())
	logger.Info("source finished",
		"items", items,
		"duplicates", rep.Duplicates,
		"requests_attempted", rep.Stats.RequestsAttempted,
		"requests_failed", rep.Stats.RequestsFailed,
		"duration", rep.Stats.Duration(),
	)
	return rep
}

func (r *Runner) fetcherFor(cfg source.Config) *fetch.Fetcher {
	opts := r.opts.Fetch
	if cfg.Delay > 0 {
		opts.Delay = cfg.Delay
		opts.NoDelay = false
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
		opts.NoRetry = false
	}
	if opts.Logger == nil {
		opts.Logger = r.opts.Logger
	}
	if opts.Clock == nil {
		opts.Clock = r.clock
	}
	if opts.Metrics == nil {
		opts.Metrics = r.opts.Metrics
	}
	return fetch.New(opts)
}

func (r *Runner) score(item models.ScrapedItem) models.ScoredItem {
	out := models.ScoredItem{Item: item}
	if r.opts.Scorer == nil {
		return out
	}
	text := strings.TrimSpace(item.Title + ". " + item.Content)
	for _, m := range r.opts.Models {
		// models were validated in New
		res, err := r.opts.Scorer.Analyze(text, m)
		if err != nil {
			r.logger.Error("scoring failed", "model", m, "error", err)
			continue
		}
		out.Sentiment = append(out.Sentiment, res)
	}
	return out
}

func (r *Runner) notify(report *Report) {
	if !r.opts.Notifier.Enabled() {
		return
	}
	typ := notify.EventRunCompleted
	if report.Failed() {
		typ = notify.EventRunFailed
	}
	r.opts.Notifier.DeliverAsync(&notify.Event{
		Type:      typ,
		RunID:     report.RunID,
		Timestamp: report.FinishedAt.Unix(),
		Data:      report,
	})
}

// Schedule runs immediately and then every interval until ctx ends. Each
// report is passed to onReport when it is non-nil.
func (r *Runner) Schedule(ctx context.Context, interval time.Duration, onReport func(*Report)) {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		report, err := r.Run(ctx)
		if err != nil {
			r.logger.Warn("scheduled run interrupted", "error", err)
		}
		if onReport != nil && report != nil {
			onReport(report)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
	}
}
