// Package source adapts external sites into streams of ScrapedItems.
//
// Every variant fetches through the *fetch.Fetcher it is handed, so rate
// limits, retries and statistics stay with the scraper instance that owns
// the fetcher. A failure on one item is logged and skipped; only failures
// that make the whole source unusable are returned as errors.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/use-agent/finpulse/fetch"
	"github.com/use-agent/finpulse/models"
)

// Emit receives each produced item. Returning an error stops the source.
type Emit func(models.ScrapedItem) error

// Source produces items from one configured site.
type Source interface {
	Name() string
	Scrape(ctx context.Context, f *fetch.Fetcher, emit Emit) error
}

// Config describes one source instance. Which fields apply depends on Kind.
type Config struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`

	// pages: article URLs; listing: index page URLs.
	URLs []string `yaml:"urls"`
	// listing: CSS scope for article links and an optional href regexp.
	LinkSelector string `yaml:"link_selector"`
	LinkPattern  string `yaml:"link_pattern"`
	// pages, listing: restrict extraction to this CSS selector.
	ContentSelector string   `yaml:"content_selector"`
	Exclude         []string `yaml:"exclude"`
	Render          bool     `yaml:"render"`

	// reddit
	Subreddits []string `yaml:"subreddits"`
	Sort       string   `yaml:"sort"`

	// newsapi
	Query    string `yaml:"query"`
	Language string `yaml:"language"`
	APIKey   string `yaml:"api_key"`

	// BaseURL overrides the API host of reddit and newsapi sources.
	BaseURL  string `yaml:"base_url"`
	MaxItems int    `yaml:"max_items"`

	// Per-source fetcher overrides; zero uses the global settings.
	Delay      time.Duration `yaml:"delay"`
	MaxRetries int           `yaml:"max_retries"`
}

// Deps are the collaborators every source receives.
type Deps struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
}

func (d Deps) withDefaults(name string) Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	d.Logger = d.Logger.With("component", "source", "source", name)
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	return d
}

// Factory builds a Source from its configuration.
type Factory func(cfg Config, deps Deps) (Source, error)

// Registry maps source kinds to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with every bundled kind registered.
func NewRegistry() *Registry {
	r := &Registry{factories: map[string]Factory{}}
	r.Register(KindPages, NewPages)
	r.Register(KindListing, NewListing)
	r.Register(KindReddit, NewReddit)
	r.Register(KindNewsAPI, NewNewsAPI)
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

// Kinds lists the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build resolves cfg.Kind and constructs the source.
func (r *Registry) Build(cfg Config, deps Deps) (Source, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("source: name is required")
	}
	r.mu.RLock()
	f, ok := r.factories[cfg.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("source %s: kind %q is not registered", cfg.Name, cfg.Kind)
	}
	return f(cfg, deps.withDefaults(cfg.Name))
}

// limitReached reports whether limit items have been emitted; limit <= 0 is unlimited.
func limitReached(emitted, limit int) bool {
	return limit > 0 && emitted >= limit
}
