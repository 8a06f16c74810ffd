package source

import (
	"context"
	"fmt"
	"regexp"

	"github.com/use-agent/finpulse/extract"
	"github.com/use-agent/finpulse/fetch"
)

// Listing crawls index pages one level deep: it collects article links from
// each index page and scrapes every linked article.
type Listing struct {
	cfg     Config
	deps    Deps
	pattern *regexp.Regexp
}

// NewListing validates cfg and returns a Listing source.
func NewListing(cfg Config, deps Deps) (Source, error) {
	if len(cfg.URLs) == 0 {
		return nil, fmt.Errorf("source %s: listing needs at least one index url", cfg.Name)
	}
	l := &Listing{cfg: cfg, deps: deps}
	if cfg.LinkPattern != "" {
		re, err := regexp.Compile(cfg.LinkPattern)
		if err != nil {
			return nil, fmt.Errorf("source %s: link_pattern: %w", cfg.Name, err)
		}
		l.pattern = re
	}
	return l, nil
}

func (l *Listing) Name() string { return l.cfg.Name }

func (l *Listing) Scrape(ctx context.Context, f *fetch.Fetcher, emit Emit) error {
	links, indexOK := l.collect(ctx, f)
	if indexOK == 0 && ctx.Err() == nil {
		return fmt.Errorf("source %s: %w", l.cfg.Name, ErrNoItems)
	}
	l.deps.Logger.Info("collected article links", "count", len(links))

	emitted := 0
	for _, u := range links {
		if ctx.Err() != nil || limitReached(emitted, l.cfg.MaxItems) {
			break
		}
		item, ok := scrapeArticle(ctx, f, l.cfg, l.deps, u)
		if !ok {
			continue
		}
		if err := emit(item); err != nil {
			return err
		}
		emitted++
	}
	return ctx.Err()
}

// collect returns deduplicated article links across all index pages and the
// number of index pages that could be fetched.
func (l *Listing) collect(ctx context.Context, f *fetch.Fetcher) ([]string, int) {
	seen := map[string]struct{}{}
	var links []string
	ok := 0
	for _, index := range l.cfg.URLs {
		if ctx.Err() != nil {
			break
		}
		res := f.Fetch(ctx, &fetch.Request{URL: index, Render: l.cfg.Render})
		if !res.OK {
			l.deps.Logger.Warn("skipping index page", "url", index, "status", res.StatusCode, "reason", res.Reason)
			continue
		}
		ok++
		for _, link := range extract.Links(res.Text(), canonical(res), l.cfg.LinkSelector) {
			if l.pattern != nil && !l.pattern.MatchString(link.Href) {
				continue
			}
			if l.pattern == nil && !link.Internal {
				continue
			}
			if _, dup := seen[link.Href]; dup {
				continue
			}
			seen[link.Href] = struct{}{}
			links = append(links, link.Href)
		}
	}
	return links, ok
}
