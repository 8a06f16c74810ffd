package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/use-agent/finpulse/extract"
	"github.com/use-agent/finpulse/fetch"
	"github.com/use-agent/finpulse/models"
)

// Source kinds.
const (
	KindPages   = "pages"
	KindListing = "listing"
	KindReddit  = "reddit"
	KindNewsAPI = "newsapi"
)

// ErrNoItems is returned when a source could not fetch any of its pages.
var ErrNoItems = errors.New("no page could be fetched")

// Pages scrapes a fixed list of article URLs.
type Pages struct {
	cfg  Config
	deps Deps
}

// NewPages validates cfg and returns a Pages source.
func NewPages(cfg Config, deps Deps) (Source, error) {
	if len(cfg.URLs) == 0 {
		return nil, fmt.Errorf("source %s: pages needs at least one url", cfg.Name)
	}
	return &Pages{cfg: cfg, deps: deps}, nil
}

func (p *Pages) Name() string { return p.cfg.Name }

func (p *Pages) Scrape(ctx context.Context, f *fetch.Fetcher, emit Emit) error {
	emitted, fetched := 0, 0
	for _, u := range p.cfg.URLs {
		if ctx.Err() != nil || limitReached(emitted, p.cfg.MaxItems) {
			break
		}
		item, ok := scrapeArticle(ctx, f, p.cfg, p.deps, u)
		if !ok {
			continue
		}
		fetched++
		if err := emit(item); err != nil {
			return err
		}
		emitted++
	}
	if fetched == 0 && ctx.Err() == nil {
		return fmt.Errorf("source %s: %w", p.cfg.Name, ErrNoItems)
	}
	return ctx.Err()
}

// scrapeArticle fetches one article page and turns it into an item. Failures
// are logged and reported as ok=false.
func scrapeArticle(ctx context.Context, f *fetch.Fetcher, cfg Config, deps Deps, url string) (models.ScrapedItem, bool) {
	res := f.Fetch(ctx, &fetch.Request{URL: url, Render: cfg.Render})
	if !res.OK {
		deps.Logger.Warn("skipping page", "url", url, "status", res.StatusCode, "reason", res.Reason)
		return models.ScrapedItem{}, false
	}

	markup := res.Text()
	if cfg.ContentSelector != "" || len(cfg.Exclude) > 0 {
		var include []string
		if cfg.ContentSelector != "" {
			include = []string{cfg.ContentSelector}
		}
		title := extract.Title(markup)
		markup = extract.Filter(markup, include, cfg.Exclude)
		content := extract.PlainText(markup)
		if content == "" {
			deps.Logger.Warn("skipping page with no content", "url", url)
			return models.ScrapedItem{}, false
		}
		return newItem(cfg.Name, draft{URL: canonical(res), Title: title, Content: content}, deps.Clock.Now()), true
	}

	article := extract.ExtractArticle(markup, canonical(res))
	if article.Text == "" {
		deps.Logger.Warn("skipping page with no content", "url", url)
		return models.ScrapedItem{}, false
	}
	meta := map[string]string{}
	if article.SiteName != "" {
		meta[models.MetaSiteName] = article.SiteName
	}
	if article.Excerpt != "" {
		meta[models.MetaExcerpt] = article.Excerpt
	}
	return newItem(cfg.Name, draft{
		URL:         canonical(res),
		Title:       article.Title,
		Author:      article.Byline,
		Content:     article.Text,
		PublishedAt: article.PublishedAt,
		Metadata:    meta,
	}, deps.Clock.Now()), true
}

// canonical prefers the post-redirect URL.
func canonical(res *fetch.Result) string {
	if res.FinalURL != "" {
		return res.FinalURL
	}
	return res.URL
}
