package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/finpulse/fetch"
	"github.com/use-agent/finpulse/models"
)

const (
	defaultNewsAPIBase = "https://newsapi.org"
	newsAPIMaxPageSize = 100
)

// NewsAPI searches the NewsAPI /v2/everything endpoint.
type NewsAPI struct {
	cfg  Config
	deps Deps
	base string
}

// NewNewsAPI validates cfg and returns a NewsAPI source.
func NewNewsAPI(cfg Config, deps Deps) (Source, error) {
	if cfg.Query == "" {
		return nil, fmt.Errorf("source %s: newsapi needs a query", cfg.Name)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("source %s: newsapi needs an api_key", cfg.Name)
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultNewsAPIBase
	}
	return &NewsAPI{cfg: cfg, deps: deps, base: strings.TrimRight(base, "/")}, nil
}

func (n *NewsAPI) Name() string { return n.cfg.Name }

type newsAPIResponse struct {
	Status       string           `json:"status"`
	Code         string           `json:"code"`
	Message      string           `json:"message"`
	TotalResults int              `json:"totalResults"`
	Articles     []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
	Content     string    `json:"content"`
}

func (n *NewsAPI) Scrape(ctx context.Context, f *fetch.Fetcher, emit Emit) error {
	pageSize := newsAPIMaxPageSize
	if n.cfg.MaxItems > 0 && n.cfg.MaxItems < pageSize {
		pageSize = n.cfg.MaxItems
	}
	res := f.Fetch(ctx, &fetch.Request{
		URL: n.base + "/v2/everything",
		Query: url.Values{
			"q":        {n.cfg.Query},
			"language": {n.cfg.Language},
			"sortBy":   {"publishedAt"},
			"pageSize": {strconv.Itoa(pageSize)},
		},
		Headers: map[string]string{"X-Api-Key": n.cfg.APIKey, "Accept": "application/json"},
	})
	if !res.OK {
		return fmt.Errorf("source %s: %s", n.cfg.Name, res.Reason)
	}

	var body newsAPIResponse
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return fmt.Errorf("source %s: decode response: %w", n.cfg.Name, err)
	}
	if body.Status != "ok" {
		return fmt.Errorf("source %s: newsapi %s: %s", n.cfg.Name, body.Code, body.Message)
	}

	emitted := 0
	for _, a := range body.Articles {
		if ctx.Err() != nil || limitReached(emitted, n.cfg.MaxItems) {
			break
		}
		if a.URL == "" || a.Title == "" {
			continue
		}
		content := a.Content
		if content == "" {
			content = a.Description
		}
		meta := map[string]string{}
		if a.Source.Name != "" {
			meta[models.MetaSiteName] = a.Source.Name
		}
		if a.Description != "" {
			meta[models.MetaExcerpt] = a.Description
		}
		item := newItem(n.cfg.Name, draft{
			URL:         a.URL,
			Title:       a.Title,
			Author:      a.Author,
			Content:     content,
			PublishedAt: a.PublishedAt,
			Metadata:    meta,
		}, n.deps.Clock.Now())
		if err := emit(item); err != nil {
			return err
		}
		emitted++
	}
	return ctx.Err()
}
