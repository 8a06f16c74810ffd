// Package render loads JavaScript-heavy pages in a headless Chrome and
// hands the rendered DOM back to the fetcher.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// Options configures the browser.
type Options struct {
	Bin       string
	Headless  bool
	NoSandbox bool
	Proxy     string
	MaxPages  int
	// Block lists resource types that are never loaded (Image, Stylesheet,
	// Font, Media, Script).
	Block    []string
	BlockAds bool
	Stealth  bool
	// Settle is how long the DOM must stay unchanged before it is read.
	Settle time.Duration
	Logger *slog.Logger
}

// Renderer owns one browser process and a pool of reusable tabs.
// It implements fetch.Renderer and is safe for concurrent use.
type Renderer struct {
	browser *rod.Browser
	pool    rod.Pool[rod.Page]
	opts    Options
	logger  *slog.Logger

	mu     sync.Mutex
	health map[*rod.Page]*tabHealth
}

// New launches the browser.
func New(opts Options) (*Renderer, error) {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 4
	}
	if opts.Settle <= 0 {
		opts.Settle = 300 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("component", "render")

	l := launcher.New().
		Headless(opts.Headless).
		NoSandbox(opts.NoSandbox)
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	if opts.Proxy != "" {
		l = l.Proxy(opts.Proxy)
	}
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("render: launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("render: connect browser: %w", err)
	}
	logger.Info("browser launched", "control_url", controlURL, "max_pages", opts.MaxPages)

	return &Renderer{
		browser: browser,
		pool:    rod.NewPagePool(opts.MaxPages),
		opts:    opts,
		logger:  logger,
		health:  make(map[*rod.Page]*tabHealth),
	}, nil
}

// Render navigates to target and returns the navigation status code and the
// rendered HTML. A zero status means the browser did not report one.
func (r *Renderer) Render(ctx context.Context, target string, headers map[string]string) (status int, html []byte, err error) {
	page, err := r.pool.Get(func() (*rod.Page, error) {
		return r.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		r.pool.Put(nil)
		return 0, nil, fmt.Errorf("render: acquire page: %w", err)
	}
	defer func() { r.release(page, err == nil) }()

	if r.opts.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			r.logger.Warn("stealth injection failed", "error", err)
		}
	}
	setHeaders(r.logger, target, withReferer(target, headers), func(req proto.NetworkSetExtraHTTPHeaders) error {
		return req.Call(page)
	})
	if router := hijack(page, r.opts.Block, r.opts.BlockAds); router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)
	if err := p.Navigate(target); err != nil {
		return 0, nil, fmt.Errorf("render: navigate %s: %w", target, err)
	}
	if err := p.WaitDOMStable(r.opts.Settle, 0.1); err != nil {
		r.logger.Debug("dom did not settle, reading current state", "url", target, "error", err)
	}

	if res, err := p.Eval(`() => {
		try {
			const e = performance.getEntriesByType("navigation");
			if (e.length > 0) return e[0].responseStatus || 0;
		} catch (_) {}
		return 0;
	}`); err == nil {
		status = res.Value.Int()
	}

	doc, err := p.HTML()
	if err != nil {
		return status, nil, fmt.Errorf("render: read html: %w", err)
	}
	return status, []byte(doc), nil
}

// Close drains the tab pool and kills the browser.
func (r *Renderer) Close() error {
	r.pool.Cleanup(func(p *rod.Page) { _ = p.Close() })
	if err := r.browser.Close(); err != nil {
		return fmt.Errorf("render: close browser: %w", err)
	}
	r.logger.Info("browser closed")
	return nil
}

// withReferer adds a search-engine Referer unless the caller set one.
func withReferer(target string, headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	if _, ok := headers["Referer"]; !ok {
		if u, err := url.Parse(target); err == nil && u.Hostname() != "" {
			out["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
		}
	}
	for k, v := range headers {
		out[k] = v
	}
	return out
}

// setHeaders installs extra request headers through call. A failure is
// logged and the page renders without them.
func setHeaders(logger *slog.Logger, target string, headers map[string]string, call func(proto.NetworkSetExtraHTTPHeaders) error) {
	if len(headers) == 0 {
		return
	}
	if err := call(proto.NetworkSetExtraHTTPHeaders{Headers: toHeaders(headers)}); err != nil {
		logger.Debug("extra headers not installed, rendering without them",
			"url", target, "headers", len(headers), "error", err)
	}
}

func toHeaders(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
