// Package fetch implements the rate-limited HTTP fetcher every source uses.
//
// A Fetcher spaces consecutive requests by a minimum delay, retries
// transient failures with exponential backoff, and never returns an error:
// every terminal outcome is reported as a Result. One Fetcher serves one
// scraper instance and keeps that instance's run statistics.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/use-agent/finpulse/metrics"
	"github.com/use-agent/finpulse/models"
	"github.com/use-agent/finpulse/retry"
)

const (
	DefaultUserAgent  = "FinPulse/1.0.0 (+https://github.com/use-agent/finpulse)"
	DefaultDelay      = time.Second
	DefaultMaxRetries = 3
	DefaultTimeout    = 30 * time.Second
	DefaultBackoff    = time.Second
	DefaultMaxBackoff = 120 * time.Second

	// maxBody caps response bodies to prevent unbounded memory use.
	maxBody = 10 << 20
)

// Options configures a Fetcher. Zero values take the defaults above.
type Options struct {
	Delay      time.Duration
	MaxRetries int
	Timeout    time.Duration
	UserAgent  string

	// NoDelay disables request spacing. A zero Delay means "use the default".
	NoDelay bool
	// NoRetry disables retries. A zero MaxRetries means "use the default".
	NoRetry bool

	BackoffBase time.Duration
	MaxBackoff  time.Duration

	// ChromeTLS dials with a Chrome TLS fingerprint. Ignored when Client is set.
	ChromeTLS bool
	Proxy     string
	Client    *http.Client

	Renderer Renderer
	// Escalate retries a blocked or script-only GET through Renderer and
	// remembers the host in Hosts. Hosts may be shared between fetchers.
	Escalate bool
	Hosts    *HostMemory

	Logger  *slog.Logger
	Clock   clockwork.Clock
	Metrics *metrics.Metrics
}

// Fetcher is an HTTP client bound to one scraper instance.
type Fetcher struct {
	client   *http.Client
	renderer Renderer
	escalate bool
	hosts    *HostMemory
	limiter  *rate.Limiter
	logger   *slog.Logger
	clock    clockwork.Clock
	metrics  *metrics.Metrics

	userAgent  string
	maxRetries int
	timeout    time.Duration
	backoff    time.Duration
	maxBackoff time.Duration

	mu    sync.Mutex
	stats models.RunStats
}

// New creates a Fetcher from opts.
func New(opts Options) *Fetcher {
	if opts.Delay <= 0 && !opts.NoDelay {
		opts.Delay = DefaultDelay
	}
	if opts.MaxRetries <= 0 && !opts.NoRetry {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.NoRetry {
		opts.MaxRetries = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Client == nil {
		opts.Client = newClient(opts.ChromeTLS, opts.Proxy)
	}

	// Burst 1 lets the first request through immediately and spaces the
	// rest, measured from one request start to the next.
	limit := rate.Inf
	if !opts.NoDelay {
		limit = rate.Every(opts.Delay)
	}

	f := &Fetcher{
		client:     opts.Client,
		renderer:   opts.Renderer,
		escalate:   opts.Escalate,
		hosts:      opts.Hosts,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     opts.Logger.With("component", "fetch"),
		clock:      opts.Clock,
		metrics:    opts.Metrics,
		userAgent:  opts.UserAgent,
		maxRetries: opts.MaxRetries,
		timeout:    opts.Timeout,
		backoff:    opts.BackoffBase,
		maxBackoff: opts.MaxBackoff,
	}
	f.stats.StartedAt = f.clock.Now()
	return f
}

// Get fetches rawURL with GET.
func (f *Fetcher) Get(ctx context.Context, rawURL string) *Result {
	return f.Fetch(ctx, &Request{URL: rawURL})
}

// Fetch performs one logical fetch. It waits for the rate limiter, then
// makes up to 1+MaxRetries attempts. The returned Result is never nil.
func (f *Fetcher) Fetch(ctx context.Context, req *Request) *Result {
	start := f.clock.Now()
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	res := &Result{URL: req.URL, Method: method, FetchedAt: start}

	target, err := buildURL(req.URL, req.Query)
	if err != nil {
		return f.fail(res, start, 0, fmt.Sprintf("invalid url: %v", err))
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return f.fail(res, start, 0, fmt.Sprintf("rate limit wait: %v", err))
	}

	maxAttempts := f.maxRetries + 1
	if !idempotent[method] {
		maxAttempts = 1
	}

	host := hostOf(target)
	render := req.Render && f.renderer != nil
	remembered := false
	if !render && f.canEscalate(method) && f.hosts.Prefers(host) {
		render, remembered = true, true
	}

	out, last, err := f.run(ctx, res, method, target, req, render, maxAttempts)
	switch {
	case !render && f.canEscalate(method) && needsBrowser(out, last, err):
		f.logger.Info("escalating to browser", "url", req.URL, "status", statusOf(last))
		rout, rlast, rerr := f.run(ctx, res, method, target, req, true, 1)
		if rerr == nil {
			f.hosts.Remember(host)
			out, last, err = rout, rlast, nil
		}
	case remembered && err != nil:
		f.hosts.Forget(host)
	}

	if err != nil {
		return f.fail(res, start, statusOf(last), describe(err))
	}

	res.OK = true
	res.StatusCode = out.status
	res.Body = out.body
	res.ContentType = out.contentType
	res.FinalURL = out.finalURL
	res.Duration = f.clock.Since(start)

	f.mu.Lock()
	f.stats.RequestsSucceeded++
	f.mu.Unlock()
	f.metrics.ObserveFetch(true, res.Duration)
	return res
}

// run makes up to maxAttempts attempts under the retry policy. last is the
// final attempt that produced a response, if any.
func (f *Fetcher) run(ctx context.Context, res *Result, method, target string, req *Request, render bool, maxAttempts int) (out, last *attempt, err error) {
	policy := retry.Policy{
		MaxAttempts:    maxAttempts,
		InitialBackoff: f.backoff,
		MaxBackoff:     f.maxBackoff,
		Clock:          f.clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			f.logger.Debug("retrying request",
				"url", req.URL, "attempt", attempt, "backoff", backoff, "error", err)
		},
	}

	classify := func(err error) retry.Action {
		var se *statusError
		if errors.As(err, &se) {
			if !retryStatus[se.code] {
				return retry.Stop
			}
			if se.retryAfter > 0 {
				return retry.After
			}
			return retry.Retry
		}
		if ctx.Err() != nil {
			return retry.Stop
		}
		return retry.Retry
	}

	out, err = retry.Do(ctx, policy, classify, func(int) (*attempt, error) {
		f.mu.Lock()
		f.stats.RequestsAttempted++
		f.mu.Unlock()
		res.Attempts++

		a, err := f.attempt(ctx, method, target, req, render)
		if a != nil {
			last = a
		}
		f.metrics.ObserveAttempt(statusOf(a))
		return a, err
	})
	return out, last, err
}

// attempt is the outcome of a single HTTP exchange.
type attempt struct {
	status      int
	body        []byte
	contentType string
	finalURL    string
}

func (f *Fetcher) attempt(ctx context.Context, method, target string, req *Request, render bool) (*attempt, error) {
	actx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if render {
		status, html, err := f.renderer.Render(actx, target, req.Headers)
		if err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
		if status == 0 {
			// the browser did not report a status; trust the DOM it rendered
			status = http.StatusOK
		}
		a := &attempt{status: status, body: html, contentType: "text/html", finalURL: target}
		if status != http.StatusOK {
			return a, &statusError{code: status}
		}
		return a, nil
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(actx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", f.userAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	a := &attempt{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		finalURL:    resp.Request.URL.String(),
	}
	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return a, &statusError{code: resp.StatusCode, retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), f.clock.Now())}
	}

	a.body, err = io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return a, fmt.Errorf("read body: %w", err)
	}
	return a, nil
}

func (f *Fetcher) fail(res *Result, start time.Time, status int, reason string) *Result {
	res.OK = false
	res.StatusCode = status
	res.Reason = reason
	res.Body = nil
	res.Duration = f.clock.Since(start)

	f.mu.Lock()
	f.stats.RequestsFailed++
	f.mu.Unlock()
	f.metrics.ObserveFetch(false, res.Duration)

	f.logger.Warn("fetch failed",
		"url", res.URL, "status", status, "attempts", res.Attempts, "reason", reason)
	return res
}

// Stats returns a snapshot of the run counters.
func (f *Fetcher) Stats() models.RunStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// ResetStats zeroes the counters and restarts the run clock.
func (f *Fetcher) ResetStats() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats = models.RunStats{StartedAt: f.clock.Now()}
}

// Close releases idle connections.
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// statusError is a non-200 response.
type statusError struct {
	code       int
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.code)
}

// Unwrap exposes the Retry-After delay to the retry loop.
func (e *statusError) Unwrap() error {
	if e.retryAfter > 0 {
		return &retry.DelayError{Err: errors.New(e.Error()), Delay: e.retryAfter}
	}
	return nil
}

func statusOf(a *attempt) int {
	if a == nil {
		return 0
	}
	return a.status
}

// describe turns the retry loop's error into a short failure reason.
func describe(err error) string {
	var se *statusError
	if errors.As(err, &se) {
		var ex *retry.ExhaustedError
		if errors.As(err, &ex) {
			return fmt.Sprintf("HTTP %d after %d attempts", se.code, ex.Attempts)
		}
		return se.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout: " + err.Error()
	}
	return err.Error()
}

func buildURL(raw string, query url.Values) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
