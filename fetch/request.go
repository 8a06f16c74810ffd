package fetch

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Request describes one logical fetch.
type Request struct {
	URL    string
	Method string // defaults to GET
	// Headers override the fetcher's defaults.
	Headers map[string]string
	// Query is merged into the URL's existing query string.
	Query url.Values
	Body  []byte
	// Render routes the request through the configured Renderer, if any.
	Render bool
}

// Result is the outcome of one logical fetch. Body is set only when OK.
type Result struct {
	URL         string
	FinalURL    string
	Method      string
	OK          bool
	StatusCode  int // 0 when no response was received
	Reason      string
	Body        []byte
	ContentType string
	FetchedAt   time.Time
	Attempts    int
	Duration    time.Duration
}

// Text returns the body as a string.
func (r *Result) Text() string {
	return string(r.Body)
}

// Renderer loads a page in a real browser and returns its rendered HTML.
type Renderer interface {
	Render(ctx context.Context, url string, headers map[string]string) (status int, html []byte, err error)
}

var idempotent = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodPut:     true,
	http.MethodDelete:  true,
	http.MethodTrace:   true,
}

// retryStatus is the set of response codes worth another attempt.
var retryStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}
