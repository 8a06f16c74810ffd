package render

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"

	"github.com/use-agent/finpulse/fetch"
)

var _ fetch.Renderer = (*Renderer)(nil)

func TestIsTracker(t *testing.T) {
	cases := map[string]bool{
		"doubleclick.net":               true,
		"stats.g.doubleclick.net":       true,
		"PAGEAD2.GOOGLESYNDICATION.COM": true,
		"www.reuters.com":               false,
		"net":                           false,
		"":                              false,
		"notdoubleclick.net":            false,
		"cdn.segment.com":               true,
	}
	for host, want := range cases {
		assert.Equal(t, want, isTracker(host), host)
	}
}

func TestBlockedTypes(t *testing.T) {
	got := blockedTypes([]string{"Image", "Font", "Bogus"})
	assert.Len(t, got, 2)
	assert.Contains(t, got, proto.NetworkResourceTypeImage)
	assert.Contains(t, got, proto.NetworkResourceTypeFont)
}

func TestWithReferer(t *testing.T) {
	h := withReferer("https://finance.example.com/quote/AAPL", map[string]string{"X-Test": "1"})
	assert.Equal(t, "https://www.google.com/search?q=finance.example.com", h["Referer"])
	assert.Equal(t, "1", h["X-Test"])

	h = withReferer("https://finance.example.com/", map[string]string{"Referer": "https://news.example/"})
	assert.Equal(t, "https://news.example/", h["Referer"])
}

func TestToHeaders(t *testing.T) {
	h := toHeaders(map[string]string{"Accept-Language": "en-US"})
	assert.Equal(t, "en-US", h["Accept-Language"].Str())
}

func TestSetHeaders(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var got proto.NetworkHeaders
	setHeaders(logger, "https://news.example/a", map[string]string{"Referer": "https://news.example/"}, func(req proto.NetworkSetExtraHTTPHeaders) error {
		got = req.Headers
		return nil
	})
	assert.Equal(t, "https://news.example/", got["Referer"].Str())
	assert.Empty(t, buf.String())

	setHeaders(logger, "https://news.example/a", map[string]string{"Referer": "x"}, func(proto.NetworkSetExtraHTTPHeaders) error {
		return errors.New("target closed")
	})
	assert.Contains(t, buf.String(), "extra headers not installed")
	assert.Contains(t, buf.String(), "target closed")

	called := false
	setHeaders(logger, "https://news.example/a", nil, func(proto.NetworkSetExtraHTTPHeaders) error {
		called = true
		return nil
	})
	assert.False(t, called)
}

func TestTabHealth(t *testing.T) {
	now := time.Now()

	h := &tabHealth{created: now}
	h.record(false)
	h.record(false)
	h.record(true)
	assert.InDelta(t, 1.5, h.score, 1e-9)
	assert.False(t, h.retire(now))
	h.record(false)
	h.record(false)
	assert.True(t, h.retire(now))

	h = &tabHealth{created: now}
	for range retireUses - 1 {
		h.record(true)
	}
	assert.Zero(t, h.score)
	assert.False(t, h.retire(now))
	h.record(true)
	assert.True(t, h.retire(now))

	h = &tabHealth{created: now.Add(-retireAge)}
	assert.True(t, h.retire(now))
}
