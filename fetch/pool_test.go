package fetch

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_SpacesPerHost(t *testing.T) {
	srv, calls := serve(t, http.StatusOK, "<html><body>ok</body></html>")
	p := NewPool(Options{Delay: time.Hour, NoRetry: true, Logger: quietLogger()}, 0)
	defer p.Close()

	byIP := srv.URL
	byName := strings.Replace(srv.URL, "127.0.0.1", "localhost", 1)

	// the first request to each host goes out at once
	require.True(t, p.Fetch(context.Background(), &Request{URL: byIP}).OK)
	require.True(t, p.Fetch(context.Background(), &Request{URL: byName}).OK)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, p.Len())

	// a second request to the same host waits for its delay
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res := p.Fetch(ctx, &Request{URL: byIP + "/again"})
	assert.False(t, res.OK)
	assert.Contains(t, res.Reason, "rate limit wait")
	assert.Equal(t, int32(2), calls.Load())

	stats := p.For("127.0.0.1").Stats()
	assert.Equal(t, 1, stats.RequestsSucceeded)
	assert.Equal(t, 1, stats.RequestsFailed)
	assert.Equal(t, 1, p.For("localhost").Stats().RequestsSucceeded)
}

func TestPool_DropsIdleFetchers(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := NewPool(Options{NoDelay: true, Clock: clock, Logger: quietLogger()}, time.Minute)

	a := p.For("a.example")
	p.For("b.example")
	assert.Equal(t, 2, p.Len())
	assert.Same(t, a, p.For("a.example"))

	clock.Advance(2 * time.Minute)
	p.For("a.example")
	assert.Equal(t, 1, p.Len())
	assert.NotSame(t, a, p.For("a.example"))
}
