package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shellPage = `<html><head><script src="/app.js"></script><style>body{margin:0}</style></head><body><div id="root"></div></body></html>`

func serve(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestFetch_EscalatesForbidden(t *testing.T) {
	srv, calls := serve(t, http.StatusForbidden, "blocked")
	r := &stubRenderer{status: http.StatusOK}
	hosts := NewHostMemory(time.Hour, clockwork.NewFakeClock())
	f := testFetcher(Options{Renderer: r, Escalate: true, Hosts: hosts, NoRetry: true})

	res := f.Fetch(context.Background(), &Request{URL: srv.URL})
	require.True(t, res.OK, res.Reason)
	assert.Contains(t, res.Text(), "rendered")
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 1, r.calls)
	assert.True(t, hosts.Prefers("127.0.0.1"))

	// the host now goes straight to the browser
	res = f.Fetch(context.Background(), &Request{URL: srv.URL + "/next"})
	require.True(t, res.OK, res.Reason)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 2, r.calls)

	stats := f.Stats()
	assert.Equal(t, 3, stats.RequestsAttempted)
	assert.Equal(t, 2, stats.RequestsSucceeded)
}

func TestFetch_EscalatesScriptShell(t *testing.T) {
	srv, _ := serve(t, http.StatusOK, shellPage)
	r := &stubRenderer{status: http.StatusOK}
	f := testFetcher(Options{Renderer: r, Escalate: true})

	res := f.Fetch(context.Background(), &Request{URL: srv.URL})
	require.True(t, res.OK)
	assert.Contains(t, res.Text(), "rendered")
	assert.Equal(t, 1, r.calls)
}

func TestFetch_EscalationKeepsOriginalFailure(t *testing.T) {
	srv, _ := serve(t, http.StatusForbidden, "blocked")
	r := &stubRenderer{err: errors.New("browser crashed")}
	hosts := NewHostMemory(time.Hour, nil)
	f := testFetcher(Options{Renderer: r, Escalate: true, Hosts: hosts, NoRetry: true})

	res := f.Fetch(context.Background(), &Request{URL: srv.URL})
	assert.False(t, res.OK)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, 1, r.calls)
	assert.Zero(t, hosts.Len())
}

func TestFetch_NoEscalationWhenDisabled(t *testing.T) {
	srv, _ := serve(t, http.StatusForbidden, "blocked")
	r := &stubRenderer{status: http.StatusOK}
	f := testFetcher(Options{Renderer: r, NoRetry: true})

	res := f.Fetch(context.Background(), &Request{URL: srv.URL})
	assert.False(t, res.OK)
	assert.Zero(t, r.calls)

	// POST is never escalated
	f = testFetcher(Options{Renderer: r, Escalate: true, NoRetry: true})
	res = f.Fetch(context.Background(), &Request{URL: srv.URL, Method: http.MethodPost})
	assert.False(t, res.OK)
	assert.Zero(t, r.calls)
}

func TestFetch_RememberedHostForgottenOnFailure(t *testing.T) {
	srv, calls := serve(t, http.StatusOK, "<html><body>plain</body></html>")
	r := &stubRenderer{err: errors.New("browser crashed")}
	hosts := NewHostMemory(time.Hour, nil)
	hosts.Remember("127.0.0.1")
	f := testFetcher(Options{Renderer: r, Escalate: true, Hosts: hosts, NoRetry: true})

	res := f.Fetch(context.Background(), &Request{URL: srv.URL})
	assert.False(t, res.OK)
	assert.Zero(t, calls.Load())
	assert.False(t, hosts.Prefers("127.0.0.1"))

	// next time plain HTTP is tried first again
	res = f.Fetch(context.Background(), &Request{URL: srv.URL})
	assert.True(t, res.OK)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHostMemory_Expiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewHostMemory(time.Hour, clock)
	m.Remember("news.example")
	assert.True(t, m.Prefers("news.example"))

	clock.Advance(2 * time.Hour)
	assert.False(t, m.Prefers("news.example"))
	assert.Zero(t, m.Len())

	var nilMem *HostMemory
	nilMem.Remember("x")
	assert.False(t, nilMem.Prefers("x"))
}

func TestScriptShell(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   bool
	}{
		{"spa shell", shellPage, true},
		{"article", "<html><script>var a=1</script><body><p>" + longText + "</p></body></html>", false},
		{"no scripts", "<html><body></body></html>", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scriptShell([]byte(tt.markup)))
		})
	}
}

const longText = "Stocks rallied on Tuesday as investors digested a fresh batch of earnings reports " +
	"and the latest inflation figures, with technology shares leading the advance and the " +
	"broader market closing near its record high after a volatile start to the session."
