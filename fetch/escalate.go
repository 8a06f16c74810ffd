package fetch

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/net/html"
)

// DefaultHostTTL is how long a host stays routed through the browser after
// an escalation succeeded.
const DefaultHostTTL = 24 * time.Hour

// shellTextLimit is the visible-text size below which a page with scripts
// is treated as a client-rendered shell.
const shellTextLimit = 200

// HostMemory remembers hosts that only served usable pages through the
// browser. A nil *HostMemory remembers nothing.
type HostMemory struct {
	ttl   time.Duration
	clock clockwork.Clock

	mu    sync.Mutex
	until map[string]time.Time
}

// NewHostMemory creates a HostMemory whose entries expire after ttl.
func NewHostMemory(ttl time.Duration, clock clockwork.Clock) *HostMemory {
	if ttl <= 0 {
		ttl = DefaultHostTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &HostMemory{ttl: ttl, clock: clock, until: make(map[string]time.Time)}
}

// Remember routes host through the browser for the TTL.
func (m *HostMemory) Remember(host string) {
	if m == nil || host == "" {
		return
	}
	m.mu.Lock()
	m.until[host] = m.clock.Now().Add(m.ttl)
	m.mu.Unlock()
}

// Prefers reports whether host is remembered and not expired. Expired
// entries are dropped on lookup.
func (m *HostMemory) Prefers(host string) bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.until[host]
	if !ok {
		return false
	}
	if m.clock.Now().After(exp) {
		delete(m.until, host)
		return false
	}
	return true
}

// Forget drops host, e.g. after the browser failed on it too.
func (m *HostMemory) Forget(host string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	delete(m.until, host)
	m.mu.Unlock()
}

// Len returns the number of remembered hosts, expired ones included.
func (m *HostMemory) Len() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.until)
}

func (f *Fetcher) canEscalate(method string) bool {
	return f.escalate && f.renderer != nil && method == http.MethodGet
}

func hostOf(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// needsBrowser reports whether a plain HTTP outcome looks like bot blocking
// or a page that only renders client-side.
func needsBrowser(out, last *attempt, err error) bool {
	if err != nil {
		return statusOf(last) == http.StatusForbidden
	}
	return isHTML(out.contentType) && scriptShell(out.body)
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// scriptShell reports whether markup has scripts but almost no visible text.
func scriptShell(markup []byte) bool {
	z := html.NewTokenizer(bytes.NewReader(markup))
	scripts, text := 0, 0
	skip := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return scripts > 0 && text < shellTextLimit
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script":
				scripts++
				skip = true
			case "style", "noscript", "template":
				skip = true
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "noscript", "template":
				skip = false
			}
		case html.TextToken:
			if !skip {
				text += len(bytes.TrimSpace(z.Text()))
			}
		}
	}
}
