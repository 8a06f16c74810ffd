package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultPoolIdle is how long an unused per-host fetcher is kept.
const DefaultPoolIdle = 10 * time.Minute

// Pool hands out one Fetcher per host, so requests to one site are spaced
// and counted without holding back requests to another. The fetchers share
// one http.Client. Fetchers idle for longer than the idle period are dropped
// on the next lookup.
type Pool struct {
	opts  Options
	idle  time.Duration
	clock clockwork.Clock

	mu       sync.Mutex
	fetchers map[string]*pooled
}

type pooled struct {
	fetcher  *Fetcher
	lastUsed time.Time
}

// NewPool creates a Pool whose fetchers are built from opts. A zero idle
// means DefaultPoolIdle.
func NewPool(opts Options, idle time.Duration) *Pool {
	if idle <= 0 {
		idle = DefaultPoolIdle
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Client == nil {
		opts.Client = newClient(opts.ChromeTLS, opts.Proxy)
	}
	return &Pool{opts: opts, idle: idle, clock: opts.Clock, fetchers: make(map[string]*pooled)}
}

// For returns the fetcher for host, creating it on first use.
func (p *Pool) For(host string) *Fetcher {
	now := p.clock.Now()
	p.mu.Lock()
	defer p.mu.Unlock()

	for h, e := range p.fetchers {
		if now.Sub(e.lastUsed) > p.idle {
			delete(p.fetchers, h)
		}
	}

	e, ok := p.fetchers[host]
	if !ok {
		e = &pooled{fetcher: New(p.opts)}
		p.fetchers[host] = e
	}
	e.lastUsed = now
	return e.fetcher
}

// Fetch routes req to the fetcher of its host.
func (p *Pool) Fetch(ctx context.Context, req *Request) *Result {
	return p.For(hostOf(req.URL)).Fetch(ctx, req)
}

// Len returns the number of live per-host fetchers.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fetchers)
}

// Close releases the shared client's idle connections.
func (p *Pool) Close() error {
	p.opts.Client.CloseIdleConnections()
	return nil
}
