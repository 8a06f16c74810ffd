package render

import (
	"time"

	"github.com/go-rod/rod"
)

// A tab is retired once any of these is reached.
const (
	retireScore = 3.0
	retireUses  = 50
	retireAge   = 50 * time.Minute
)

// tabHealth scores one pooled tab. Failures add a point, successes remove
// half a point.
type tabHealth struct {
	score   float64
	uses    int
	created time.Time
}

func (h *tabHealth) record(ok bool) {
	h.uses++
	if ok {
		h.score = max(0, h.score-0.5)
		return
	}
	h.score++
}

func (h *tabHealth) retire(now time.Time) bool {
	return h.score >= retireScore || h.uses >= retireUses || now.Sub(h.created) >= retireAge
}

func (r *Renderer) healthOf(page *rod.Page) *tabHealth {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.health[page]
	if !ok {
		h = &tabHealth{created: time.Now()}
		r.health[page] = h
	}
	return h
}

// release returns page to the pool, or closes it and frees its slot when it
// has become unhealthy.
func (r *Renderer) release(page *rod.Page, ok bool) {
	h := r.healthOf(page)

	r.mu.Lock()
	h.record(ok)
	retire := h.retire(time.Now())
	if retire {
		delete(r.health, page)
	}
	r.mu.Unlock()

	if retire {
		r.logger.Debug("retiring tab", "uses", h.uses, "score", h.score)
		if err := page.Close(); err != nil {
			r.logger.Warn("failed to close tab", "error", err)
		}
		// a nil slot makes the next Get open a fresh tab
		r.pool.Put(nil)
		return
	}

	// about:blank frees the previous DOM before the tab is reused
	if err := page.Navigate("about:blank"); err != nil {
		r.logger.Warn("failed to blank page", "error", err)
	}
	r.pool.Put(page)
}
