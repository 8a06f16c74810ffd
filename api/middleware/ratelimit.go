package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/use-agent/finpulse/config"
	"github.com/use-agent/finpulse/models"
)

const (
	limiterIdle  = time.Hour
	limiterSweep = 5 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit returns per-identity token-bucket limiting. The identity is the
// API key set by Auth, or the client IP. Limiters idle for an hour are
// dropped by a sweeper that stops with ctx.
func RateLimit(ctx context.Context, cfg config.RateLimitConfig, clock clockwork.Clock) gin.HandlerFunc {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	var mu sync.Mutex
	limiters := make(map[string]*limiterEntry)

	get := func(identity string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		e, ok := limiters[identity]
		if !ok {
			e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)}
			limiters[identity] = e
		}
		e.lastSeen = clock.Now()
		return e.limiter
	}

	go func() {
		ticker := clock.NewTicker(limiterSweep)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
			}
			cutoff := clock.Now().Add(-limiterIdle)
			mu.Lock()
			for id, e := range limiters {
				if e.lastSeen.Before(cutoff) {
					delete(limiters, id)
				}
			}
			mu.Unlock()
		}
	}()

	return func(c *gin.Context) {
		identity := c.GetString(APIKeyContext)
		if identity == "" {
			identity = c.ClientIP()
		}
		if !get(identity).AllowN(clock.Now(), 1) {
			abort(c, http.StatusTooManyRequests, models.ErrCodeRateLimited, "rate limit exceeded, please slow down")
			return
		}
		c.Next()
	}
}
