package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"github.com/use-agent/finpulse/metrics"
)

// Metrics records request count and latency per matched route. Unmatched
// paths are grouped under "unmatched" to bound label cardinality.
func Metrics(m *metrics.Metrics, clock clockwork.Clock) gin.HandlerFunc {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return func(c *gin.Context) {
		start := clock.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), clock.Since(start))
	}
}
