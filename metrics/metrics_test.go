package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersWithoutConflicts(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { New(reg) })

	// registering twice on the same registry must fail
	assert.Panics(t, func() { New(reg) })
}

func TestObserveFetch(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAttempt(503)
	m.ObserveAttempt(503)
	m.ObserveAttempt(200)
	m.ObserveFetch(true, 2*time.Second)
	m.ObserveFetch(false, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FetchAttempts.WithLabelValues("503")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchAttempts.WithLabelValues("200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchResults.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchResults.WithLabelValues("failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.FetchDuration))
}

func TestObserveRun(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveRun("news", true, 7, time.Minute)
	m.ObserveRun("news", false, 2, time.Second)

	assert.Equal(t, 9.0, testutil.ToFloat64(m.RunItems.WithLabelValues("news")))

	expected := `
# HELP finpulse_scraper_runs_total Scraper runs by source and outcome.
# TYPE finpulse_scraper_runs_total counter
finpulse_scraper_runs_total{outcome="failed",source="news"} 1
finpulse_scraper_runs_total{outcome="ok",source="news"} 1
`
	require.NoError(t, testutil.CollectAndCompare(m.RunsTotal, strings.NewReader(expected)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAttempt(200)
		m.ObserveFetch(true, time.Second)
		m.ObserveScore("vader", "positive", time.Millisecond)
		m.ObserveRun("news", true, 1, time.Second)
		m.ObserveHTTP("GET", "/health", 200, time.Millisecond)
	})
}
