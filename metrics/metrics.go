// Package metrics exposes Prometheus collectors for the fetch, scoring and
// run stages. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "finpulse"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Metrics holds every pipeline collector.
type Metrics struct {
	FetchAttempts *prometheus.CounterVec
	FetchResults  *prometheus.CounterVec
	FetchDuration prometheus.Histogram

	ScoresTotal   *prometheus.CounterVec
	ScoreDuration *prometheus.HistogramVec

	RunsTotal   *prometheus.CounterVec
	RunItems    *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates and registers the pipeline metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "attempts_total",
			Help:      "HTTP attempts by response status (0 for transport errors).",
		}, []string{"status"}),
		FetchResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "results_total",
			Help:      "Logical fetches by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Duration of logical fetches including retries and rate-limit waits.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		ScoresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sentiment",
			Name:      "scores_total",
			Help:      "Sentiment analyses by model and label.",
		}, []string{"model", "label"}),
		ScoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sentiment",
			Name:      "duration_seconds",
			Help:      "Model scoring time in seconds.",
			Buckets:   []float64{.00001, .0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"model"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scraper",
			Name:      "runs_total",
			Help:      "Scraper runs by source and outcome.",
		}, []string{"source", "outcome"}),
		RunItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scraper",
			Name:      "items_total",
			Help:      "Items produced by source.",
		}, []string{"source"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scraper",
			Name:      "run_duration_seconds",
			Help:      "Wall time of scraper runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"source"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests.",
		}, []string{"method", "route", "status_code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of API requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.FetchAttempts, m.FetchResults, m.FetchDuration,
		m.ScoresTotal, m.ScoreDuration,
		m.RunsTotal, m.RunItems, m.RunDuration,
		m.HTTPRequests, m.HTTPDuration,
	)
	return m
}

func (m *Metrics) ObserveAttempt(status int) {
	if m == nil {
		return
	}
	m.FetchAttempts.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObserveFetch(ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchResults.WithLabelValues(outcome(ok)).Inc()
	m.FetchDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveScore(model, label string, d time.Duration) {
	if m == nil {
		return
	}
	m.ScoresTotal.WithLabelValues(model, label).Inc()
	m.ScoreDuration.WithLabelValues(model).Observe(d.Seconds())
}

func (m *Metrics) ObserveRun(source string, ok bool, items int, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(source, outcome(ok)).Inc()
	m.RunItems.WithLabelValues(source).Add(float64(items))
	m.RunDuration.WithLabelValues(source).Observe(d.Seconds())
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
