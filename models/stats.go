package models

import "time"

// RunStats are the counters of one scraper run. They belong to a single
// fetcher instance and are never shared across runs.
type RunStats struct {
	// RequestsAttempted counts HTTP attempts, retries included.
	RequestsAttempted int `json:"requests_attempted"`

	// RequestsSucceeded and RequestsFailed count logical fetches.
	RequestsSucceeded int `json:"requests_succeeded"`
	RequestsFailed    int `json:"requests_failed"`

	ItemsProduced int `json:"items_produced"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Duration is the wall time of a finished run, or zero while running.
func (s RunStats) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
