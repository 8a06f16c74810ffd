package models

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// SentimentResponse is the response for POST /api/v1/sentiment.
type SentimentResponse struct {
	Success bool              `json:"success"`
	Results []SentimentResult `json:"results"`
	// CacheStatus is "hit" or "miss".
	CacheStatus string `json:"cache_status,omitempty"`
}

// TickerResponse is the response for POST /api/v1/tickers.
type TickerResponse struct {
	Success  bool           `json:"success"`
	Tickers  []string       `json:"tickers"`
	Mentions map[string]int `json:"mentions"`
}

// ExtractResponse is the response for POST /api/v1/extract.
type ExtractResponse struct {
	Success    bool   `json:"success"`
	URL        string `json:"url,omitempty"`
	FinalURL   string `json:"final_url,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`

	Title    string `json:"title"`
	Byline   string `json:"byline,omitempty"`
	SiteName string `json:"site_name,omitempty"`
	Content  string `json:"content"`
	Format   string `json:"format"`

	WordCount          int               `json:"word_count"`
	ReadingTimeMinutes float64           `json:"reading_time_minutes"`
	Tickers            []string          `json:"tickers"`
	Sentiment          []SentimentResult `json:"sentiment,omitempty"`

	Timing      TimingInfo `json:"timing"`
	CacheStatus string     `json:"cache_status,omitempty"`
}

// TimingInfo breaks down where an extract request spent its time.
type TimingInfo struct {
	TotalMs   int64 `json:"total_ms"`
	FetchMs   int64 `json:"fetch_ms"`
	ExtractMs int64 `json:"extract_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string   `json:"status"`
	Uptime  string   `json:"uptime"`
	Version string   `json:"version"`
	Models  []string `json:"models"`
	Sources []string `json:"sources"`
}
