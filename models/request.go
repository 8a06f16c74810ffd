package models

// MaxTextLength bounds the text accepted by the analysis endpoints.
const MaxTextLength = 100_000

// SentimentRequest is the payload for POST /api/v1/sentiment.
type SentimentRequest struct {
	// Text may be empty; empty text scores as neutral.
	Text string `json:"text" binding:"max=100000"`

	// Model selects one registered model. Empty uses the default.
	Model string `json:"model,omitempty"`

	// All scores with every registered model and ignores Model.
	All bool `json:"all,omitempty"`
}

// TickerRequest is the payload for POST /api/v1/tickers.
type TickerRequest struct {
	Text string `json:"text" binding:"required,max=100000"`
}

// ExtractRequest is the payload for POST /api/v1/extract. Exactly one of URL
// and HTML must be set.
type ExtractRequest struct {
	URL  string `json:"url,omitempty" binding:"omitempty,url"`
	HTML string `json:"html,omitempty"`

	// OutputFormat is "text" (default), "markdown" or "html".
	OutputFormat string `json:"output_format,omitempty" binding:"omitempty,oneof=text markdown html"`

	// ExtractMode is "readability" (default) or "raw".
	ExtractMode string `json:"extract_mode,omitempty" binding:"omitempty,oneof=readability raw"`

	// Selector restricts extraction to matching elements.
	Selector string `json:"selector,omitempty"`

	// Render loads the page in the headless browser when one is configured.
	Render bool `json:"render,omitempty"`

	// Score adds sentiment results for the extracted text.
	Score bool   `json:"score,omitempty"`
	Model string `json:"model,omitempty"`

	// MaxAge in seconds allows a cached result of at most that age. Zero
	// bypasses the cache.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`
}

// Defaults applies default values to unset fields.
func (r *ExtractRequest) Defaults() {
	if r.OutputFormat == "" {
		r.OutputFormat = "text"
	}
	if r.ExtractMode == "" {
		r.ExtractMode = "readability"
	}
}

// RunRequest is the payload for POST /api/v1/runs.
type RunRequest struct {
	// Source limits the run to one configured source. Empty runs all.
	Source string `json:"source,omitempty"`
}
