package models

import "time"

// Label is the categorical sentiment classification.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
)

// SentimentResult is the output of one (text, model) analysis.
type SentimentResult struct {
	Model string `json:"model"`

	// Compound is reported in the model's native [-1, 1] range.
	Compound float64 `json:"compound"`

	// Positive, Negative and Neutral always sum to 1.
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`

	Label Label `json:"label"`

	// Confidence is model-specific: the largest proportion for the lexicon
	// model, the absolute polarity for the polarity model.
	Confidence float64 `json:"confidence"`

	// Subjectivity is set only by models that measure it.
	Subjectivity *float64 `json:"subjectivity,omitempty"`

	TextLength int           `json:"text_length"`
	WordCount  int           `json:"word_count"`
	Duration   time.Duration `json:"duration_ns"`
}

// ScoredItem pairs an item with the sentiment results computed for it.
type ScoredItem struct {
	Item      ScrapedItem       `json:"item"`
	Sentiment []SentimentResult `json:"sentiment"`
}
