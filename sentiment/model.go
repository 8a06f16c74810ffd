package sentiment

import "github.com/use-agent/finpulse/models"

// Scores is a model's raw output. Positive, Negative and Neutral need not
// sum to one; the Scorer normalizes them.
type Scores struct {
	Compound     float64
	Positive     float64
	Negative     float64
	Neutral      float64
	Label        models.Label
	Confidence   float64
	Subjectivity *float64
}

// Model scores a single piece of text. Implementations must be safe for
// concurrent use and must not fail on any input.
type Model interface {
	Name() string
	Score(text string) Scores
}

// Model kinds accepted in configuration.
const (
	KindLexicon  = "lexicon"
	KindPolarity = "polarity"
)

func labelFor(compound, threshold float64) models.Label {
	switch {
	case compound >= threshold:
		return models.LabelPositive
	case compound <= -threshold:
		return models.LabelNegative
	default:
		return models.LabelNeutral
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
