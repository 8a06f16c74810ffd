package sentiment

import (
	"math"

	"github.com/jonreiter/govader"
)

// lexiconThreshold is VADER's conventional compound cutoff for a label.
const lexiconThreshold = 0.05

// LexiconModel scores text with the VADER rule set and its full valence
// lexicon: boosters, negation, capitalization, contrastive "but" and
// punctuation emphasis.
type LexiconModel struct {
	name     string
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewLexiconModel returns a lexicon model registered under name.
func NewLexiconModel(name string) *LexiconModel {
	return &LexiconModel{name: name, analyzer: govader.NewSentimentIntensityAnalyzer()}
}

func (m *LexiconModel) Name() string { return m.name }

func (m *LexiconModel) Score(text string) Scores {
	s := m.analyzer.PolarityScores(text)
	return Scores{
		Compound:   s.Compound,
		Positive:   s.Positive,
		Negative:   s.Negative,
		Neutral:    s.Neutral,
		Label:      labelFor(s.Compound, lexiconThreshold),
		Confidence: math.Max(s.Positive, math.Max(s.Negative, s.Neutral)),
	}
}
