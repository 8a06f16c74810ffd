// Package sentiment scores text with pluggable models and reports every
// result on one comparable scale: a compound score in [-1, 1] plus
// positive/negative/neutral shares that sum to one.
package sentiment

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"github.com/use-agent/finpulse/metrics"
	"github.com/use-agent/finpulse/models"
)

// DefaultModel is the model used when the caller names none.
const DefaultModel = "vader"

// DefaultModels maps the built-in model names to their kinds.
var DefaultModels = map[string]string{
	"vader":    KindLexicon,
	"textblob": KindPolarity,
}

// Options configures a Scorer.
type Options struct {
	// Models maps model names to kinds. Nil means DefaultModels.
	Models  map[string]string
	Default string
	Clock   clockwork.Clock
	Metrics *metrics.Metrics
}

// Scorer dispatches analyses to registered models. It is read-only after
// construction and safe for concurrent use.
type Scorer struct {
	models  map[string]Model
	def     string
	clock   clockwork.Clock
	metrics *metrics.Metrics
}

// New builds a Scorer. It fails when a configured kind is unknown or the
// default names an unregistered model.
func New(opts Options) (*Scorer, error) {
	if opts.Models == nil {
		opts.Models = DefaultModels
	}
	if opts.Default == "" {
		opts.Default = DefaultModel
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	s := &Scorer{
		models:  make(map[string]Model, len(opts.Models)),
		def:     opts.Default,
		clock:   opts.Clock,
		metrics: opts.Metrics,
	}
	for name, kind := range opts.Models {
		m, err := newModel(name, kind)
		if err != nil {
			return nil, err
		}
		s.models[name] = m
	}
	if _, ok := s.models[s.def]; !ok {
		return nil, &models.UnsupportedModelError{Name: s.def, Available: s.Models()}
	}
	return s, nil
}

func newModel(name, kind string) (Model, error) {
	switch strings.ToLower(kind) {
	case KindLexicon, "vader":
		return NewLexiconModel(name), nil
	case KindPolarity, "textblob", "pattern":
		return NewPolarityModel(name), nil
	default:
		return nil, fmt.Errorf("sentiment: model %q: unknown kind %q", name, kind)
	}
}

// Models returns the registered model names in sorted order.
func (s *Scorer) Models() []string {
	names := make([]string, 0, len(s.models))
	for name := range s.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns the default model name.
func (s *Scorer) Default() string { return s.def }

// Analyze scores text with the named model; an empty name selects the
// default. Unknown names return an *models.UnsupportedModelError.
func (s *Scorer) Analyze(text, model string) (models.SentimentResult, error) {
	if model == "" {
		model = s.def
	}
	m, ok := s.models[model]
	if !ok {
		return models.SentimentResult{}, &models.UnsupportedModelError{Name: model, Available: s.Models()}
	}

	if strings.TrimSpace(text) == "" {
		return models.SentimentResult{
			Model:   model,
			Neutral: 1,
			Label:   models.LabelNeutral,
		}, nil
	}

	start := s.clock.Now()
	raw := m.Score(text)
	elapsed := s.clock.Since(start)

	pos, neg, neu := Normalize(raw.Positive, raw.Negative, raw.Neutral)
	res := models.SentimentResult{
		Model:        model,
		Compound:     clamp(raw.Compound, -1, 1),
		Positive:     pos,
		Negative:     neg,
		Neutral:      neu,
		Label:        raw.Label,
		Confidence:   clamp(raw.Confidence, 0, 1),
		Subjectivity: raw.Subjectivity,
		TextLength:   utf8.RuneCountInString(text),
		WordCount:    len(strings.Fields(text)),
		Duration:     elapsed,
	}
	s.metrics.ObserveScore(model, string(res.Label), elapsed)
	return res, nil
}

// AnalyzeAll scores text with every registered model in name order.
func (s *Scorer) AnalyzeAll(text string) []models.SentimentResult {
	names := s.Models()
	out := make([]models.SentimentResult, 0, len(names))
	for _, name := range names {
		// cannot fail: name comes from the registry
		res, _ := s.Analyze(text, name)
		out = append(out, res)
	}
	return out
}

// Normalize rescales a triple so it sums to one. Negative inputs count as
// zero; an all-zero triple becomes fully neutral.
func Normalize(pos, neg, neu float64) (float64, float64, float64) {
	pos, neg, neu = max(pos, 0), max(neg, 0), max(neu, 0)
	sum := pos + neg + neu
	if sum <= 0 {
		return 0, 0, 1
	}
	return pos / sum, neg / sum, neu / sum
}
