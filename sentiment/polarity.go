package sentiment

import (
	"math"
	"regexp"
	"strings"
)

const (
	polarityThreshold = 0.1
	// negatedScale flips and dampens a negated word ("not good" is mildly bad).
	negatedScale = -0.5
)

type polarityEntry struct {
	polarity     float64
	subjectivity float64
	intensity    float64
}

var (
	polarityLexicon = func() map[string]polarityEntry {
		t := mustTable("polarity.tsv", 3)
		out := make(map[string]polarityEntry, len(t))
		for w, v := range t {
			out[w] = polarityEntry{polarity: v[0], subjectivity: v[1], intensity: v[2]}
		}
		return out
	}()

	polarityToken = regexp.MustCompile(`[A-Za-z]+(?:'[A-Za-z]+)?|[.!?;]`)

	negations = map[string]struct{}{
		"aint": {}, "arent": {}, "cannot": {}, "cant": {}, "couldnt": {}, "didnt": {},
		"doesnt": {}, "dont": {}, "hadnt": {}, "hasnt": {}, "havent": {}, "isnt": {},
		"mightnt": {}, "mustnt": {}, "neither": {}, "never": {}, "none": {}, "nope": {},
		"nor": {}, "not": {}, "nothing": {}, "nowhere": {}, "shouldnt": {}, "wasnt": {},
		"werent": {}, "without": {}, "wont": {}, "wouldnt": {}, "rarely": {}, "seldom": {},
	}
)

func isNegation(w string) bool {
	if _, ok := negations[strings.ReplaceAll(w, "'", "")]; ok {
		return true
	}
	return strings.HasSuffix(w, "n't")
}

// PolarityModel averages (polarity, subjectivity) assessments of known
// words, in the style of the pattern library. Intensifiers scale the next
// word; negations flip and halve it. Sentence punctuation resets both.
type PolarityModel struct {
	name string
}

// NewPolarityModel returns a polarity model registered under name.
func NewPolarityModel(name string) *PolarityModel {
	return &PolarityModel{name: name}
}

func (m *PolarityModel) Name() string { return m.name }

func (m *PolarityModel) Score(text string) Scores {
	p, subj := m.assess(text)

	// The native score is a single polarity; spread it over the triple so
	// it compares with other models.
	abs := math.Abs(p)
	s := Scores{
		Compound:     p,
		Neutral:      1 - abs,
		Label:        labelFor(p, polarityThreshold),
		Confidence:   abs,
		Subjectivity: &subj,
	}
	if p > 0 {
		s.Positive = abs
	} else {
		s.Negative = abs
	}
	return s
}

// assess returns mean polarity in [-1, 1] and mean subjectivity in [0, 1].
func (m *PolarityModel) assess(text string) (polarity, subjectivity float64) {
	tokens := polarityToken.FindAllString(strings.ToLower(text), -1)

	var pSum, sSum float64
	n := 0
	negated := false
	scale := 1.0

	for i, tok := range tokens {
		switch tok {
		case ".", "!", "?", ";":
			negated, scale = false, 1.0
			continue
		}
		if isNegation(tok) {
			negated = true
			continue
		}
		e, ok := polarityLexicon[tok]
		if !ok {
			continue
		}
		if e.intensity > 0 && i+1 < len(tokens) {
			if _, next := polarityLexicon[tokens[i+1]]; next {
				scale *= e.intensity
				continue
			}
		}

		p := e.polarity * scale
		s := e.subjectivity * scale
		if negated {
			p *= negatedScale
			negated = false
		}
		pSum += clamp(p, -1, 1)
		sSum += clamp(s, 0, 1)
		n++
		scale = 1.0
	}

	if n == 0 {
		return 0, 0
	}
	return clamp(pSum/float64(n), -1, 1), clamp(sSum/float64(n), 0, 1)
}

var _ Model = (*PolarityModel)(nil)
var _ Model = (*LexiconModel)(nil)

