package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/use-agent/finpulse/models"
)

func TestLexiconModel_Rules(t *testing.T) {
	m := NewLexiconModel("vader")
	base := m.Score("The results were good").Compound

	t.Run("booster raises", func(t *testing.T) {
		assert.Greater(t, m.Score("The results were very good").Compound, base)
	})
	t.Run("dampener lowers", func(t *testing.T) {
		assert.Less(t, m.Score("The results were slightly good").Compound, base)
	})
	t.Run("negation flips", func(t *testing.T) {
		s := m.Score("The results were not good")
		assert.Less(t, s.Compound, 0.0)
		assert.Equal(t, models.LabelNegative, s.Label)
	})
	t.Run("contraction negates", func(t *testing.T) {
		assert.Less(t, m.Score("The results weren't good").Compound, 0.0)
	})
	t.Run("caps emphasis", func(t *testing.T) {
		assert.Greater(t, m.Score("The results were GOOD").Compound, base)
	})
	t.Run("exclamation emphasis", func(t *testing.T) {
		assert.Greater(t, m.Score("The results were good!!!").Compound, base)
	})
	t.Run("but shifts weight", func(t *testing.T) {
		s := m.Score("The quarter was good but the outlook is terrible")
		assert.Equal(t, models.LabelNegative, s.Label)
	})
	t.Run("neutral text", func(t *testing.T) {
		s := m.Score("The company filed its quarterly report")
		assert.Equal(t, models.LabelNeutral, s.Label)
		assert.Equal(t, 1.0, s.Neutral)
		assert.Equal(t, 1.0, s.Confidence)
	})
}

func TestLexiconModel_MatchesVADERReference(t *testing.T) {
	m := NewLexiconModel("vader")
	tests := []struct {
		text     string
		compound float64
		label    models.Label
	}{
		{"VADER is smart, handsome, and funny.", 0.8316, models.LabelPositive},
		{"VADER is smart, handsome, and funny!", 0.8439, models.LabelPositive},
		{"VADER is very smart, handsome, and funny.", 0.8545, models.LabelPositive},
		{"Today SUX!", -0.5461, models.LabelNegative},
		{"The book was good.", 0.4404, models.LabelPositive},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			s := m.Score(tt.text)
			assert.InDelta(t, tt.compound, s.Compound, 0.01)
			assert.Equal(t, tt.label, s.Label)
			assert.InDelta(t, 1.0, s.Positive+s.Negative+s.Neutral, 0.01)
		})
	}
}

func TestLexiconModel_ConfidenceIsLargestShare(t *testing.T) {
	s := NewLexiconModel("vader").Score("Profits soared while the rest stayed flat")
	assert.Equal(t, max(s.Positive, s.Negative, s.Neutral), s.Confidence)
}

func TestPolarityModel_Rules(t *testing.T) {
	m := NewPolarityModel("textblob")

	good := m.Score("good")
	assert.InDelta(t, 0.7, good.Compound, 1e-9)

	t.Run("intensifier scales", func(t *testing.T) {
		s := m.Score("very good")
		assert.InDelta(t, 0.91, s.Compound, 1e-9)
		assert.InDelta(t, 0.78, *s.Subjectivity, 1e-9)
	})
	t.Run("negation flips and halves", func(t *testing.T) {
		s := m.Score("not good")
		assert.InDelta(t, -0.35, s.Compound, 1e-9)
		assert.Equal(t, models.LabelNegative, s.Label)
		assert.InDelta(t, 0.35, s.Negative, 1e-9)
	})
	t.Run("sentence boundary resets negation", func(t *testing.T) {
		s := m.Score("Not today. Good news")
		assert.InDelta(t, 0.7, s.Compound, 1e-9)
	})
	t.Run("mean over assessments", func(t *testing.T) {
		s := m.Score("good and bad")
		assert.InDelta(t, 0.0, s.Compound, 1e-9)
		assert.Equal(t, models.LabelNeutral, s.Label)
	})
	t.Run("label threshold", func(t *testing.T) {
		// stable 0.4 averaged with neutral "big" 0.0 gives 0.2
		assert.Equal(t, models.LabelPositive, m.Score("big stable").Label)
		// solid alone is 0.1, exactly on the boundary
		assert.Equal(t, models.LabelPositive, m.Score("solid").Label)
		// unknown words carry no assessment
		assert.Equal(t, models.LabelNeutral, m.Score("quarterly filing").Label)
	})
}

func TestReadTable(t *testing.T) {
	vals, err := readTable("polarity.tsv", 3)
	assert.NoError(t, err)
	assert.Equal(t, []float64{0.7, 0.6, 0}, vals["good"])

	_, err = readTable("polarity.tsv", 1)
	assert.Error(t, err)

	_, err = readTable("missing.tsv", 1)
	assert.Error(t, err)
}
