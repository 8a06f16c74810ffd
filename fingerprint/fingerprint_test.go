package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOf_Deterministic(t *testing.T) {
	text := "Apple beats on strong iPhone sales"
	assert.Equal(t, Of(text), Of(text))
}

func TestOf_IgnoresCaseAndPunctuation(t *testing.T) {
	assert.Equal(t,
		Of("Apple beats on strong iPhone sales"),
		Of("APPLE beats on strong iphone sales!"),
	)
}

func TestOf_Empty(t *testing.T) {
	assert.Zero(t, Of(""))
	assert.Zero(t, Of("  ... !!! "))
}

func TestDistance_SimilarVsDifferent(t *testing.T) {
	base := "shares of apple rose three percent after the company reported record iphone revenue for the quarter and raised its dividend"
	edited := "shares of apple rose three percent after the company reported record iphone revenue for the quarter and raised the dividend"
	other := "the federal reserve left interest rates unchanged and signaled two cuts later this year as inflation cooled"

	near := Distance(Of(base), Of(edited))
	far := Distance(Of(base), Of(other))
	assert.Less(t, near, far)
	assert.Greater(t, far, 10)
}

func TestSimilar(t *testing.T) {
	assert.True(t, Similar(0b1011, 0b1001, 1))
	assert.False(t, Similar(0b1011, 0b0100, 3))
}

func TestIndex(t *testing.T) {
	x := NewIndex(0)
	fp := Of("Apple beats on strong iPhone sales")

	assert.False(t, x.Seen(fp))
	assert.True(t, x.Seen(fp))
	assert.True(t, x.Seen(fp^1), "one bit away is a near-duplicate")
	assert.False(t, x.Seen(0))
	assert.False(t, x.Seen(^fp))
	assert.Equal(t, 2, x.Len())
}
