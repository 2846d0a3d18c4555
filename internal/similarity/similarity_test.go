package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/normalize"
)

func TestJaroWinkler(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"martha", "marhta", 0.961},
		{"dwayne", "duane", 0.840},
		{"dixon", "dicksonx", 0.813},
		{"john smith", "jon smith", 0.973},
		{"same", "same", 1.0},
		{"", "abc", 0.0},
		{"abc", "xyz", 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, JaroWinklerSimilarity(tt.a, tt.b), 0.001)
		})
	}
}

func TestJaroWinkler_Unicode(t *testing.T) {
	// Rune-based: a multi-byte rune counts once.
	assert.InDelta(t, JaroWinklerSimilarity("abcd", "abce"), JaroWinklerSimilarity("abcé", "abcd"), 0.0001)
}

func TestLevenshteinRatio(t *testing.T) {
	assert.InDelta(t, 1-3.0/7.0, LevenshteinRatio("kitten", "sitting"), 0.0001)
	assert.Equal(t, 1.0, LevenshteinRatio("", ""))
	assert.Equal(t, 0.0, LevenshteinRatio("", "abc"))
	assert.InDelta(t, 0.75, LevenshteinRatio("josé", "jose"), 0.0001)
}

func TestTokenSetRatio(t *testing.T) {
	assert.Equal(t, 1.0, TokenSetRatio("123 main st apt 4", "apt 4 123 main st"))
	assert.Equal(t, 1.0, TokenSetRatio("fuzzy wuzzy was a bear", "wuzzy fuzzy was a bear bear"))
	// A subset of the other side's words scores 1.
	assert.Equal(t, 1.0, TokenSetRatio("123 main st", "123 main st apt 4"))
	assert.Less(t, TokenSetRatio("123 main st", "9 elm rd"), 0.5)
	assert.Equal(t, 0.0, TokenSetRatio("", "x"))
}

func TestScore_ExactHash(t *testing.T) {
	a := normalize.HashContent("a.bin", []byte("payload"))
	b := normalize.HashContent("b.bin", []byte("payload"))
	c := normalize.HashContent("c.bin", []byte("payload2"))
	assert.Equal(t, 1.0, Score(ExactHash, a, b))
	assert.Equal(t, 0.0, Score(ExactHash, a, c))
}

func TestScore_ExactString(t *testing.T) {
	a := normalize.Email("User@Example.com")
	b := normalize.Email("user@example.com ")
	assert.Equal(t, 1.0, Score(ExactString, a, b))

	// Kinds must agree.
	u := normalize.Username("user@example.com")
	assert.Equal(t, 0.0, Score(ExactString, a, u))
}

func TestScore_InvalidScoresZero(t *testing.T) {
	a := normalize.Name("")
	b := normalize.Name("John")
	assert.Equal(t, 0.0, Score(JaroWinkler, a, b))
	assert.Equal(t, 0.0, Score(Levenshtein, b, a))
}

func TestScore_RoundsToThreshold(t *testing.T) {
	a := normalize.Other("abcdefghij")
	b := normalize.Other("abcdefgxyz")
	s := Score(Levenshtein, a, b)
	assert.Equal(t, 0.7, s)
	c, ok := FuzzyConfidence(s)
	require.True(t, ok)
	assert.Equal(t, 0.5, c)
}

func TestScore_Diacritics(t *testing.T) {
	a := normalize.Name("José")
	b := normalize.Name("Jose")
	assert.Equal(t, 1.0, Score(JaroWinkler, a, b))
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm(" Token_Set ")
	require.NoError(t, err)
	assert.Equal(t, TokenSet, a)

	_, err = ParseAlgorithm("soundex")
	assert.Error(t, err)

	assert.True(t, JaroWinkler.IsFuzzy())
	assert.False(t, ExactHash.IsFuzzy())
}

func TestDefaultAlgorithm(t *testing.T) {
	assert.Equal(t, JaroWinkler, DefaultAlgorithm(model.KindName))
	assert.Equal(t, TokenSet, DefaultAlgorithm(model.KindAddress))
	assert.Equal(t, Levenshtein, DefaultAlgorithm(model.KindOther))
}

func TestFuzzyConfidence_Mapping(t *testing.T) {
	tests := []struct {
		s       float64
		want    float64
		emitted bool
	}{
		{1.0, 0.9, true},
		{0.95, 0.9, true},
		{0.90, 0.9, true},
		{0.85, 0.8, true},
		{0.80, 0.7, true},
		{0.75, 0.6, true},
		{0.70, 0.5, true},
		{0.6999, 0, false},
		{0.0, 0, false},
	}
	for _, tt := range tests {
		c, ok := FuzzyConfidence(tt.s)
		assert.Equal(t, tt.emitted, ok, "similarity %v", tt.s)
		assert.InDelta(t, tt.want, c, 1e-9, "similarity %v", tt.s)
	}
}

func TestFuzzyConfidence_Monotonic(t *testing.T) {
	prev := 0.0
	for i := 700; i <= 1000; i++ {
		s := float64(i) / 1000
		c, ok := FuzzyConfidence(s)
		require.True(t, ok)
		assert.GreaterOrEqual(t, c, prev, "similarity %v", s)
		assert.GreaterOrEqual(t, c, 0.5)
		assert.LessOrEqual(t, c, 0.9)
		prev = c
	}
}

func TestConfidence_Exact(t *testing.T) {
	c, ok := Confidence(model.StrategyExactHash, 1)
	assert.True(t, ok)
	assert.Equal(t, 1.0, c)

	c, ok = Confidence(model.StrategyExactString, 1)
	assert.True(t, ok)
	assert.Equal(t, 0.95, c)

	_, ok = Confidence(model.StrategyExactString, 0)
	assert.False(t, ok)

	c, ok = Confidence(model.StrategyPartial, 0.93)
	assert.True(t, ok)
	assert.Equal(t, 0.9, c)
}

func TestTierFor(t *testing.T) {
	tier, ok := TierFor(1.0)
	assert.True(t, ok)
	assert.Equal(t, model.TierHigh, tier)

	tier, _ = TierFor(0.9)
	assert.Equal(t, model.TierHigh, tier)
	tier, _ = TierFor(0.89)
	assert.Equal(t, model.TierMedium, tier)
	tier, _ = TierFor(0.7)
	assert.Equal(t, model.TierMedium, tier)
	tier, _ = TierFor(0.69)
	assert.Equal(t, model.TierLow, tier)
	tier, _ = TierFor(0.5)
	assert.Equal(t, model.TierLow, tier)

	_, ok = TierFor(0.49)
	assert.False(t, ok)
}
