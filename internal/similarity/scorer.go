// Package similarity holds the value comparison algorithms used by the
// matching engine and the policy mapping raw similarity to confidence.
package similarity

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
)

// Algorithm names a scorer.
type Algorithm string

// Scorers.
const (
	ExactHash   Algorithm = "exact_hash"
	ExactString Algorithm = "exact_string"
	JaroWinkler Algorithm = "jaro_winkler"
	TokenSet    Algorithm = "token_set"
	Levenshtein Algorithm = "levenshtein"
)

// StringScorer compares two normalized strings and returns a similarity in [0,1].
type StringScorer func(a, b string) float64

var fuzzyScorers = map[Algorithm]StringScorer{
	JaroWinkler: JaroWinklerSimilarity,
	TokenSet:    TokenSetRatio,
	Levenshtein: LevenshteinRatio,
}

// ParseAlgorithm parses a fuzzy algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := fuzzyScorers[a]; !ok {
		return "", eris.Errorf("similarity: unknown fuzzy algorithm %q", s)
	}
	return a, nil
}

// IsFuzzy reports whether a is one of the fuzzy algorithms.
func (a Algorithm) IsFuzzy() bool {
	_, ok := fuzzyScorers[a]
	return ok
}

// DefaultAlgorithm returns the fuzzy algorithm used for kind when no policy
// overrides it: Jaro-Winkler for names, token-set for addresses and the
// Levenshtein ratio for everything else.
func DefaultAlgorithm(kind model.Kind) Algorithm {
	switch kind {
	case model.KindName:
		return JaroWinkler
	case model.KindAddress:
		return TokenSet
	default:
		return Levenshtein
	}
}

// Score compares two normalized identifiers with alg. Invalid or mismatched
// kinds score zero.
func Score(alg Algorithm, a, b model.NormalizedIdentifier) float64 {
	if !a.Valid || !b.Valid || a.Kind != b.Kind {
		return 0
	}
	switch alg {
	case ExactHash:
		return HashEqual(a, b)
	case ExactString:
		return StringEqual(a, b)
	}
	fn, ok := fuzzyScorers[alg]
	if !ok {
		return 0
	}
	return round(fn(a.Normalized, b.Normalized))
}

// HashEqual returns 1 when two valid hash identifiers carry the same digest.
// There is no partial credit.
func HashEqual(a, b model.NormalizedIdentifier) float64 {
	if a.Kind != model.KindHash || b.Kind != model.KindHash || !a.Valid || !b.Valid {
		return 0
	}
	if a.Normalized == b.Normalized {
		return 1
	}
	return 0
}

// StringEqual returns 1 when two valid identifiers of the same kind have
// equal normalized forms.
func StringEqual(a, b model.NormalizedIdentifier) float64 {
	if a.Kind != b.Kind || !a.Valid || !b.Valid || a.Normalized == "" {
		return 0
	}
	if a.Normalized == b.Normalized {
		return 1
	}
	return 0
}

// round trims float noise so that ratios such as 7/10 land exactly on the
// threshold they are compared against.
func round(s float64) float64 {
	return math.Round(s*1e9) / 1e9
}
