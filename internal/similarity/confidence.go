package similarity

import "github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"

// Confidence constants.
const (
	ExactHashConfidence   = 1.0
	ExactStringConfidence = 0.95

	// MinFuzzySimilarity is the floor below which fuzzy comparisons are never
	// suggested, whatever threshold a caller asks for.
	MinFuzzySimilarity = 0.70

	highFuzzy   = 0.90
	mediumFuzzy = 0.80
)

// Tier thresholds.
const (
	HighTier   = 0.9
	MediumTier = 0.7
	LowTier    = 0.5
)

// FuzzyConfidence maps a fuzzy similarity to a confidence. The second
// return is false below MinFuzzySimilarity, where nothing is emitted.
//
//	s >= 0.90         -> 0.9
//	0.80 <= s < 0.90  -> 0.7 + (s-0.80)*2
//	0.70 <= s < 0.80  -> 0.5 + (s-0.70)*2
func FuzzyConfidence(s float64) (float64, bool) {
	switch {
	case s >= highFuzzy:
		return 0.9, true
	case s >= mediumFuzzy:
		return round(0.7 + (s-mediumFuzzy)*2), true
	case s >= MinFuzzySimilarity:
		return round(0.5 + (s-MinFuzzySimilarity)*2), true
	default:
		return 0, false
	}
}

// Confidence returns the confidence of a result produced by strategy with
// the given similarity. Exact strategies carry fixed confidences and only
// apply to a full match.
func Confidence(strategy model.Strategy, s float64) (float64, bool) {
	switch strategy {
	case model.StrategyExactHash:
		return ExactHashConfidence, s >= 1
	case model.StrategyExactString:
		return ExactStringConfidence, s >= 1
	default:
		return FuzzyConfidence(s)
	}
}

// TierFor buckets a confidence: high from 0.9, medium from 0.7, low from 0.5.
// The second return is false below the low tier.
func TierFor(confidence float64) (model.Tier, bool) {
	switch {
	case confidence >= HighTier:
		return model.TierHigh, true
	case confidence >= MediumTier:
		return model.TierMedium, true
	case confidence >= LowTier:
		return model.TierLow, true
	default:
		return "", false
	}
}
