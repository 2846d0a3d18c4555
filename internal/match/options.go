package match

import (
	"math"
	"runtime"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/config"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/errs"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/normalize"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/similarity"
)

// Options tunes a FindMatches call.
type Options struct {
	// IncludePartial enables the fuzzy strategy for names, addresses and text.
	IncludePartial bool
	// PartialThreshold is the minimum fuzzy similarity, within [0,1]. Values
	// below 0.70 behave as 0.70.
	PartialThreshold float64
	// MaxResults truncates the ranked output. Zero means no limit.
	MaxResults int
	// EarlyExit skips Levenshtein fallback comparisons once MaxResults
	// candidates at confidence 0.9 or above have been found. Which fuzzy
	// comparisons are skipped depends on worker scheduling, so with Workers
	// above one the low-confidence tail of the output can differ between
	// runs. The high-confidence head does not. Requires MaxResults > 0.
	EarlyExit bool
	// Workers bounds concurrent candidate scoring. Zero means one worker per
	// available processor.
	Workers int
	// Cache is the session normalization cache. A fresh one is created per
	// call when nil.
	Cache *normalize.Cache
}

// DefaultOptions returns the default matching options.
func DefaultOptions() Options {
	return Options{
		IncludePartial:   true,
		PartialThreshold: similarity.MinFuzzySimilarity,
		MaxResults:       25,
	}
}

// OptionsFromConfig builds Options from the match config section.
func OptionsFromConfig(cfg config.MatchConfig) Options {
	return Options{
		IncludePartial:   cfg.IncludePartial,
		PartialThreshold: cfg.PartialThreshold,
		MaxResults:       cfg.MaxResults,
		EarlyExit:        cfg.EarlyExit,
		Workers:          cfg.Workers,
	}
}

// Validate fails fast on out-of-range settings.
func (o Options) Validate() error {
	if math.IsNaN(o.PartialThreshold) || o.PartialThreshold < 0 || o.PartialThreshold > 1 {
		return errs.Validation("partial_threshold", "must be within [0,1], got %v", o.PartialThreshold)
	}
	if o.MaxResults < 0 {
		return errs.Validation("max_results", "must be >= 0, got %d", o.MaxResults)
	}
	if o.Workers < 0 {
		return errs.Validation("workers", "must be >= 0, got %d", o.Workers)
	}
	return nil
}

func (o Options) threshold() float64 {
	return max(o.PartialThreshold, similarity.MinFuzzySimilarity)
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}
