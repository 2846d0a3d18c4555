package model

import (
	"strings"
	"time"
)

// Strategy names the matching pass that produced a MatchResult.
type Strategy string

// Matching strategies, in the order they are attempted.
const (
	StrategyExactHash   Strategy = "exact_hash"
	StrategyExactString Strategy = "exact_string"
	StrategyPartial     Strategy = "partial"
	StrategyCombined    Strategy = "combined"
)

// Rank orders strategies by certainty: exact hash first.
func (s Strategy) Rank() int {
	switch s {
	case StrategyExactHash:
		return 0
	case StrategyExactString:
		return 1
	case StrategyPartial:
		return 2
	default:
		return 3
	}
}

// MatchResult is one candidate entity the engine considers a possible owner
// of the subject. It is computed on demand and never persisted.
type MatchResult struct {
	CandidateEntityID string   `json:"candidate_entity_id"`
	Strategy          Strategy `json:"strategy"`
	Algorithm         string   `json:"algorithm,omitempty"`
	Similarity        float64  `json:"similarity"`
	Confidence        float64  `json:"confidence"`
	Kind              Kind     `json:"kind"`
	SubjectField      string   `json:"subject_field,omitempty"`
	MatchedField      string   `json:"matched_field"`
	SubjectValue      string   `json:"subject_value"`
	CandidateValue    string   `json:"candidate_value"`
	Explanation       string   `json:"explanation"`
}

// Sides returns the (field, value) pairs of both ends of r in sorted order,
// so that a match read from either entity yields the same pair. Hash values
// compare case-insensitively.
func (r MatchResult) Sides() [2]string {
	sv, cv := r.SubjectValue, r.CandidateValue
	if r.Kind == KindHash {
		sv = strings.ToLower(strings.TrimSpace(sv))
		cv = strings.ToLower(strings.TrimSpace(cv))
	}
	a := r.SubjectField + "\x00" + sv
	b := r.MatchedField + "\x00" + cv
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}

// SuggestionStatus is the workflow state of a suggestion.
type SuggestionStatus string

// Suggestion states. Only a human decision moves a suggestion out of pending.
const (
	StatusPending   SuggestionStatus = "pending"
	StatusAccepted  SuggestionStatus = "accepted"
	StatusDismissed SuggestionStatus = "dismissed"
)

// Tier buckets suggestions by confidence.
type Tier string

// Confidence tiers.
const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Suggestion wraps a MatchResult with workflow state.
type Suggestion struct {
	ID            string           `json:"id"`
	SubjectID     string           `json:"subject_id"`
	Match         MatchResult      `json:"match"`
	Tier          Tier             `json:"tier"`
	Status        SuggestionStatus `json:"status"`
	DismissReason string           `json:"dismiss_reason,omitempty"`
	Fingerprint   string           `json:"fingerprint"`
}

// SuggestionSet groups the pending suggestions for one subject by tier.
type SuggestionSet struct {
	SubjectID  string       `json:"subject_id"`
	High       []Suggestion `json:"high"`
	Medium     []Suggestion `json:"medium"`
	Low        []Suggestion `json:"low"`
	TotalCount int          `json:"total_count"`
}

// Decision is the recorded human verdict on a subject/candidate pair. It
// applies only while the pair's content fingerprint is unchanged.
type Decision struct {
	SubjectID    string           `json:"subject_id"`
	CandidateID  string           `json:"candidate_id"`
	SuggestionID string           `json:"suggestion_id"`
	Status       SuggestionStatus `json:"status"`
	Reason       string           `json:"reason"`
	Fingerprint  string           `json:"fingerprint"`
	DecidedAt    time.Time        `json:"decided_at"`
}
