// Package model defines the entity, identifier and suggestion types shared by
// the matching, suggestion and linking layers.
package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Kind is the declared type of an identifier. It selects the normalizer and
// the scorers applied to the value.
type Kind string

// Identifier kinds.
const (
	KindEmail         Kind = "email"
	KindPhone         Kind = "phone"
	KindAddress       Kind = "address"
	KindName          Kind = "name"
	KindHash          Kind = "hash"
	KindUsername      Kind = "username"
	KindCryptoAddress Kind = "crypto_address"
	KindOther         Kind = "other"
)

// AllKinds returns every identifier kind in declaration order.
func AllKinds() []Kind {
	return []Kind{
		KindEmail, KindPhone, KindAddress, KindName,
		KindHash, KindUsername, KindCryptoAddress, KindOther,
	}
}

// ParseKind parses a kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllKinds() {
		if k == known {
			return k, nil
		}
	}
	return "", eris.Errorf("model: unknown identifier kind %q", s)
}

// IsFuzzy reports whether values of this kind may be compared with fuzzy
// scorers (names, addresses and free text).
func (k Kind) IsFuzzy() bool {
	switch k {
	case KindName, KindAddress, KindOther:
		return true
	default:
		return false
	}
}

// Identifier is a typed raw value observed during an investigation. It is
// immutable once created; corrections supersede it with a new identifier.
type Identifier struct {
	Value string `json:"value"`
	Kind  Kind   `json:"kind"`

	// Content holds raw bytes for binary identifiers (files). When set on a
	// hash identifier the digest is computed from Content and Value is
	// treated as a label.
	Content []byte `json:"-"`

	// Region is an optional ISO 3166 region hint used for phone numbers.
	Region string `json:"region,omitempty"`
}

// NormalizedIdentifier is the derived, comparable view of an Identifier. It is
// recomputed on demand and never persisted as the source of truth.
type NormalizedIdentifier struct {
	Kind       Kind              `json:"kind"`
	Original   string            `json:"original"`
	Normalized string            `json:"normalized"`
	Components map[string]string `json:"components,omitempty"`
	Valid      bool              `json:"valid"`
}
