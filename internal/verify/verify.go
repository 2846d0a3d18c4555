// Package verify checks whether an identifier is plausible before it is
// ingested. FormatVerifier runs locally; HTTPVerifier asks an external
// service and is rate limited, retried and guarded by a circuit breaker.
package verify

import (
	"bytes"
	"context"
	"crypto/sha256"

	"github.com/mr-tron/base58"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/config"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/normalize"
)

// Result is a verifier's verdict. Nil pointers mean the check does not apply
// or could not be made.
type Result struct {
	Plausible       bool   `json:"plausible"`
	ChecksumValid   *bool  `json:"checksum_valid,omitempty"`
	ExistsOnNetwork *bool  `json:"exists_on_network,omitempty"`
	Detail          string `json:"detail,omitempty"`
}

// Verifier checks one identifier value.
type Verifier interface {
	Verify(ctx context.Context, kind model.Kind, value string) (Result, error)
}

// New returns the verifier configured by cfg, or nil when verification is
// disabled. Without a service URL only the local format check runs.
func New(cfg config.VerifyConfig) (Verifier, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.URL == "" {
		return FormatVerifier{}, nil
	}
	return NewHTTPVerifier(cfg)
}

// FormatVerifier judges plausibility from the normalizer alone and validates
// base58check checksums on Bitcoin addresses. It never reaches the network.
type FormatVerifier struct{}

func (FormatVerifier) Verify(_ context.Context, kind model.Kind, value string) (Result, error) {
	n := normalize.Value(kind, value, "")
	res := Result{Plausible: n.Valid}
	if !n.Valid {
		res.Detail = "malformed " + string(kind)
		return res, nil
	}
	if kind == model.KindCryptoAddress && n.Components["format"] == "base58" {
		ok := Base58CheckValid(n.Normalized)
		res.ChecksumValid = &ok
		if !ok {
			res.Plausible = false
			res.Detail = "base58check checksum mismatch"
		}
	}
	return res, nil
}

// Base58CheckValid reports whether s decodes to a version byte, payload and a
// four byte checksum equal to the first four bytes of the payload's double
// SHA-256.
func Base58CheckValid(s string) bool {
	raw, err := base58.Decode(s)
	if err != nil || len(raw) < 5 {
		return false
	}
	body, sum := raw[:len(raw)-4], raw[len(raw)-4:]
	first := sha256.Sum256(body)
	second := sha256.Sum256(first[:])
	return bytes.Equal(second[:4], sum)
}
