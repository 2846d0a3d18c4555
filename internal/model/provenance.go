package model

import (
	"net/url"
	"strings"
	"time"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/errs"
)

// SourceType records how a piece of data entered the system.
type SourceType string

// Source types.
const (
	SourceHumanEntry SourceType = "human_entry"
	SourceWebsite    SourceType = "website"
	SourceImport     SourceType = "import"
	SourceAPI        SourceType = "api"
)

// Provenance answers "where did this come from" for an identifier, orphan or
// entity field value.
type Provenance struct {
	SourceType SourceType `json:"source_type"`
	SourceURL  string     `json:"source_url,omitempty"`
	CapturedAt time.Time  `json:"captured_at"`
	CapturedBy string     `json:"captured_by,omitempty"`
}

// Validate checks the source type and, for website captures, that the source
// URL and capture time are present.
func (p Provenance) Validate() error {
	switch p.SourceType {
	case SourceHumanEntry, SourceImport, SourceAPI:
	case SourceWebsite:
		if strings.TrimSpace(p.SourceURL) == "" {
			return errs.Validation("provenance.source_url", "required when source_type is website")
		}
		u, err := url.Parse(p.SourceURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errs.Validation("provenance.source_url", "must be an absolute URL, got %q", p.SourceURL)
		}
		if p.CapturedAt.IsZero() {
			return errs.Validation("provenance.captured_at", "required when source_type is website")
		}
	case "":
		return errs.Validation("provenance.source_type", "required")
	default:
		return errs.Validation("provenance.source_type", "unknown source type %q", p.SourceType)
	}
	return nil
}
