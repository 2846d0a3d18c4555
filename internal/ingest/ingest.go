// Package ingest brings new data into the store: orphan identifiers with
// their provenance, gated by an optional verifier, and bulk entity imports.
package ingest

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/errs"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/store"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/verify"
)

// Metadata keys written by the verification gate.
const (
	MetaVerified        = "verified"
	MetaPlausible       = "verify.plausible"
	MetaChecksumValid   = "verify.checksum_valid"
	MetaExistsOnNetwork = "verify.exists_on_network"
	MetaVerifyDetail    = "verify.detail"
)

// OrphanInput is a captured identifier awaiting ingestion.
type OrphanInput struct {
	Project    string            `json:"project"`
	Identifier model.Identifier  `json:"identifier"`
	Provenance model.Provenance  `json:"provenance"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Service ingests data into a store.
type Service struct {
	store            store.Store
	verifier         verify.Verifier
	requirePlausible bool
	batchSize        int
}

// NewService returns a Service. verifier may be nil to skip verification;
// with requirePlausible an implausible verdict rejects the identifier.
func NewService(st store.Store, verifier verify.Verifier, requirePlausible bool) *Service {
	return &Service{
		store:            st,
		verifier:         verifier,
		requirePlausible: requirePlausible,
		batchSize:        1000,
	}
}

// CreateOrphan validates provenance, runs the verification gate and stores
// the identifier as an unlinked orphan.
func (s *Service) CreateOrphan(ctx context.Context, in OrphanInput) (*model.OrphanData, error) {
	kind, err := model.ParseKind(string(in.Identifier.Kind))
	if err != nil {
		return nil, errs.Validation("identifier.kind", "unknown kind %q", in.Identifier.Kind)
	}
	in.Identifier.Kind = kind
	if strings.TrimSpace(in.Identifier.Value) == "" && len(in.Identifier.Content) == 0 {
		return nil, errs.Validation("identifier.value", "required")
	}
	if err := in.Provenance.Validate(); err != nil {
		return nil, err
	}

	meta := make(map[string]string, len(in.Metadata)+4)
	for k, v := range in.Metadata {
		meta[k] = v
	}
	if err := s.gate(ctx, in.Identifier, meta); err != nil {
		return nil, err
	}

	o := &model.OrphanData{
		Project:    in.Project,
		Identifier: in.Identifier,
		Provenance: in.Provenance,
		Metadata:   meta,
	}
	if err := s.store.CreateOrphan(ctx, o); err != nil {
		return nil, eris.Wrap(err, "ingest: create orphan")
	}
	zap.L().Info("ingest: orphan created",
		zap.String("orphan_id", o.ID),
		zap.String("project", o.Project),
		zap.String("kind", string(kind)),
		zap.String("source_type", string(o.Provenance.SourceType)),
	)
	return o, nil
}

// gate asks the verifier about id and records the verdict in meta. A
// verifier failure is logged and does not block ingestion.
func (s *Service) gate(ctx context.Context, id model.Identifier, meta map[string]string) error {
	if s.verifier == nil || len(id.Content) > 0 {
		return nil
	}
	res, err := s.verifier.Verify(ctx, id.Kind, id.Value)
	if err != nil {
		if ctx.Err() != nil {
			return eris.Wrap(err, "ingest: verify")
		}
		zap.L().Warn("ingest: verification unavailable, accepting unverified",
			zap.String("kind", string(id.Kind)),
			zap.Error(err),
		)
		meta[MetaVerified] = "false"
		return nil
	}

	meta[MetaVerified] = "true"
	meta[MetaPlausible] = strconv.FormatBool(res.Plausible)
	if res.ChecksumValid != nil {
		meta[MetaChecksumValid] = strconv.FormatBool(*res.ChecksumValid)
	}
	if res.ExistsOnNetwork != nil {
		meta[MetaExistsOnNetwork] = strconv.FormatBool(*res.ExistsOnNetwork)
	}
	if res.Detail != "" {
		meta[MetaVerifyDetail] = res.Detail
	}
	if s.requirePlausible && !res.Plausible {
		detail := res.Detail
		if detail == "" {
			detail = "rejected by verifier"
		}
		return errs.Validation("identifier.value", "implausible %s: %s", id.Kind, detail)
	}
	return nil
}

// ImportEntities streams entities from JSON lines in r and writes them in
// batches. With replace, existing ids are overwritten; otherwise a duplicate
// id fails its batch. Returns the number of entities written.
func (s *Service) ImportEntities(ctx context.Context, r io.Reader, project string, replace bool) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entities, errc := DecodeJSONLines[model.Entity](ctx, r)

	var total int64
	batch := make([]*model.Entity, 0, s.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.store.ImportEntities(ctx, batch, replace)
		if err != nil {
			return eris.Wrapf(err, "ingest: import batch ending at record %d", total+int64(len(batch)))
		}
		total += n
		zap.L().Debug("ingest: batch imported", zap.Int64("rows", n), zap.Int64("total", total))
		batch = batch[:0]
		return nil
	}

	for e := range entities {
		if e.Project == "" {
			e.Project = project
		}
		batch = append(batch, &e)
		if len(batch) >= s.batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := <-errc; err != nil {
		return total, errs.Validation("input", "%v", err)
	}
	if err := flush(); err != nil {
		return total, err
	}
	zap.L().Info("ingest: entities imported", zap.Int64("count", total), zap.Bool("replace", replace))
	return total, nil
}
