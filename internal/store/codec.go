package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/errs"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
)

const (
	entityColumns   = "id, project, entity_type, fields, provenance, version, created_at, updated_at"
	orphanColumns   = "id, project, kind, value, region, content, provenance, metadata, linked, linked_entity_id, linked_at, created_at"
	decisionColumns = "subject_id, candidate_id, suggestion_id, status, reason, fingerprint, decided_at"
	auditColumns    = "id, action, subject_id, object_id, reason, detail, created_at"
	linkColumns     = "id, item_a, item_b, reason, created_at"
	relColumns      = "id, from_id, to_id, rel_type, created_at"
)

type scannable interface {
	Scan(dest ...any) error
}

// placeholder renders the nth (1-based) bind parameter for a driver.
type placeholder func(n int) string

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

func question(int) string { return "?" }

// prepareEntity fills the id, type and timestamps of a new entity and resets
// its version.
func prepareEntity(e *model.Entity, now time.Time) error {
	if e == nil {
		return errs.Validation("entity", "is nil")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Type == "" {
		e.Type = model.EntityOther
	}
	if _, err := model.ParseEntityType(string(e.Type)); err != nil {
		return errs.Validation("entity_type", "unknown entity type %q", e.Type)
	}
	if e.Fields == nil {
		e.Fields = model.Fields{}
	}
	e.Version = 1
	e.CreatedAt = now
	e.UpdatedAt = now
	return nil
}

func prepareOrphan(o *model.OrphanData, now time.Time) error {
	if o == nil {
		return errs.Validation("orphan", "is nil")
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if strings.TrimSpace(o.Identifier.Value) == "" && len(o.Identifier.Content) == 0 {
		return errs.Validation("identifier.value", "required")
	}
	if _, err := model.ParseKind(string(o.Identifier.Kind)); err != nil {
		return errs.Validation("identifier.kind", "unknown kind %q", o.Identifier.Kind)
	}
	if err := o.Provenance.Validate(); err != nil {
		return err
	}
	o.Linked = false
	o.LinkedEntityID = ""
	o.LinkedAt = nil
	o.CreatedAt = now
	return nil
}

func encodeEntity(e *model.Entity) (fields, prov string, err error) {
	fb, err := json.Marshal(e.Fields)
	if err != nil {
		return "", "", eris.Wrap(err, "store: marshal fields")
	}
	pb, err := json.Marshal(e.Provenance)
	if err != nil {
		return "", "", eris.Wrap(err, "store: marshal provenance")
	}
	return string(fb), string(pb), nil
}

func scanEntity(row scannable) (*model.Entity, error) {
	var (
		e            model.Entity
		typ          string
		fields, prov []byte
	)
	if err := row.Scan(&e.ID, &e.Project, &typ, &fields, &prov, &e.Version, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Type = model.EntityType(typ)
	if err := json.Unmarshal(fields, &e.Fields); err != nil {
		return nil, eris.Wrapf(err, "store: unmarshal fields of %s", e.ID)
	}
	if e.Fields == nil {
		e.Fields = model.Fields{}
	}
	if len(prov) > 0 {
		if err := json.Unmarshal(prov, &e.Provenance); err != nil {
			return nil, eris.Wrapf(err, "store: unmarshal provenance of %s", e.ID)
		}
	}
	return &e, nil
}

func encodeOrphan(o *model.OrphanData) (prov, meta string, err error) {
	pb, err := json.Marshal(o.Provenance)
	if err != nil {
		return "", "", eris.Wrap(err, "store: marshal provenance")
	}
	mb, err := json.Marshal(o.Metadata)
	if err != nil {
		return "", "", eris.Wrap(err, "store: marshal metadata")
	}
	return string(pb), string(mb), nil
}

func scanOrphan(row scannable) (*model.OrphanData, error) {
	var (
		o          model.OrphanData
		kind       string
		prov, meta []byte
		linkedAt   sql.NullTime
	)
	err := row.Scan(&o.ID, &o.Project, &kind, &o.Identifier.Value, &o.Identifier.Region, &o.Identifier.Content,
		&prov, &meta, &o.Linked, &o.LinkedEntityID, &linkedAt, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.Identifier.Kind = model.Kind(kind)
	if len(o.Identifier.Content) == 0 {
		o.Identifier.Content = nil
	}
	if err := json.Unmarshal(prov, &o.Provenance); err != nil {
		return nil, eris.Wrapf(err, "store: unmarshal provenance of orphan %s", o.ID)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &o.Metadata); err != nil {
			return nil, eris.Wrapf(err, "store: unmarshal metadata of orphan %s", o.ID)
		}
	}
	if linkedAt.Valid {
		t := linkedAt.Time
		o.LinkedAt = &t
	}
	return &o, nil
}

func scanDecision(row scannable) (model.Decision, error) {
	var (
		d      model.Decision
		status string
	)
	err := row.Scan(&d.SubjectID, &d.CandidateID, &d.SuggestionID, &status, &d.Reason, &d.Fingerprint, &d.DecidedAt)
	d.Status = model.SuggestionStatus(status)
	return d, err
}

func scanAudit(row scannable) (model.AuditEntry, error) {
	var a model.AuditEntry
	err := row.Scan(&a.ID, &a.Action, &a.SubjectID, &a.ObjectID, &a.Reason, &a.Detail, &a.CreatedAt)
	return a, err
}

func scanLink(row scannable) (model.DataLink, error) {
	var (
		l    model.DataLink
		a, b string
	)
	if err := row.Scan(&l.ID, &a, &b, &l.Reason, &l.CreatedAt); err != nil {
		return l, err
	}
	var err error
	if l.ItemA, err = model.ParseDataRef(a); err != nil {
		return l, eris.Wrapf(err, "store: data link %s", l.ID)
	}
	if l.ItemB, err = model.ParseDataRef(b); err != nil {
		return l, eris.Wrapf(err, "store: data link %s", l.ID)
	}
	return l, nil
}

func scanRelationship(row scannable) (model.Relationship, error) {
	var r model.Relationship
	err := row.Scan(&r.ID, &r.FromID, &r.ToID, &r.Type, &r.CreatedAt)
	return r, err
}

// listEntitiesQuery builds the candidate listing query. Results are ordered
// by id so pools are deterministic.
func listEntitiesQuery(project string, f *Filter, ph placeholder) (string, []any) {
	var (
		sb   strings.Builder
		args = []any{project}
	)
	sb.WriteString("SELECT " + entityColumns + " FROM entities WHERE project = " + ph(1))
	if f != nil {
		if len(f.EntityTypes) > 0 {
			marks := make([]string, len(f.EntityTypes))
			for i, t := range f.EntityTypes {
				args = append(args, string(t))
				marks[i] = ph(len(args))
			}
			sb.WriteString(" AND entity_type IN (" + strings.Join(marks, ", ") + ")")
		}
		if len(f.ExcludeIDs) > 0 {
			marks := make([]string, len(f.ExcludeIDs))
			for i, id := range f.ExcludeIDs {
				args = append(args, id)
				marks[i] = ph(len(args))
			}
			sb.WriteString(" AND id NOT IN (" + strings.Join(marks, ", ") + ")")
		}
	}
	sb.WriteString(" ORDER BY id")
	if f != nil && f.Limit > 0 {
		args = append(args, f.Limit)
		sb.WriteString(" LIMIT " + ph(len(args)))
	}
	return sb.String(), args
}

func fieldOf(e *model.Entity, path string) (model.FieldValue, error) {
	v, ok := e.Field(path)
	if !ok {
		return model.FieldValue{}, errs.NotFound("field", e.ID+"#"+path)
	}
	return v, nil
}

func validateDecision(d model.Decision) error {
	if d.SubjectID == "" || d.CandidateID == "" {
		return errs.Validation("decision", "subject and candidate are required")
	}
	switch d.Status {
	case model.StatusAccepted, model.StatusDismissed, model.StatusPending:
	default:
		return errs.Validation("decision.status", "unknown status %q", d.Status)
	}
	return nil
}

func ensureLinkID(l *model.DataLink, now time.Time) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
}

func ensureAuditID(a *model.AuditEntry, now time.Time) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
}

func ensureRelID(r *model.Relationship, now time.Time) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
}
