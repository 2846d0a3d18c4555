// Package link applies the human-approved actions that connect data: linking
// two data items, merging two entities and attaching an orphan identifier to
// an entity. Every action requires a reason, runs in one store transaction,
// writes an audit entry and holds a per-entity lock for its duration.
package link

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/config"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/errs"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/match"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/normalize"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/resilience"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/store"
)

var tracer = otel.Tracer("github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/link")

// Options tunes the Linker.
type Options struct {
	// MaxAttempts bounds how often an action is re-run after losing a
	// version race.
	MaxAttempts int
	// RemoveLinkedOrphans deletes an orphan once attached instead of marking
	// it linked.
	RemoveLinkedOrphans bool
	// LockTimeout bounds the wait for per-entity locks.
	LockTimeout time.Duration
}

// OptionsFromConfig builds Options from the link config section.
func OptionsFromConfig(cfg config.LinkConfig) Options {
	return Options{
		MaxAttempts:         cfg.MaxAttempts,
		RemoveLinkedOrphans: cfg.RemoveLinkedOrphans,
		LockTimeout:         time.Duration(cfg.LockTTLSecs) * time.Second,
	}
}

// Linker performs linking actions against a store.
type Linker struct {
	store  store.Store
	policy *match.Policy
	locker Locker
	opts   Options
	now    func() time.Time
}

// NewLinker returns a Linker. A nil policy means the default policy and a nil
// locker means an in-process LocalLocker.
func NewLinker(st store.Store, policy *match.Policy, locker Locker, opts Options) *Linker {
	if policy == nil {
		policy = match.DefaultPolicy()
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 30 * time.Second
	}
	return &Linker{
		store:  st,
		policy: policy,
		locker: locker,
		opts:   opts,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func requireReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", errs.Validation("reason", "required")
	}
	return reason, nil
}

// TxHook runs inside a linking action's transaction after the action's own
// writes. An error from a hook rolls the whole action back.
type TxHook func(ctx context.Context, tx store.Tx) error

// run executes fn and then hooks in a store transaction while holding locks
// on ids. A ConflictError from any attempt re-runs the whole sequence.
func (l *Linker) run(ctx context.Context, ids []string, hooks []TxHook, fn func(ctx context.Context, tx store.Tx) error) error {
	cfg := resilience.ConflictRetryConfig(l.opts.MaxAttempts)
	cfg.OnRetry = resilience.RetryLogger("link", "transaction")
	return resilience.Do(ctx, cfg, func(ctx context.Context) error {
		lockCtx, cancel := context.WithTimeout(ctx, l.opts.LockTimeout)
		unlock, err := l.locker.Lock(lockCtx, ids...)
		cancel()
		if err != nil {
			if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
				return errs.Conflict("entity", strings.Join(ids, ","), "locked by another operation")
			}
			return err
		}
		defer unlock()
		return l.store.RunInTx(ctx, func(tx store.Tx) error {
			if err := fn(ctx, tx); err != nil {
				return err
			}
			for _, h := range hooks {
				if err := h(ctx, tx); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// LinkDataItems records a bidirectional association between two data items
// without changing ownership of either.
func (l *Linker) LinkDataItems(ctx context.Context, a, b model.DataRef, reason string, hooks ...TxHook) (link *model.DataLink, err error) {
	ctx, span := tracer.Start(ctx, "link.LinkDataItems", trace.WithAttributes(
		attribute.String("item_a", a.String()),
		attribute.String("item_b", b.String()),
	))
	defer func() { endSpan(span, err) }()

	reason, err = requireReason(reason)
	if err != nil {
		return nil, err
	}
	if a.String() == b.String() {
		return nil, errs.Validation("b", "cannot link %s to itself", a)
	}

	err = l.run(ctx, []string{a.ID, b.ID}, hooks, func(ctx context.Context, tx store.Tx) error {
		for _, ref := range []model.DataRef{a, b} {
			if err := checkRef(ctx, tx, ref); err != nil {
				return err
			}
		}
		link = &model.DataLink{ItemA: a, ItemB: b, Reason: reason, CreatedAt: l.now()}
		if err := tx.CreateDataLink(ctx, link); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, &model.AuditEntry{
			Action:    model.AuditLinkItems,
			SubjectID: a.ID,
			ObjectID:  b.ID,
			Reason:    reason,
			Detail:    a.String() + " <-> " + b.String(),
			CreatedAt: l.now(),
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "link: link data items")
	}
	zap.L().Info("link: data items linked",
		zap.String("link_id", link.ID),
		zap.String("item_a", a.String()),
		zap.String("item_b", b.String()),
	)
	return link, nil
}

func checkRef(ctx context.Context, tx store.Tx, ref model.DataRef) error {
	switch ref.Type {
	case model.RefEntity:
		e, err := tx.GetEntityForUpdate(ctx, ref.ID)
		if err != nil {
			return err
		}
		if ref.FieldPath != "" {
			if _, ok := e.Field(ref.FieldPath); !ok {
				return errs.NotFound("field", ref.ID+"#"+ref.FieldPath)
			}
		}
		return nil
	case model.RefOrphan:
		_, err := tx.GetOrphanForUpdate(ctx, ref.ID)
		return err
	default:
		return errs.Validation("ref.type", "unknown data ref type %q", ref.Type)
	}
}

// MergeEntities folds one entity into the other. keepID names the survivor
// and must be aID or bID. The discarded entity's relationships are re-pointed
// to the survivor and its id is retired for good.
func (l *Linker) MergeEntities(ctx context.Context, aID, bID, keepID, reason string, hooks ...TxHook) (merged *model.Entity, err error) {
	ctx, span := tracer.Start(ctx, "link.MergeEntities", trace.WithAttributes(
		attribute.String("entity_a", aID),
		attribute.String("entity_b", bID),
		attribute.String("keep", keepID),
	))
	defer func() { endSpan(span, err) }()

	reason, err = requireReason(reason)
	if err != nil {
		return nil, err
	}
	if aID == bID {
		return nil, errs.Validation("b", "cannot merge entity %s into itself", aID)
	}
	var discardID string
	switch keepID {
	case aID:
		discardID = bID
	case bID:
		discardID = aID
	default:
		return nil, errs.Validation("keep", "must be %s or %s, got %q", aID, bID, keepID)
	}

	var repointed int64
	err = l.run(ctx, []string{aID, bID}, hooks, func(ctx context.Context, tx store.Tx) error {
		keep, err := tx.GetEntityForUpdate(ctx, keepID)
		if err != nil {
			return err
		}
		discard, err := tx.GetEntityForUpdate(ctx, discardID)
		if err != nil {
			return err
		}
		if keep.Project != discard.Project {
			return errs.Validation("b", "entities belong to different projects (%q, %q)", keep.Project, discard.Project)
		}

		keep.Fields = MergeFields(keep.Fields, discard.Fields)
		keep.Provenance = MergeProvenance(keep.Provenance, discard.Provenance)
		keep.UpdatedAt = l.now()
		if err := tx.UpdateEntity(ctx, keep); err != nil {
			return err
		}
		if repointed, err = tx.RepointRelationships(ctx, discardID, keepID); err != nil {
			return err
		}
		if err := tx.RetireEntity(ctx, discardID, keepID); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, &model.AuditEntry{
			Action:    model.AuditMerge,
			SubjectID: keepID,
			ObjectID:  discardID,
			Reason:    reason,
			Detail:    fmt.Sprintf("retired %s; %d relationships re-pointed", discardID, repointed),
			CreatedAt: l.now(),
		}); err != nil {
			return err
		}
		merged = keep
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "link: merge entities")
	}
	zap.L().Info("link: entities merged",
		zap.String("kept", keepID),
		zap.String("retired", discardID),
		zap.Int64("relationships", repointed),
		zap.Int64("version", merged.Version),
	)
	return merged, nil
}

// LinkOrphanToEntity attaches an orphan identifier to an entity. The value is
// appended to the entity field the policy declares for the orphan's kind, the
// orphan's provenance is carried onto that field, and the orphan is marked
// linked (or deleted when RemoveLinkedOrphans is set).
func (l *Linker) LinkOrphanToEntity(ctx context.Context, orphanID, entityID, reason string, hooks ...TxHook) (entity *model.Entity, err error) {
	ctx, span := tracer.Start(ctx, "link.LinkOrphanToEntity", trace.WithAttributes(
		attribute.String("orphan_id", orphanID),
		attribute.String("entity_id", entityID),
	))
	defer func() { endSpan(span, err) }()

	reason, err = requireReason(reason)
	if err != nil {
		return nil, err
	}

	var path string
	err = l.run(ctx, []string{orphanID, entityID}, hooks, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.GetOrphanForUpdate(ctx, orphanID)
		if err != nil {
			return err
		}
		if o.Linked {
			return errs.Validation("orphan", "%s is already linked to %s", o.ID, o.LinkedEntityID)
		}
		e, err := tx.GetEntityForUpdate(ctx, entityID)
		if err != nil {
			return err
		}
		if o.Project != e.Project {
			return errs.Validation("entity_id", "orphan and entity belong to different projects (%q, %q)", o.Project, e.Project)
		}

		path, err = l.targetField(e, o.Identifier.Kind)
		if err != nil {
			return err
		}
		if e.Fields == nil {
			e.Fields = model.Fields{}
		}
		if err := e.Fields.Append(path, model.Scalar(orphanValue(o.Identifier))); err != nil {
			return errs.Validation("field", "%s: %v", path, err)
		}
		e.AddProvenance(path, o.Provenance)
		e.UpdatedAt = l.now()
		if err := tx.UpdateEntity(ctx, e); err != nil {
			return err
		}

		if l.opts.RemoveLinkedOrphans {
			err = tx.DeleteOrphan(ctx, o.ID)
		} else {
			err = tx.MarkOrphanLinked(ctx, o.ID, e.ID, l.now())
		}
		if err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, &model.AuditEntry{
			Action:    model.AuditLinkOrphan,
			SubjectID: e.ID,
			ObjectID:  o.ID,
			Reason:    reason,
			Detail:    fmt.Sprintf("%s value appended to %s", o.Identifier.Kind, path),
			CreatedAt: l.now(),
		}); err != nil {
			return err
		}
		entity = e
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "link: link orphan to entity")
	}
	zap.L().Info("link: orphan linked",
		zap.String("orphan_id", orphanID),
		zap.String("entity_id", entityID),
		zap.String("field", path),
		zap.Bool("removed", l.opts.RemoveLinkedOrphans),
	)
	return entity, nil
}

// targetField picks the entity field that receives an identifier of kind.
// Among the policy fields of that kind, one the entity already populates
// wins; otherwise the first declared.
func (l *Linker) targetField(e *model.Entity, kind model.Kind) (string, error) {
	fields := l.policy.FieldsOfKind(e.Type, kind)
	if len(fields) == 0 {
		return "", errs.Validation("entity_id", "entity type %s has no %s field", e.Type, kind)
	}
	for _, f := range fields {
		if _, ok := e.Field(f.Path); ok {
			return f.Path, nil
		}
	}
	return fields[0].Path, nil
}

// orphanValue is the text stored on the entity: the content digest for
// binary hash identifiers, the raw value otherwise.
func orphanValue(id model.Identifier) string {
	if id.Kind == model.KindHash && len(id.Content) > 0 {
		return normalize.HashContent(id.Value, id.Content).Normalized
	}
	return id.Value
}
