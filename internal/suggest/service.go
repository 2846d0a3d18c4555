// Package suggest turns matching engine output into reviewable suggestions.
// Suggestions are recomputed on every read and never stored; only the human
// verdict on a pair (accepted or dismissed) is persisted, bound to a content
// fingerprint so that edited data re-surfaces a dismissed pair.
package suggest

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/errs"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/link"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/match"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/similarity"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/store"
)

var tracer = otel.Tracer("github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/suggest")

// Accept actions.
const (
	ActionLink  = "link"
	ActionMerge = "merge"
)

// Merge survivors.
const (
	KeepSubject   = "subject"
	KeepCandidate = "candidate"
)

// AcceptRequest says how an accepted entity suggestion is applied.
type AcceptRequest struct {
	// Action is "link" (default) or "merge".
	Action string `json:"action"`
	// Keep picks the merge survivor: "subject" (default) or "candidate".
	Keep   string `json:"keep"`
	Reason string `json:"reason"`
}

// AcceptResult reports what accepting a suggestion did.
type AcceptResult struct {
	Suggestion model.Suggestion `json:"suggestion"`
	Link       *model.DataLink  `json:"link,omitempty"`
	Entity     *model.Entity    `json:"entity,omitempty"`
}

// Service computes suggestions and records decisions on them.
type Service struct {
	store   store.Store
	engine  *match.Engine
	linker  *link.Linker
	opts    match.Options
	timeout time.Duration
	now     func() time.Time
}

// NewService returns a Service. timeout bounds each matching run; zero means
// only the caller's context applies.
func NewService(st store.Store, engine *match.Engine, linker *link.Linker, opts match.Options, timeout time.Duration) *Service {
	return &Service{
		store:   st,
		engine:  engine,
		linker:  linker,
		opts:    opts,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// subject is what suggestions are computed for: an entity or an orphan.
type subject struct {
	id      string
	project string
	match   match.Subject
}

func (s *Service) entitySubject(ctx context.Context, entityID string) (subject, error) {
	e, err := s.store.GetEntity(ctx, entityID)
	if err != nil {
		return subject{}, err
	}
	return subject{id: e.ID, project: e.Project, match: match.ForEntity(e, s.engine.Policy())}, nil
}

func (s *Service) orphanSubject(ctx context.Context, orphanID string) (subject, error) {
	o, err := s.store.GetOrphan(ctx, orphanID)
	if err != nil {
		return subject{}, err
	}
	if o.Linked {
		return subject{}, errs.Validation("orphan", "%s is already linked to %s", o.ID, o.LinkedEntityID)
	}
	return subject{id: o.ID, project: o.Project, match: match.ForIdentifier(o.ID, o.Identifier)}, nil
}

// compute runs the engine for sub and returns every suggestion with its
// decision status applied, in engine rank order. The engine runs without a
// result limit so that decided pairs never crowd pending ones out; callers
// truncate. On a partial scan the suggestions found so far are returned with
// the error.
func (s *Service) compute(ctx context.Context, sub subject) ([]model.Suggestion, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	pool, err := s.store.ListEntities(ctx, sub.project, &store.Filter{ExcludeIDs: []string{sub.id}})
	if err != nil {
		return nil, err
	}
	decisions, err := s.store.ListDecisions(ctx, sub.id)
	if err != nil {
		return nil, err
	}
	// A verdict covers the pair whichever side it was made from; the newest
	// one wins.
	byPeer := make(map[string]model.Decision, len(decisions))
	for _, d := range decisions {
		peer := d.CandidateID
		if peer == sub.id {
			peer = d.SubjectID
		}
		byPeer[peer] = d
	}

	opts := s.opts
	opts.MaxResults = 0
	results, matchErr := s.engine.FindMatches(ctx, sub.match, pool, opts)
	if matchErr != nil && !errs.IsPartial(matchErr) {
		return nil, matchErr
	}

	out := make([]model.Suggestion, 0, len(results))
	for _, r := range results {
		tier, ok := similarity.TierFor(r.Confidence)
		if !ok {
			continue
		}
		sg := model.Suggestion{
			ID:          SuggestionID(sub.id, r.CandidateEntityID),
			SubjectID:   sub.id,
			Match:       r,
			Tier:        tier,
			Status:      model.StatusPending,
			Fingerprint: Fingerprint(sub.id, r),
		}
		// A verdict only holds while the matched values are unchanged.
		if d, ok := byPeer[r.CandidateEntityID]; ok && d.Fingerprint == sg.Fingerprint {
			sg.Status = d.Status
			if d.Status == model.StatusDismissed {
				sg.DismissReason = d.Reason
			}
		}
		out = append(out, sg)
	}
	return out, matchErr
}

// tiered groups the first limit pending suggestions by tier. limit <= 0
// keeps them all.
func tiered(subjectID string, all []model.Suggestion, limit int) *model.SuggestionSet {
	set := &model.SuggestionSet{
		SubjectID: subjectID,
		High:      []model.Suggestion{},
		Medium:    []model.Suggestion{},
		Low:       []model.Suggestion{},
	}
	for _, sg := range all {
		if sg.Status != model.StatusPending {
			continue
		}
		if limit > 0 && set.TotalCount >= limit {
			break
		}
		switch sg.Tier {
		case model.TierHigh:
			set.High = append(set.High, sg)
		case model.TierMedium:
			set.Medium = append(set.Medium, sg)
		default:
			set.Low = append(set.Low, sg)
		}
		set.TotalCount++
	}
	return set
}

// GetSuggestions returns the pending suggestions for an entity, grouped by
// confidence tier. It has no side effects and returns the same set for the
// same data. A cut-off scan returns the partial set with a
// PartialResultError.
func (s *Service) GetSuggestions(ctx context.Context, entityID string) (*model.SuggestionSet, error) {
	return s.suggestions(ctx, "suggest.GetSuggestions", entityID, s.entitySubject)
}

// GetOrphanSuggestions returns the pending entity suggestions for an orphan
// identifier.
func (s *Service) GetOrphanSuggestions(ctx context.Context, orphanID string) (*model.SuggestionSet, error) {
	return s.suggestions(ctx, "suggest.GetOrphanSuggestions", orphanID, s.orphanSubject)
}

func (s *Service) suggestions(ctx context.Context, op, id string, load func(context.Context, string) (subject, error)) (set *model.SuggestionSet, err error) {
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String("subject.id", id)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	sub, err := load(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "suggest: load subject")
	}
	all, err := s.compute(ctx, sub)
	if all == nil && err != nil {
		return nil, eris.Wrap(err, "suggest: compute")
	}
	set = tiered(sub.id, all, s.opts.MaxResults)
	span.SetAttributes(
		attribute.Int("suggestions.high", len(set.High)),
		attribute.Int("suggestions.medium", len(set.Medium)),
		attribute.Int("suggestions.low", len(set.Low)),
	)
	if err != nil {
		return set, eris.Wrap(err, "suggest: compute")
	}
	zap.L().Debug("suggest: computed",
		zap.String("subject_id", sub.id),
		zap.Int("total", set.TotalCount),
		zap.Int("computed", len(all)),
	)
	return set, nil
}

// find recomputes the subject's suggestions and returns the one with id.
// Decisions need a complete scan, so a partial result is an error here.
func (s *Service) find(ctx context.Context, sub subject, suggestionID string) (model.Suggestion, error) {
	all, err := s.compute(ctx, sub)
	if err != nil {
		return model.Suggestion{}, err
	}
	for _, sg := range all {
		if sg.ID == suggestionID {
			return sg, nil
		}
	}
	return model.Suggestion{}, errs.NotFound("suggestion", suggestionID)
}

func requireReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", errs.Validation("reason", "required")
	}
	return reason, nil
}

// Dismiss records that a human rejected an entity suggestion. The dismissal
// holds until the matched values change.
func (s *Service) Dismiss(ctx context.Context, entityID, suggestionID, reason string) (*model.Suggestion, error) {
	sub, err := s.entitySubject(ctx, entityID)
	if err != nil {
		return nil, eris.Wrap(err, "suggest: dismiss")
	}
	return s.dismiss(ctx, sub, suggestionID, reason)
}

// DismissOrphan records that a human rejected an orphan suggestion.
func (s *Service) DismissOrphan(ctx context.Context, orphanID, suggestionID, reason string) (*model.Suggestion, error) {
	sub, err := s.orphanSubject(ctx, orphanID)
	if err != nil {
		return nil, eris.Wrap(err, "suggest: dismiss orphan")
	}
	return s.dismiss(ctx, sub, suggestionID, reason)
}

func (s *Service) dismiss(ctx context.Context, sub subject, suggestionID, reason string) (*model.Suggestion, error) {
	reason, err := requireReason(reason)
	if err != nil {
		return nil, err
	}
	sg, err := s.find(ctx, sub, suggestionID)
	if err != nil {
		return nil, eris.Wrap(err, "suggest: dismiss")
	}
	if sg.Status == model.StatusAccepted {
		return nil, errs.Conflict("suggestion", suggestionID, "already accepted")
	}

	sg.Status = model.StatusDismissed
	sg.DismissReason = reason
	record := s.recordDecision(sg, reason, model.AuditDismiss)
	if err := s.store.RunInTx(ctx, func(tx store.Tx) error { return record(ctx, tx) }); err != nil {
		return nil, eris.Wrap(err, "suggest: dismiss")
	}
	zap.L().Info("suggest: dismissed",
		zap.String("subject_id", sub.id),
		zap.String("candidate_id", sg.Match.CandidateEntityID),
		zap.String("suggestion_id", sg.ID),
	)
	return &sg, nil
}

// recordDecision returns a hook that persists the decision on sg together
// with its audit entry. Accepting runs it inside the linking transaction so
// the action and the verdict commit together.
func (s *Service) recordDecision(sg model.Suggestion, reason, action string) link.TxHook {
	return func(ctx context.Context, tx store.Tx) error {
		if err := tx.SaveDecision(ctx, model.Decision{
			SubjectID:    sg.SubjectID,
			CandidateID:  sg.Match.CandidateEntityID,
			SuggestionID: sg.ID,
			Status:       sg.Status,
			Reason:       reason,
			Fingerprint:  sg.Fingerprint,
			DecidedAt:    s.now(),
		}); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, &model.AuditEntry{
			Action:    action,
			SubjectID: sg.SubjectID,
			ObjectID:  sg.Match.CandidateEntityID,
			Reason:    reason,
			Detail:    sg.Match.Explanation,
			CreatedAt: s.now(),
		})
	}
}

func (s *Service) pending(ctx context.Context, sub subject, suggestionID string) (model.Suggestion, error) {
	sg, err := s.find(ctx, sub, suggestionID)
	if err != nil {
		return sg, err
	}
	if sg.Status != model.StatusPending {
		return sg, errs.Conflict("suggestion", suggestionID, "already "+string(sg.Status))
	}
	return sg, nil
}

// Accept applies an entity suggestion through a linking action and marks it
// accepted. The decision commits in the action's transaction, so a failed
// action leaves the suggestion pending.
func (s *Service) Accept(ctx context.Context, entityID, suggestionID string, req AcceptRequest) (res *AcceptResult, err error) {
	ctx, span := tracer.Start(ctx, "suggest.Accept", trace.WithAttributes(
		attribute.String("subject.id", entityID),
		attribute.String("suggestion.id", suggestionID),
		attribute.String("action", req.Action),
	))
	defer span.End()

	reason, err := requireReason(req.Reason)
	if err != nil {
		return nil, err
	}
	action := strings.ToLower(strings.TrimSpace(req.Action))
	if action == "" {
		action = ActionLink
	}
	if action != ActionLink && action != ActionMerge {
		return nil, errs.Validation("action", "must be %q or %q, got %q", ActionLink, ActionMerge, req.Action)
	}

	sub, err := s.entitySubject(ctx, entityID)
	if err != nil {
		return nil, eris.Wrap(err, "suggest: accept")
	}
	sg, err := s.pending(ctx, sub, suggestionID)
	if err != nil {
		return nil, eris.Wrap(err, "suggest: accept")
	}
	candidateID := sg.Match.CandidateEntityID
	sg.Status = model.StatusAccepted
	record := s.recordDecision(sg, reason, model.AuditAccept)

	res = &AcceptResult{}
	switch action {
	case ActionLink:
		res.Link, err = s.linker.LinkDataItems(ctx,
			model.DataRef{Type: model.RefEntity, ID: sub.id, FieldPath: sg.Match.SubjectField},
			model.DataRef{Type: model.RefEntity, ID: candidateID, FieldPath: sg.Match.MatchedField},
			reason, record,
		)
	case ActionMerge:
		keepID := sub.id
		switch strings.ToLower(strings.TrimSpace(req.Keep)) {
		case "", KeepSubject:
		case KeepCandidate:
			keepID = candidateID
		default:
			return nil, errs.Validation("keep", "must be %q or %q, got %q", KeepSubject, KeepCandidate, req.Keep)
		}
		res.Entity, err = s.linker.MergeEntities(ctx, sub.id, candidateID, keepID, reason, record)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, eris.Wrap(err, "suggest: accept")
	}
	res.Suggestion = sg
	zap.L().Info("suggest: accepted",
		zap.String("subject_id", sub.id),
		zap.String("candidate_id", candidateID),
		zap.String("action", action),
	)
	return res, nil
}

// AcceptOrphan attaches the orphan to the suggested entity and marks the
// suggestion accepted.
func (s *Service) AcceptOrphan(ctx context.Context, orphanID, suggestionID, reason string) (*AcceptResult, error) {
	ctx, span := tracer.Start(ctx, "suggest.AcceptOrphan", trace.WithAttributes(
		attribute.String("subject.id", orphanID),
		attribute.String("suggestion.id", suggestionID),
	))
	defer span.End()

	reason, err := requireReason(reason)
	if err != nil {
		return nil, err
	}
	sub, err := s.orphanSubject(ctx, orphanID)
	if err != nil {
		return nil, eris.Wrap(err, "suggest: accept orphan")
	}
	sg, err := s.pending(ctx, sub, suggestionID)
	if err != nil {
		return nil, eris.Wrap(err, "suggest: accept orphan")
	}

	sg.Status = model.StatusAccepted
	e, err := s.linker.LinkOrphanToEntity(ctx, orphanID, sg.Match.CandidateEntityID, reason,
		s.recordDecision(sg, reason, model.AuditAccept))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, eris.Wrap(err, "suggest: accept orphan")
	}
	return &AcceptResult{Suggestion: sg, Entity: e}, nil
}
