// Package match finds which existing entities a subject identifier or entity
// might belong to. Exact hash, exact string and fuzzy strategies run against
// every candidate; each candidate keeps its single best result and the
// output is ranked by confidence, then candidate id.
package match

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/errs"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/normalize"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/similarity"
)

var tracer = otel.Tracer("github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/match")

// Engine scores subjects against candidate pools. It holds no per-call
// state and never writes to the store.
type Engine struct {
	policy *Policy
}

// NewEngine returns an engine using policy, or the default policy when nil.
func NewEngine(policy *Policy) *Engine {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Engine{policy: policy}
}

// Policy returns the engine's field policy.
func (e *Engine) Policy() *Policy {
	return e.policy
}

// FindMatches scores subject against every entity in pool and returns at most
// opts.MaxResults results, one per candidate, ordered by confidence
// descending then candidate id ascending.
//
// Candidates are scored concurrently by at most opts.Workers goroutines;
// results are sorted only after every worker has finished. If ctx is
// cancelled before the pool is fully scanned, the results collected so far
// are returned together with a PartialResultError.
func (e *Engine) FindMatches(ctx context.Context, subject Subject, pool []*model.Entity, opts Options) ([]model.MatchResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, eris.Wrap(err, "match: options")
	}

	ctx, span := tracer.Start(ctx, "match.FindMatches", trace.WithAttributes(
		attribute.String("subject.id", subject.ID),
		attribute.Int("subject.values", len(subject.Values)),
		attribute.Int("candidates", len(pool)),
	))
	defer span.End()

	log := zap.L().With(zap.String("subject_id", subject.ID), zap.Int("candidates", len(pool)))

	results := []model.MatchResult{}
	if len(pool) == 0 || len(subject.Values) == 0 {
		return results, nil
	}

	cache := opts.Cache
	if cache == nil {
		cache = normalize.NewCache()
	}
	s := &session{
		policy:    e.policy,
		opts:      opts,
		cache:     cache,
		subject:   subject,
		threshold: opts.threshold(),
	}

	slots := make([]*model.MatchResult, len(pool))
	var scanned atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i, cand := range pool {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			best, done := s.scoreCandidate(gctx, cand)
			if !done {
				return gctx.Err()
			}
			slots[i] = best
			scanned.Add(1)
			return nil
		})
	}
	waitErr := g.Wait()

	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	Rank(results)
	if opts.MaxResults > 0 && len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	for strategy, n := range countStrategies(results) {
		span.SetAttributes(attribute.Int("results."+string(strategy), n))
	}

	n := int(scanned.Load())
	if n < len(pool) {
		cause := ctx.Err()
		if cause == nil {
			cause = waitErr
		}
		if cause == nil {
			cause = context.Canceled
		}
		err := errs.Partial(n, len(pool), cause)
		span.RecordError(err)
		span.SetStatus(codes.Error, "partial result")
		log.Warn("match: scan cut off", zap.Int("scanned", n), zap.Int("results", len(results)), zap.Error(cause))
		return results, eris.Wrap(err, "match: find matches")
	}

	hits, misses := cache.Stats()
	log.Debug("match: complete",
		zap.Int("results", len(results)),
		zap.Int("cache_hits", hits),
		zap.Int("cache_misses", misses),
	)
	return results, nil
}

// Rank orders results by confidence descending, then candidate id ascending.
func Rank(results []model.MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].CandidateEntityID < results[j].CandidateEntityID
	})
}

func countStrategies(results []model.MatchResult) map[model.Strategy]int {
	out := make(map[model.Strategy]int)
	for _, r := range results {
		out[r.Strategy]++
	}
	return out
}

// session is the state of one FindMatches call.
type session struct {
	policy    *Policy
	opts      Options
	cache     *normalize.Cache
	subject   Subject
	threshold float64

	// high counts candidates whose best result reached 0.9, for early exit.
	high atomic.Int64
}

func (s *session) skipFallback() bool {
	return s.opts.EarlyExit && s.opts.MaxResults > 0 && s.high.Load() >= int64(s.opts.MaxResults)
}

// scoreCandidate returns the candidate's best result, or nil when nothing
// matched. done is false when ctx was cancelled mid-candidate.
func (s *session) scoreCandidate(ctx context.Context, cand *model.Entity) (best *model.MatchResult, done bool) {
	if cand == nil || cand.ID == s.subject.ID {
		return nil, true
	}

	matched := 0
	for _, fs := range s.policy.FieldsFor(cand.Type) {
		if ctx.Err() != nil {
			return nil, false
		}
		fv, ok := cand.Field(fs.Path)
		if !ok {
			// Heterogeneous entities: a missing field is no match, not an error.
			continue
		}
		leaves := fv.Leaves()
		for _, sv := range s.subject.Values {
			if sv.Identifier.Kind != fs.Kind {
				continue
			}
			subj := s.normalizeSubject(sv, fs)
			if !subj.Valid {
				continue
			}
			for _, leaf := range leaves {
				cn := s.cache.Value(fs.Kind, leaf, fs.Region)
				r, ok := s.compare(sv, subj, fs, leaf, cn)
				if !ok {
					continue
				}
				r.CandidateEntityID = cand.ID
				matched++
				if best == nil || better(r, *best) {
					best = &r
				}
			}
		}
	}

	if best == nil {
		return nil, true
	}
	if matched > 1 {
		best.Explanation += fmt.Sprintf(" (%d matching values)", matched)
	}
	if best.Confidence >= similarity.HighTier {
		s.high.Add(1)
	}
	zap.L().Debug("match: candidate matched",
		zap.String("subject_id", s.subject.ID),
		zap.String("candidate_id", cand.ID),
		zap.String("strategy", string(best.Strategy)),
		zap.Float64("confidence", best.Confidence),
	)
	return best, true
}

func (s *session) normalizeSubject(sv SubjectValue, fs FieldSpec) model.NormalizedIdentifier {
	id := sv.Identifier
	if id.Region == "" {
		id.Region = fs.Region
	}
	return s.cache.Identifier(id)
}

// compare runs the strategies in order for one subject/candidate value pair
// and returns the first that matches. Exact matches outrank any fuzzy score,
// so the fuzzy pass only runs when the exact passes fail.
func (s *session) compare(sv SubjectValue, subj model.NormalizedIdentifier, fs FieldSpec, leaf string, cand model.NormalizedIdentifier) (model.MatchResult, bool) {
	if !cand.Valid {
		return model.MatchResult{}, false
	}
	subjectValue := sv.Identifier.Value
	if fs.Kind == model.KindHash {
		subjectValue = subj.Normalized
	}
	r := model.MatchResult{
		Kind:           fs.Kind,
		SubjectField:   sv.Field,
		MatchedField:   fs.Path,
		SubjectValue:   subjectValue,
		CandidateValue: leaf,
	}

	if fs.Kind == model.KindHash {
		if similarity.Score(similarity.ExactHash, subj, cand) < 1 {
			return model.MatchResult{}, false
		}
		r.Strategy = model.StrategyExactHash
		r.Algorithm = string(similarity.ExactHash)
		r.Similarity = 1
		r.Confidence = similarity.ExactHashConfidence
		r.Explanation = fmt.Sprintf("sha256 digest %s equals %s", shortDigest(subj.Normalized), fs.Path)
		return r, true
	}

	if similarity.Score(similarity.ExactString, subj, cand) == 1 {
		r.Strategy = model.StrategyExactString
		r.Algorithm = string(similarity.ExactString)
		r.Similarity = 1
		r.Confidence = similarity.ExactStringConfidence
		r.Explanation = fmt.Sprintf("normalized %s %q equals %s", fs.Kind, subj.Normalized, fs.Path)
		return r, true
	}

	if !s.opts.IncludePartial || !fs.Kind.IsFuzzy() {
		return model.MatchResult{}, false
	}
	alg := s.policy.AlgorithmFor(fs)
	if alg == similarity.Levenshtein && s.skipFallback() {
		return model.MatchResult{}, false
	}
	sim := similarity.Score(alg, subj, cand)
	if sim < s.threshold {
		return model.MatchResult{}, false
	}
	conf, ok := similarity.FuzzyConfidence(sim)
	if !ok {
		return model.MatchResult{}, false
	}
	r.Strategy = model.StrategyPartial
	r.Algorithm = string(alg)
	r.Similarity = sim
	r.Confidence = conf
	r.Explanation = fmt.Sprintf("%s similarity %.3f between %q and %s %q", alg, sim, subj.Normalized, fs.Path, cand.Normalized)
	return r, true
}

// better reports whether a should replace b as a candidate's best result.
// Ties fall through to stable, value-based keys so the choice never depends
// on scan order. The sorted sides come first so that both entities of a pair
// pick the same field pair.
func better(a, b model.MatchResult) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.Strategy.Rank() != b.Strategy.Rank() {
		return a.Strategy.Rank() < b.Strategy.Rank()
	}
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	if as, bs := a.Sides(), b.Sides(); as != bs {
		if as[0] != bs[0] {
			return as[0] < bs[0]
		}
		return as[1] < bs[1]
	}
	if a.MatchedField != b.MatchedField {
		return a.MatchedField < b.MatchedField
	}
	if a.SubjectField != b.SubjectField {
		return a.SubjectField < b.SubjectField
	}
	if a.CandidateValue != b.CandidateValue {
		return a.CandidateValue < b.CandidateValue
	}
	return a.SubjectValue < b.SubjectValue
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12] + "..."
	}
	return d
}
