package detect

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"patchwatch/internal/logging"
	"patchwatch/internal/scorer"
	"patchwatch/internal/titles"
	"patchwatch/internal/tracked"
)

// Method records how a verdict was reached.
type Method string

const (
	// MethodRegexOnly means lexical scoring alone decided.
	MethodRegexOnly Method = "regex_only"
	// MethodAIEnhanced means the AI assessment was blended into the score.
	MethodAIEnhanced Method = "ai_enhanced"
	// MethodAIPrimary means the AI assessment alone carried a marginal match.
	MethodAIPrimary Method = "ai_primary"
)

// Outcome is the action the sweep should take for an entity.
type Outcome string

const (
	OutcomeNoUpdate      Outcome = "no-update"
	OutcomeAutoApprove   Outcome = "auto-approve"
	OutcomeNeedsApproval Outcome = "needs-approval"
)

const (
	exactMatchBar = 0.95
	aiBandFloor   = 0.8
	aiPrimaryBar  = 0.9
	tieEpsilon    = 0.01
	similarityCap = 1.0
)

// Policy holds the decision tunables. Thresholds are operational defaults,
// not correctness constants.
type Policy struct {
	AutoApproveThreshold float64
	CandidateFloor       float64
	SimilarityWeight     float64
	AIWeight             float64
}

// DefaultPolicy returns the stock tunables.
func DefaultPolicy() Policy {
	return Policy{
		AutoApproveThreshold: 0.8,
		CandidateFloor:       0.6,
		SimilarityWeight:     0.7,
		AIWeight:             0.3,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.AutoApproveThreshold <= 0 {
		p.AutoApproveThreshold = def.AutoApproveThreshold
	}
	p.AutoApproveThreshold = math.Min(math.Max(p.AutoApproveThreshold, 0.5), 1.0)
	if p.CandidateFloor <= 0 {
		p.CandidateFloor = def.CandidateFloor
	}
	if p.SimilarityWeight <= 0 && p.AIWeight <= 0 {
		p.SimilarityWeight = def.SimilarityWeight
		p.AIWeight = def.AIWeight
	}
	return p
}

// Verification is an optional external-adapter snapshot attached by the sweep
// when an identity source confirms or contradicts the verdict.
type Verification struct {
	Adapter       string
	CanonicalID   string
	LatestVersion *titles.Version
	CheckedAt     time.Time
}

// Result is the verdict for one entity against one sweep's candidate pool.
type Result struct {
	Outcome    Outcome
	IsUpdate   bool
	Confidence float64
	Reason     string
	Method     Method

	Candidate    *tracked.Listing
	Version      *titles.Version
	NewVersion   string
	Verification *Verification
}

// Engine ranks candidates and decides. The scorer is optional; a nil or
// failing scorer degrades to lexical scoring without surfacing an error.
type Engine struct {
	scorer scorer.Scorer
	logger *slog.Logger
}

// NewEngine builds a decision engine. Pass scorer.Noop{} to disable the AI
// assessment entirely.
func NewEngine(sc scorer.Scorer, logger *slog.Logger) *Engine {
	if sc == nil {
		sc = scorer.Noop{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{scorer: sc, logger: logger}
}

type scored struct {
	listing    tracked.Listing
	similarity float64
	score      float64
	version    *titles.Version
	method     Method
	aiReason   string
}

// Decide scores every candidate against the entity and returns the single
// verdict to act on. It never mutates the entity.
func (e *Engine) Decide(ctx context.Context, entity tracked.Entity, candidates []tracked.Listing, policy Policy) Result {
	policy = policy.withDefaults()
	log := e.logger.With(logging.String(logging.FieldComponent, "detect"), logging.Int64(logging.FieldEntityID, entity.ID))

	pool := e.scorePool(entity, candidates, policy)
	if len(pool) == 0 {
		return Result{Outcome: OutcomeNoUpdate, Method: MethodRegexOnly, Reason: "no candidate cleared the similarity floor"}
	}

	current := titles.ParseVersion(entity.CurrentVersion)
	if exact := pickExactBump(pool, current); exact != nil {
		log.Debug("exact match with version bump",
			logging.String("candidate", exact.listing.Title),
			logging.String("version", exact.version.Raw))
		return Result{
			Outcome:    OutcomeAutoApprove,
			IsUpdate:   true,
			Confidence: exact.similarity,
			Reason:     fmt.Sprintf("near-exact title match with version bump to %s", exact.version.Raw),
			Method:     MethodRegexOnly,
			Candidate:  &exact.listing,
			Version:    exact.version,
			NewVersion: exact.version.Raw,
		}
	}

	e.blendAssessments(ctx, entity, pool, policy, log)

	best := pickBest(pool)
	if best.score < policy.CandidateFloor {
		return Result{Outcome: OutcomeNoUpdate, Method: best.method, Confidence: best.score,
			Reason: "best candidate scored below the similarity floor"}
	}

	result := Result{
		IsUpdate:   true,
		Confidence: math.Min(best.score, similarityCap),
		Method:     best.method,
		Candidate:  &best.listing,
		Version:    best.version,
	}
	if best.version != nil {
		result.NewVersion = best.version.Raw
	}

	related := titles.AreRelatedButDistinct(entity.Title, best.listing.Title)
	switch {
	case related:
		result.Outcome = OutcomeNeedsApproval
		result.Reason = "titles look related but distinct; needs identity confirmation"
	case best.version != nil && current != nil && !best.version.GreaterThan(*current) && best.version.Kind == current.Kind:
		// The candidate is the entity at its current (or an older) version.
		// Committing it would rotate the history without moving forward.
		result.Outcome = OutcomeNoUpdate
		result.Reason = fmt.Sprintf("candidate version %s is not newer than %s", best.version.Raw, entity.CurrentVersion)
	case best.method == MethodRegexOnly && best.version == nil && best.similarity < exactMatchBar:
		// A mid-band lexical match with no version evidence and no AI
		// confirmation is not enough to commit on its own.
		result.Outcome = OutcomeNeedsApproval
		result.Reason = "no version evidence for an inexact title match"
	case best.score >= policy.AutoApproveThreshold:
		result.Outcome = OutcomeAutoApprove
		result.Reason = bestReason(best, "score cleared the auto-approval threshold")
	default:
		result.Outcome = OutcomeNeedsApproval
		result.Reason = bestReason(best, "score below the auto-approval threshold")
	}
	if result.Outcome != OutcomeAutoApprove {
		result.IsUpdate = false
	}
	return result
}

func (e *Engine) scorePool(entity tracked.Entity, candidates []tracked.Listing, policy Policy) []*scored {
	pool := make([]*scored, 0, len(candidates))
	for _, candidate := range candidates {
		similarity := titles.Similarity(entity.Title, candidate.Title)
		if similarity < policy.CandidateFloor {
			continue
		}
		pool = append(pool, &scored{
			listing:    candidate,
			similarity: similarity,
			score:      similarity,
			version:    titles.ExtractVersion(candidate.Title, candidate.Excerpt, candidate.Published, candidate.SourceID),
			method:     MethodRegexOnly,
		})
	}
	return pool
}

// pickExactBump returns the best near-exact candidate carrying a version
// strictly newer than the entity's current one. An unset current version
// counts as a bump when the candidate has any extractable version.
func pickExactBump(pool []*scored, current *titles.Version) *scored {
	var best *scored
	for _, s := range pool {
		if s.similarity < exactMatchBar || s.version == nil {
			continue
		}
		if current != nil && !s.version.GreaterThan(*current) {
			continue
		}
		if best == nil || better(s, best) {
			best = s
		}
	}
	return best
}

func (e *Engine) blendAssessments(ctx context.Context, entity tracked.Entity, pool []*scored, policy Policy, log *slog.Logger) {
	var uncertain []*scored
	for _, s := range pool {
		if s.similarity >= aiBandFloor && s.similarity < exactMatchBar {
			uncertain = append(uncertain, s)
		}
	}
	if len(uncertain) == 0 {
		return
	}

	req := scorer.Request{
		EntityTitle:  titles.Normalize(entity.Title),
		KnownVersion: entity.CurrentVersion,
		Listings:     make([]scorer.Listing, 0, len(uncertain)),
	}
	for _, s := range uncertain {
		req.Listings = append(req.Listings, scorer.Listing{
			Title:     s.listing.Title,
			Excerpt:   s.listing.Excerpt,
			Source:    s.listing.Source,
			Published: s.listing.Published,
		})
	}

	assessments, err := e.scorer.Analyze(ctx, req)
	if err != nil {
		log.Warn("ai assessment unavailable, falling back to lexical scoring", logging.Error(err))
		return
	}
	for _, a := range assessments {
		if a.Index < 0 || a.Index >= len(uncertain) {
			continue
		}
		s := uncertain[a.Index]
		if !a.IsUpdate {
			continue
		}
		s.score = policy.SimilarityWeight*s.similarity + policy.AIWeight*a.Confidence
		s.aiReason = a.Reason
		if a.Confidence > aiPrimaryBar && a.Confidence > s.similarity {
			s.method = MethodAIPrimary
		} else {
			s.method = MethodAIEnhanced
		}
	}
}

// pickBest returns the highest-scoring candidate. Scores within a small
// epsilon tie-break on extracted-version confidence, then publish recency.
func pickBest(pool []*scored) *scored {
	sort.SliceStable(pool, func(i, j int) bool {
		return better(pool[i], pool[j])
	})
	return pool[0]
}

func better(a, b *scored) bool {
	if math.Abs(a.score-b.score) > tieEpsilon {
		return a.score > b.score
	}
	if ca, cb := versionConfidence(a), versionConfidence(b); ca != cb {
		return ca > cb
	}
	return a.listing.Published.After(b.listing.Published)
}

func versionConfidence(s *scored) float64 {
	if s.version == nil {
		return 0
	}
	return s.version.Confidence
}

func bestReason(s *scored, fallback string) string {
	if s.aiReason != "" {
		return s.aiReason
	}
	return fallback
}
