package detect

import (
	"context"
	"errors"
	"testing"
	"time"

	"patchwatch/internal/scorer"
	"patchwatch/internal/tracked"
)

type stubScorer struct {
	assessments []scorer.Assessment
	err         error
	calls       int
	lastReq     scorer.Request
}

func (s *stubScorer) Name() string { return "stub" }

func (s *stubScorer) Analyze(ctx context.Context, req scorer.Request) ([]scorer.Assessment, error) {
	s.calls++
	s.lastReq = req
	return s.assessments, s.err
}

func testEntity(title, current string) tracked.Entity {
	return tracked.Entity{
		ID:             42,
		Title:          title,
		CurrentVersion: current,
		Active:         true,
		Status:         tracked.StatusActive,
	}
}

func TestDecideAutoApprovesExactMatchWithVersionBump(t *testing.T) {
	engine := NewEngine(scorer.Noop{}, nil)
	entity := testEntity("Dusk Chronicles", "1.0")
	candidates := []tracked.Listing{
		{ID: "a", Title: "Totally Unrelated Game v9.9"},
		{ID: "b", Title: "Dusk Chronicles v1.1-RAZOR"},
	}

	result := engine.Decide(context.Background(), entity, candidates, Policy{})
	if result.Outcome != OutcomeAutoApprove {
		t.Fatalf("expected auto-approve, got %s (%s)", result.Outcome, result.Reason)
	}
	if !result.IsUpdate {
		t.Fatal("expected IsUpdate")
	}
	if result.Method != MethodRegexOnly {
		t.Fatalf("expected regex_only, got %s", result.Method)
	}
	if result.NewVersion != "v1.1" {
		t.Fatalf("expected v1.1, got %q", result.NewVersion)
	}
	if result.Candidate == nil || result.Candidate.ID != "b" {
		t.Fatalf("expected candidate b, got %+v", result.Candidate)
	}
}

func TestDecideUnsetCurrentVersionCountsAsBump(t *testing.T) {
	engine := NewEngine(scorer.Noop{}, nil)
	entity := testEntity("Dusk Chronicles", "")
	candidates := []tracked.Listing{{ID: "a", Title: "Dusk Chronicles v2.0 REPACK"}}

	result := engine.Decide(context.Background(), entity, candidates, Policy{})
	if result.Outcome != OutcomeAutoApprove {
		t.Fatalf("expected auto-approve, got %s (%s)", result.Outcome, result.Reason)
	}
	if result.NewVersion != "v2.0" {
		t.Fatalf("expected v2.0, got %q", result.NewVersion)
	}
}

func TestDecideNothingAboveFloor(t *testing.T) {
	sc := &stubScorer{}
	engine := NewEngine(sc, nil)
	entity := testEntity("Dusk Chronicles", "1.0")
	candidates := []tracked.Listing{
		{ID: "a", Title: "Completely Different Game v2.0"},
	}

	result := engine.Decide(context.Background(), entity, candidates, Policy{})
	if result.Outcome != OutcomeNoUpdate {
		t.Fatalf("expected no-update, got %s", result.Outcome)
	}
	if result.IsUpdate {
		t.Fatal("expected IsUpdate false")
	}
	if sc.calls != 0 {
		t.Fatalf("scorer should not run without candidates, got %d calls", sc.calls)
	}
}

func TestDecideParksInexactMatchWithoutVersionEvidence(t *testing.T) {
	sc := &stubScorer{err: errors.New("scorer offline")}
	engine := NewEngine(sc, nil)
	entity := testEntity("Dusk Chronicles Arise Saga Gold", "1.0")
	candidates := []tracked.Listing{
		{ID: "a", Title: "Dusk Chronicle Arise Saga Gold"},
	}

	result := engine.Decide(context.Background(), entity, candidates, Policy{})
	if result.Outcome != OutcomeNeedsApproval {
		t.Fatalf("expected needs-approval, got %s (%s)", result.Outcome, result.Reason)
	}
	if result.IsUpdate {
		t.Fatal("pending results must not claim an update")
	}
	if result.Method != MethodRegexOnly {
		t.Fatalf("expected fallback to regex_only, got %s", result.Method)
	}
	if sc.calls != 1 {
		t.Fatalf("expected one scorer attempt, got %d", sc.calls)
	}
}

func TestDecideBlendsAIForUncertainBand(t *testing.T) {
	sc := &stubScorer{assessments: []scorer.Assessment{
		{Index: 0, IsUpdate: true, Confidence: 0.85, Reason: "same title, newer build"},
	}}
	engine := NewEngine(sc, nil)
	entity := testEntity("Dusk Chronicles Arise Saga Gold", "1.0")
	candidates := []tracked.Listing{
		{ID: "a", Title: "Dusk Chronicle Arise Saga Gold"},
	}

	result := engine.Decide(context.Background(), entity, candidates, Policy{})
	if result.Outcome != OutcomeAutoApprove {
		t.Fatalf("expected auto-approve, got %s (%s)", result.Outcome, result.Reason)
	}
	if result.Method != MethodAIEnhanced {
		t.Fatalf("expected ai_enhanced, got %s", result.Method)
	}
	if result.Reason != "same title, newer build" {
		t.Fatalf("expected scorer reason carried through, got %q", result.Reason)
	}
	if sc.lastReq.KnownVersion != "1.0" {
		t.Fatalf("expected known version passed to scorer, got %q", sc.lastReq.KnownVersion)
	}
}

func TestDecideAIPrimaryOverridesMarginalSimilarity(t *testing.T) {
	sc := &stubScorer{assessments: []scorer.Assessment{
		{Index: 0, IsUpdate: true, Confidence: 0.95, Reason: "catalog confirms same title"},
	}}
	engine := NewEngine(sc, nil)
	entity := testEntity("Dusk Chronicles Arise Saga Gold", "1.0")
	candidates := []tracked.Listing{
		{ID: "a", Title: "Dusk Chronicle Arise Saga Gold"},
	}

	result := engine.Decide(context.Background(), entity, candidates, Policy{})
	if result.Outcome != OutcomeAutoApprove {
		t.Fatalf("expected auto-approve, got %s (%s)", result.Outcome, result.Reason)
	}
	if result.Method != MethodAIPrimary {
		t.Fatalf("expected ai_primary, got %s", result.Method)
	}
}

func TestDecideRelatedButDistinctNeedsApproval(t *testing.T) {
	engine := NewEngine(scorer.Noop{}, nil)
	entity := testEntity("Dusk Chronicles", "1.0")
	candidates := []tracked.Listing{
		{ID: "a", Title: "Dusk Chronicles Arisen v2.0"},
	}

	result := engine.Decide(context.Background(), entity, candidates, Policy{})
	if result.Outcome != OutcomeNeedsApproval {
		t.Fatalf("expected needs-approval, got %s (%s)", result.Outcome, result.Reason)
	}
	if result.IsUpdate {
		t.Fatal("related-but-distinct must not auto-commit")
	}
}

func TestDecideEqualVersionIsNoUpdate(t *testing.T) {
	engine := NewEngine(scorer.Noop{}, nil)
	entity := testEntity("Dusk Chronicles", "1.1")
	candidates := []tracked.Listing{
		{ID: "a", Title: "Dusk Chronicles v1.1"},
	}

	result := engine.Decide(context.Background(), entity, candidates, Policy{})
	if result.Outcome != OutcomeNoUpdate {
		t.Fatalf("expected no-update for the current version, got %s (%s)", result.Outcome, result.Reason)
	}
	if result.IsUpdate {
		t.Fatal("re-detecting the installed version must not claim an update")
	}
}

func TestDecideOlderVersionIsNoUpdate(t *testing.T) {
	engine := NewEngine(scorer.Noop{}, nil)
	entity := testEntity("Dusk Chronicles", "2.0")
	candidates := []tracked.Listing{
		{ID: "a", Title: "Dusk Chronicles v1.0"},
	}

	result := engine.Decide(context.Background(), entity, candidates, Policy{})
	if result.Outcome != OutcomeNoUpdate {
		t.Fatalf("expected no-update for a downgrade, got %s (%s)", result.Outcome, result.Reason)
	}
	if result.IsUpdate {
		t.Fatal("an older version must never commit")
	}
}

func TestDecideTieBreaksOnVersionConfidence(t *testing.T) {
	engine := NewEngine(scorer.Noop{}, nil)
	entity := testEntity("Dusk Chronicles", "2.0")
	candidates := []tracked.Listing{
		// Exact title, no version token; extraction falls back to the
		// recent publish date.
		{ID: "date-only", Title: "Dusk Chronicles", Published: time.Now()},
		// Exact title with an explicit version token.
		{ID: "tokened", Title: "Dusk Chronicles v1.1"},
	}

	result := engine.Decide(context.Background(), entity, candidates, Policy{})
	if result.Candidate == nil || result.Candidate.ID != "tokened" {
		t.Fatalf("expected explicit version token to win the tie, got %+v", result.Candidate)
	}
}

func TestPolicyDefaultsAndClamping(t *testing.T) {
	p := Policy{}.withDefaults()
	if p.AutoApproveThreshold != 0.8 || p.CandidateFloor != 0.6 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	clamped := Policy{AutoApproveThreshold: 0.2}.withDefaults()
	if clamped.AutoApproveThreshold != 0.5 {
		t.Fatalf("expected threshold clamped to 0.5, got %v", clamped.AutoApproveThreshold)
	}
	high := Policy{AutoApproveThreshold: 1.7}.withDefaults()
	if high.AutoApproveThreshold != 1.0 {
		t.Fatalf("expected threshold clamped to 1.0, got %v", high.AutoApproveThreshold)
	}
}
