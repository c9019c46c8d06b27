package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"patchwatch/internal/store"
	"patchwatch/internal/tracked"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenPath(filepath.Join(t.TempDir(), "patchwatch.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateAndGetEntity(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	entity, err := s.CreateEntity(ctx, tracked.Entity{
		OwnerID:        "user-1",
		Title:          "Elden Circle",
		CurrentVersion: "1.0",
		Active:         true,
		CheckFrequency: time.Hour,
	})
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}
	if entity.ID == 0 {
		t.Fatal("expected assigned id")
	}

	loaded, err := s.GetEntity(ctx, entity.ID)
	if err != nil {
		t.Fatalf("get entity: %v", err)
	}
	if loaded.Title != "Elden Circle" || loaded.CurrentVersion != "1.0" {
		t.Fatalf("unexpected entity: %+v", loaded)
	}
	if loaded.Status != tracked.StatusActive {
		t.Fatalf("expected default active status, got %s", loaded.Status)
	}
	if loaded.CheckFrequency != time.Hour {
		t.Fatalf("expected check frequency round trip, got %v", loaded.CheckFrequency)
	}
}

func TestCommitUpdateRotatesVersions(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	entity, err := s.CreateEntity(ctx, tracked.Entity{Title: "Elden Circle", CurrentVersion: "1.0", Active: true})
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}

	err = s.CommitUpdate(ctx, entity.ID, tracked.UpdateRecord{
		Version:   "1.1",
		Changelog: "balance pass",
		Source:    "aggregator",
	})
	if err != nil {
		t.Fatalf("commit update: %v", err)
	}

	loaded, err := s.GetEntity(ctx, entity.ID)
	if err != nil {
		t.Fatalf("get entity: %v", err)
	}
	if loaded.CurrentVersion != "1.1" {
		t.Fatalf("expected current version 1.1, got %q", loaded.CurrentVersion)
	}
	if loaded.LastKnownVersion != "1.0" {
		t.Fatalf("expected last known version 1.0, got %q", loaded.LastKnownVersion)
	}
	if loaded.Status != tracked.StatusUpdateAvailable {
		t.Fatalf("expected update-available status, got %s", loaded.Status)
	}
	if len(loaded.History) != 1 || loaded.History[0].Version != "1.1" {
		t.Fatalf("expected one history row for 1.1, got %+v", loaded.History)
	}
}

func TestCommitUpdateUnknownEntity(t *testing.T) {
	s := openStore(t)
	err := s.CommitUpdate(context.Background(), 999, tracked.UpdateRecord{Version: "1.0"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListEntitiesRoundTripsStaleness(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	fresh, err := s.CreateEntity(ctx, tracked.Entity{Title: "Fresh", Active: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	stale, err := s.CreateEntity(ctx, tracked.Entity{Title: "Stale", Active: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	never, err := s.CreateEntity(ctx, tracked.Entity{Title: "Never", Active: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateEntity(ctx, tracked.Entity{Title: "Inactive", Active: false}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.MarkChecked(ctx, fresh.ID, now); err != nil {
		t.Fatalf("mark checked: %v", err)
	}
	if err := s.MarkChecked(ctx, stale.ID, now.Add(-2*time.Hour)); err != nil {
		t.Fatalf("mark checked: %v", err)
	}

	got, err := s.ListEntities(ctx, store.EntityFilter{ActiveOnly: true})
	if err != nil {
		t.Fatalf("list entities: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 active entities, got %d", len(got))
	}

	// Staleness predicates run on the loaded rows, so the persisted
	// last-checked stamps must survive the round trip.
	staleIDs := make(map[int64]bool)
	for _, e := range got {
		if e.Stale(now, time.Hour) {
			staleIDs[e.ID] = true
		}
	}
	if !staleIDs[stale.ID] || !staleIDs[never.ID] {
		t.Fatalf("expected stale and never-checked entities, got %v", staleIDs)
	}
	if staleIDs[fresh.ID] {
		t.Fatal("fresh entity should not be stale")
	}
}

func TestApprovalDuplicateOpenRejected(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	entity, err := s.CreateEntity(ctx, tracked.Entity{Title: "Elden Circle", Active: true})
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}

	candidate := tracked.Listing{Title: "Elden Circle v1.1", Source: "aggr", SourceID: "42"}
	base := tracked.PendingApproval{
		EntityID:  entity.ID,
		Candidate: candidate,
		ExpiresAt: time.Now().Add(time.Hour),
	}

	first, err := s.CreateApproval(ctx, base)
	if err != nil {
		t.Fatalf("create approval: %v", err)
	}

	if _, err := s.CreateApproval(ctx, base); !errors.Is(err, store.ErrDuplicateApproval) {
		t.Fatalf("expected ErrDuplicateApproval, got %v", err)
	}

	// Resolving the first approval frees the slot.
	first.State = tracked.ApprovalDenied
	if err := s.SaveApproval(ctx, first); err != nil {
		t.Fatalf("save approval: %v", err)
	}
	if _, err := s.CreateApproval(ctx, base); err != nil {
		t.Fatalf("expected new approval after resolution, got %v", err)
	}
}

func TestApprovalVotesRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	entity, err := s.CreateEntity(ctx, tracked.Entity{Title: "Elden Circle", Active: true})
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}

	approval, err := s.CreateApproval(ctx, tracked.PendingApproval{
		EntityID:   entity.ID,
		Candidate:  tracked.Listing{Title: "Elden Circle v1.1", Source: "aggr", SourceID: "42"},
		Confidence: 0.85,
		Reason:     "similarity below auto-approval threshold",
		Method:     "regex_only",
		NewVersion: "1.1",
		ExpiresAt:  time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create approval: %v", err)
	}

	approval.CastVote("alice", true, time.Now())
	if err := s.SaveApproval(ctx, approval); err != nil {
		t.Fatalf("save approval: %v", err)
	}

	loaded, err := s.GetApproval(ctx, approval.ID)
	if err != nil {
		t.Fatalf("get approval: %v", err)
	}
	if loaded.Approvals() != 1 {
		t.Fatalf("expected one approval vote, got %d", loaded.Approvals())
	}
	if loaded.Confidence != 0.85 || loaded.Method != "regex_only" {
		t.Fatalf("unexpected approval round trip: %+v", loaded)
	}
}

func TestPruneResolved(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	entity, err := s.CreateEntity(ctx, tracked.Entity{Title: "Elden Circle", Active: true})
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}

	old := tracked.PendingApproval{
		EntityID:  entity.ID,
		Candidate: tracked.Listing{Source: "aggr", SourceID: "1"},
		State:     tracked.ApprovalDenied,
		CreatedAt: time.Now().Add(-60 * 24 * time.Hour),
		ExpiresAt: time.Now().Add(-59 * 24 * time.Hour),
	}
	if _, err := s.CreateApproval(ctx, old); err != nil {
		t.Fatalf("create old approval: %v", err)
	}
	open := tracked.PendingApproval{
		EntityID:  entity.ID,
		Candidate: tracked.Listing{Source: "aggr", SourceID: "2"},
		CreatedAt: time.Now().Add(-60 * 24 * time.Hour),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if _, err := s.CreateApproval(ctx, open); err != nil {
		t.Fatalf("create open approval: %v", err)
	}

	pruned, err := s.PruneResolved(ctx, time.Now().Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned approval, got %d", pruned)
	}

	remaining, err := s.ListApprovals(ctx, store.ApprovalFilter{})
	if err != nil {
		t.Fatalf("list approvals: %v", err)
	}
	if len(remaining) != 1 || remaining[0].State != tracked.ApprovalOpen {
		t.Fatalf("expected only the open approval to remain, got %+v", remaining)
	}
}
