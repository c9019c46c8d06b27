package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"patchwatch/internal/detect"
	"patchwatch/internal/logging"
	"patchwatch/internal/notifications"
	"patchwatch/internal/reviewers"
	"patchwatch/internal/services"
	"patchwatch/internal/store"
	"patchwatch/internal/tracked"
)

// Workflow owns the pending-approval state machine. All vote and state
// mutations go through it so the quorum rules live in one place.
type Workflow struct {
	store    *store.Store
	roster   reviewers.Source
	notifier notifications.Service
	logger   *slog.Logger
	now      func() time.Time
}

// Option customizes the workflow.
type Option func(*Workflow)

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWorkflow wires the consensus workflow.
func NewWorkflow(st *store.Store, roster reviewers.Source, notifier notifications.Service, logger *slog.Logger, opts ...Option) *Workflow {
	if logger == nil {
		logger = logging.NewNop()
	}
	w := &Workflow{
		store:    st,
		roster:   roster,
		notifier: notifier,
		logger:   logger.With(logging.String(logging.FieldComponent, "approval")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Open creates a pending approval for an uncertain detection. A second open
// approval for the same (entity, candidate) pair is a no-op returning the
// existing record untouched.
func (w *Workflow) Open(ctx context.Context, entity tracked.Entity, result detect.Result, ttl time.Duration) (*tracked.PendingApproval, error) {
	if result.Candidate == nil {
		return nil, services.Wrap(services.ErrValidation, "approval", "open", "result carries no candidate", nil)
	}
	now := w.now().UTC()
	pending := tracked.PendingApproval{
		EntityID:   entity.ID,
		Candidate:  *result.Candidate,
		Confidence: result.Confidence,
		Reason:     result.Reason,
		Method:     string(result.Method),
		NewVersion: result.NewVersion,
		State:      tracked.ApprovalOpen,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}

	created, err := w.store.CreateApproval(ctx, pending)
	if errors.Is(err, store.ErrDuplicateApproval) {
		w.logger.Debug("approval already open for candidate",
			logging.Int64(logging.FieldEntityID, entity.ID),
			logging.String("candidate", result.Candidate.Title))
		return w.findOpen(ctx, entity.ID, *result.Candidate)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "approval", "open", "create approval", err)
	}

	if err := w.notifier.NotifyPendingCreated(ctx, entity.Title, result.Reason); err != nil {
		w.logger.Warn("pending notification failed", logging.Error(err))
	}
	w.logger.Info("approval opened",
		logging.Int64(logging.FieldEntityID, entity.ID),
		logging.String("approval_id", created.ID),
		logging.String("candidate", result.Candidate.Title))
	return created, nil
}

// Vote records a reviewer verdict and resolves the approval when quorum is
// reached or approval becomes impossible. A repeat vote from the same
// reviewer replaces the earlier one.
func (w *Workflow) Vote(ctx context.Context, approvalID, reviewerID string, approve bool) (*tracked.PendingApproval, error) {
	eligible, err := w.roster.Contains(ctx, reviewerID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "approval", "vote", "check roster", err)
	}
	if !eligible {
		return nil, services.Wrap(services.ErrValidation, "approval", "vote",
			fmt.Sprintf("reviewer %q is not on the roster", reviewerID), nil)
	}

	pending, err := w.store.GetApproval(ctx, approvalID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, services.Wrap(services.ErrNotFound, "approval", "vote", "approval not found", err)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "approval", "vote", "load approval", err)
	}
	if pending.State != tracked.ApprovalOpen {
		return nil, services.Wrap(services.ErrValidation, "approval", "vote",
			fmt.Sprintf("approval is %s, not open", pending.State), nil)
	}

	now := w.now().UTC()
	if !pending.ExpiresAt.IsZero() && now.After(pending.ExpiresAt) {
		pending.State = tracked.ApprovalExpired
		if err := w.store.SaveApproval(ctx, pending); err != nil {
			return nil, services.Wrap(services.ErrTransient, "approval", "vote", "expire approval", err)
		}
		w.notifyResolved(ctx, pending)
		return pending, nil
	}

	pending.CastVote(reviewerID, approve, now)

	roster, err := w.roster.List(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "approval", "vote", "load roster", err)
	}
	pending.State = Evaluate(pending, len(roster))

	if pending.State == tracked.ApprovalApproved {
		if err := w.commit(ctx, pending, now); err != nil {
			return nil, err
		}
	}
	if err := w.store.SaveApproval(ctx, pending); err != nil {
		return nil, services.Wrap(services.ErrTransient, "approval", "vote", "save approval", err)
	}
	if pending.State != tracked.ApprovalOpen {
		w.notifyResolved(ctx, pending)
	}
	return pending, nil
}

// Evaluate applies the quorum rules to the current vote tally. Approval needs
// ceil(rosterSize/2) approve votes; denial happens as soon as approval is
// mathematically impossible. Anything else stays open.
func Evaluate(p *tracked.PendingApproval, rosterSize int) tracked.ApprovalState {
	if rosterSize <= 0 {
		return p.State
	}
	quorum := (rosterSize + 1) / 2
	approvals := p.Approvals()
	if approvals >= quorum {
		return tracked.ApprovalApproved
	}
	remaining := rosterSize - len(p.Votes)
	if approvals+remaining < quorum {
		return tracked.ApprovalDenied
	}
	return tracked.ApprovalOpen
}

// ExpireStale transitions open approvals past their deadline to expired.
func (w *Workflow) ExpireStale(ctx context.Context) (int, error) {
	now := w.now().UTC()
	stale, err := w.store.ListApprovals(ctx, store.ApprovalFilter{
		State:         tracked.ApprovalOpen,
		ExpiredBefore: now,
	})
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "approval", "expire", "list stale approvals", err)
	}

	expired := 0
	for i := range stale {
		pending := &stale[i]
		pending.State = tracked.ApprovalExpired
		if err := w.store.SaveApproval(ctx, pending); err != nil {
			w.logger.Warn("failed to expire approval",
				logging.String("approval_id", pending.ID), logging.Error(err))
			continue
		}
		expired++
		w.notifyResolved(ctx, pending)
	}
	if expired > 0 {
		w.logger.Info("expired stale approvals", logging.Int("count", expired))
	}
	return expired, nil
}

// Prune deletes resolved approvals older than the retention window.
func (w *Workflow) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := w.now().UTC().Add(-retention)
	pruned, err := w.store.PruneResolved(ctx, cutoff)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "approval", "prune", "prune resolved approvals", err)
	}
	return pruned, nil
}

// Run drives expiry and pruning on a fixed interval until the context ends.
func (w *Workflow) Run(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ExpireStale(ctx); err != nil {
				w.logger.Error("approval expiry pass failed", logging.Error(err))
			}
			if retention > 0 {
				if _, err := w.Prune(ctx, retention); err != nil {
					w.logger.Error("approval prune pass failed", logging.Error(err))
				}
			}
		}
	}
}

// commit replays the auto-approve side effects for an approved detection.
func (w *Workflow) commit(ctx context.Context, pending *tracked.PendingApproval, now time.Time) error {
	record := tracked.UpdateRecord{
		Version:    pending.NewVersion,
		DetectedAt: now,
		Changelog:  pending.Reason,
		Source:     pending.Candidate.Source,
	}
	if record.Version == "" {
		// No extracted version; record the listing identity rather than
		// pushing a full scraped title into the version field.
		record.Version = pending.Candidate.ID
	}
	if record.Version == "" {
		record.Version = pending.Candidate.Title
	}
	if err := w.store.CommitUpdate(ctx, pending.EntityID, record); err != nil {
		return services.Wrap(services.ErrTransient, "approval", "commit", "commit approved update", err)
	}
	return nil
}

func (w *Workflow) findOpen(ctx context.Context, entityID int64, candidate tracked.Listing) (*tracked.PendingApproval, error) {
	open, err := w.store.ListApprovals(ctx, store.ApprovalFilter{
		EntityID: entityID,
		State:    tracked.ApprovalOpen,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "approval", "open", "load existing approval", err)
	}
	key := store.CandidateKey(candidate)
	for i := range open {
		if store.CandidateKey(open[i].Candidate) == key {
			return &open[i], nil
		}
	}
	return nil, nil
}

func (w *Workflow) notifyResolved(ctx context.Context, pending *tracked.PendingApproval) {
	if err := w.notifier.NotifyApprovalResolved(ctx, pending.Candidate.Title, string(pending.State)); err != nil {
		w.logger.Warn("resolution notification failed", logging.Error(err))
	}
}
