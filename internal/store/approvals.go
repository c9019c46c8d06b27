package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"patchwatch/internal/tracked"
)

// ErrDuplicateApproval reports that an open approval already exists for the
// same (entity, candidate) pair.
var ErrDuplicateApproval = errors.New("store: open approval already exists for candidate")

// CandidateKey derives the stable identity of a scraped candidate used to
// enforce the one-open-approval-per-candidate invariant.
func CandidateKey(listing tracked.Listing) string {
	if listing.Source != "" && listing.SourceID != "" {
		return listing.Source + "/" + listing.SourceID
	}
	if listing.URL != "" {
		return listing.URL
	}
	return strings.ToLower(strings.TrimSpace(listing.Title))
}

const approvalColumns = `id, entity_id, candidate_json, confidence, reason, method,
	new_version, votes_json, state, created_at, expires_at`

// CreateApproval inserts a new pending approval in the open state. A second
// open approval for the same candidate fails with ErrDuplicateApproval.
func (s *Store) CreateApproval(ctx context.Context, p tracked.PendingApproval) (*tracked.PendingApproval, error) {
	if p.EntityID == 0 {
		return nil, errors.New("approval requires an entity id")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.State == "" {
		p.State = tracked.ApprovalOpen
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	candidateJSON, err := json.Marshal(p.Candidate)
	if err != nil {
		return nil, fmt.Errorf("marshal candidate: %w", err)
	}
	votesJSON, err := json.Marshal(orEmptyVotes(p.Votes))
	if err != nil {
		return nil, fmt.Errorf("marshal votes: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pending_approvals (
			id, entity_id, candidate_key, candidate_json, confidence, reason,
			method, new_version, votes_json, state, created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.EntityID,
		CandidateKey(p.Candidate),
		string(candidateJSON),
		p.Confidence,
		p.Reason,
		p.Method,
		p.NewVersion,
		string(votesJSON),
		string(p.State),
		formatTime(p.CreatedAt),
		formatTime(p.ExpiresAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrDuplicateApproval
		}
		return nil, fmt.Errorf("insert approval: %w", err)
	}
	return &p, nil
}

// GetApproval loads a pending approval by id.
func (s *Store) GetApproval(ctx context.Context, id string) (*tracked.PendingApproval, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM pending_approvals WHERE id = ?", approvalColumns), id)
	return scanApproval(row)
}

// ApprovalFilter narrows ListApprovals results. Zero values are ignored.
type ApprovalFilter struct {
	EntityID      int64
	State         tracked.ApprovalState
	ExpiredBefore time.Time
}

// ListApprovals returns approvals matching the filter, oldest first.
func (s *Store) ListApprovals(ctx context.Context, filter ApprovalFilter) ([]tracked.PendingApproval, error) {
	builder := sq.Select(approvalColumns).
		From("pending_approvals").
		OrderBy("created_at ASC, id ASC")

	if filter.EntityID != 0 {
		builder = builder.Where(sq.Eq{"entity_id": filter.EntityID})
	}
	if filter.State != "" {
		builder = builder.Where(sq.Eq{"state": string(filter.State)})
	}
	if !filter.ExpiredBefore.IsZero() {
		builder = builder.Where(sq.Lt{"expires_at": formatTime(filter.ExpiredBefore)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build approval query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	var approvals []tracked.PendingApproval
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		approvals = append(approvals, *approval)
	}
	return approvals, rows.Err()
}

// SaveApproval persists vote and state changes.
func (s *Store) SaveApproval(ctx context.Context, p *tracked.PendingApproval) error {
	votesJSON, err := json.Marshal(orEmptyVotes(p.Votes))
	if err != nil {
		return fmt.Errorf("marshal votes: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_approvals SET votes_json = ?, state = ? WHERE id = ?`,
		string(votesJSON),
		string(p.State),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("save approval: %w", err)
	}
	return requireRow(res)
}

// PruneResolved deletes non-open approvals created before the cutoff.
func (s *Store) PruneResolved(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_approvals WHERE state != ? AND created_at < ?`,
		string(tracked.ApprovalOpen),
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("prune approvals: %w", err)
	}
	return res.RowsAffected()
}

func scanApproval(row rowScanner) (*tracked.PendingApproval, error) {
	var p tracked.PendingApproval
	var candidateJSON, votesJSON, state, createdAt, expiresAt string

	err := row.Scan(
		&p.ID,
		&p.EntityID,
		&candidateJSON,
		&p.Confidence,
		&p.Reason,
		&p.Method,
		&p.NewVersion,
		&votesJSON,
		&state,
		&createdAt,
		&expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan approval: %w", err)
	}

	if err := json.Unmarshal([]byte(candidateJSON), &p.Candidate); err != nil {
		return nil, fmt.Errorf("decode candidate: %w", err)
	}
	if err := json.Unmarshal([]byte(votesJSON), &p.Votes); err != nil {
		return nil, fmt.Errorf("decode votes: %w", err)
	}
	p.State = tracked.ApprovalState(state)
	p.CreatedAt = parseTime(createdAt)
	p.ExpiresAt = parseTime(expiresAt)
	return &p, nil
}

func orEmptyVotes(votes []tracked.Vote) []tracked.Vote {
	if votes == nil {
		return []tracked.Vote{}
	}
	return votes
}
