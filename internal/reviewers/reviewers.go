// Package reviewers resolves the roster eligible to vote on pending
// approvals. Quorum is computed from this roster, so an empty roster
// disables the consensus path entirely.
package reviewers

import (
	"context"
	"strings"
)

// Source yields the current reviewer roster.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Contains(ctx context.Context, reviewerID string) (bool, error)
}

// Static is a config-backed roster that never changes at runtime.
type Static struct {
	ids []string
}

// NewStatic builds a roster from configured reviewer ids, dropping blanks
// and duplicates while preserving order.
func NewStatic(ids []string) *Static {
	cleaned := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		cleaned = append(cleaned, id)
	}
	return &Static{ids: cleaned}
}

var _ Source = (*Static)(nil)

func (s *Static) List(ctx context.Context) ([]string, error) {
	return append([]string(nil), s.ids...), nil
}

func (s *Static) Contains(ctx context.Context, reviewerID string) (bool, error) {
	reviewerID = strings.TrimSpace(reviewerID)
	for _, id := range s.ids {
		if id == reviewerID {
			return true, nil
		}
	}
	return false, nil
}
