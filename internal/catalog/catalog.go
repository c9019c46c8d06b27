package catalog

import (
	"context"
	"time"

	"patchwatch/internal/titles"
)

// Candidate is a canonical identity returned by an adapter: an authoritative
// title and, when the source knows it, a current version or build token.
type Candidate struct {
	ID       string
	Title    string
	Version  *titles.Version
	Released time.Time
	Summary  string
}

// Provider is the adapter contract. Implementations must be safe for use
// behind a Gate, which serializes calls; they need no locking of their own.
type Provider interface {
	Name() string
	Search(ctx context.Context, title string) ([]Candidate, error)
	LatestVersion(ctx context.Context, canonicalID string) (*titles.Version, error)
}

// BestMatch picks the candidate whose title best matches the query, or nil
// when nothing clears the floor. Adapters return results unordered and
// untrusted, so the caller re-scores them lexically.
func BestMatch(query string, candidates []Candidate, floor float64) *Candidate {
	var best *Candidate
	bestScore := floor
	for i := range candidates {
		score := titles.Similarity(query, candidates[i].Title)
		if score > bestScore {
			best = &candidates[i]
			bestScore = score
		}
	}
	return best
}
