package scorer

import (
	"context"
	"time"
)

// Listing is one candidate listing submitted for assessment.
type Listing struct {
	Title     string    `json:"title"`
	Excerpt   string    `json:"excerpt,omitempty"`
	Source    string    `json:"source,omitempty"`
	Published time.Time `json:"published,omitempty"`
}

// Request asks for an assessment of candidate listings against a tracked
// title and its currently known version.
type Request struct {
	EntityTitle  string    `json:"entity_title"`
	KnownVersion string    `json:"known_version,omitempty"`
	Listings     []Listing `json:"listings"`
}

// Assessment is the verdict for one listing, by index into Request.Listings.
type Assessment struct {
	Index      int     `json:"index"`
	IsUpdate   bool    `json:"is_update"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Scorer assesses candidate listings. Implementations must be safe for
// concurrent use.
type Scorer interface {
	Name() string
	Analyze(ctx context.Context, req Request) ([]Assessment, error)
}

// Noop is the scorer used when the AI assist is disabled. It returns no
// assessments, which keeps the detection engine on lexical scoring.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) Analyze(ctx context.Context, req Request) ([]Assessment, error) {
	return nil, nil
}
