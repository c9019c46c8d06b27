package tracked

import (
	"strings"
	"time"
)

// Status represents the monitoring lifecycle of a tracked entity.
type Status string

const (
	StatusActive          Status = "active"
	StatusPaused          Status = "paused"
	StatusError           Status = "error"
	StatusUpToDate        Status = "up-to-date"
	StatusUpdateAvailable Status = "update-available"
)

var allStatuses = []Status{
	StatusActive,
	StatusPaused,
	StatusError,
	StatusUpToDate,
	StatusUpdateAvailable,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ValidStatus reports whether the value is a known entity status.
func ValidStatus(status Status) bool {
	_, ok := statusSet[status]
	return ok
}

// ParseStatus normalizes a raw status string, defaulting to active.
func ParseStatus(raw string) Status {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	if ValidStatus(status) {
		return status
	}
	return StatusActive
}

// Entity is a title a user wants monitored. CurrentVersion only changes
// through a committed detection result or an approved pending approval.
type Entity struct {
	ID               int64
	OwnerID          string
	Title            string
	CurrentVersion   string
	LastKnownVersion string
	History          []UpdateRecord
	Active           bool
	CheckFrequency   time.Duration
	Status           Status
	LastChecked      time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Stale reports whether the entity is due for another sweep check.
func (e Entity) Stale(now time.Time, defaultFrequency time.Duration) bool {
	if !e.Active || e.Status == StatusPaused {
		return false
	}
	frequency := e.CheckFrequency
	if frequency <= 0 {
		frequency = defaultFrequency
	}
	if e.LastChecked.IsZero() {
		return true
	}
	return now.Sub(e.LastChecked) >= frequency
}

// UpdateRecord is one committed entry in an entity's ordered update history.
type UpdateRecord struct {
	Version    string
	DetectedAt time.Time
	Changelog  string
	SizeBytes  int64
	Source     string
}

// Listing is an ephemeral scraped record evaluated against tracked entities
// within a single sweep. The engine never persists listings.
type Listing struct {
	ID        string
	Title     string
	Excerpt   string
	Published time.Time
	Source    string
	SourceID  string
	URL       string
}

// ApprovalState represents the consensus workflow state machine.
type ApprovalState string

const (
	ApprovalOpen     ApprovalState = "open"
	ApprovalApproved ApprovalState = "approved"
	ApprovalDenied   ApprovalState = "denied"
	ApprovalExpired  ApprovalState = "expired"
)

// Vote is a single reviewer's verdict on a pending approval.
type Vote struct {
	ReviewerID string
	Approve    bool
	CastAt     time.Time
}

// PendingApproval captures an uncertain detection awaiting reviewer
// consensus. At most one open approval exists per (entity, candidate) pair.
type PendingApproval struct {
	ID         string
	EntityID   int64
	Candidate  Listing
	Confidence float64
	Reason     string
	Method     string
	NewVersion string
	Votes      []Vote
	State      ApprovalState
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// CastVote records a reviewer verdict. Duplicate votes from the same
// reviewer replace the earlier one so a reviewer never double-counts.
func (p *PendingApproval) CastVote(reviewerID string, approve bool, now time.Time) {
	for i := range p.Votes {
		if p.Votes[i].ReviewerID == reviewerID {
			p.Votes[i].Approve = approve
			p.Votes[i].CastAt = now
			return
		}
	}
	p.Votes = append(p.Votes, Vote{ReviewerID: reviewerID, Approve: approve, CastAt: now})
}

// Approvals counts approve votes.
func (p *PendingApproval) Approvals() int {
	count := 0
	for _, v := range p.Votes {
		if v.Approve {
			count++
		}
	}
	return count
}

// Denials counts deny votes.
func (p *PendingApproval) Denials() int {
	return len(p.Votes) - p.Approvals()
}
