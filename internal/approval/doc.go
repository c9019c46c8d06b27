// Package approval runs the consensus workflow over pending approvals. An
// approval opens when the detection engine is unsure, collects reviewer
// votes, and resolves to approved, denied, or expired. Approval replays the
// same commit side effects an auto-approved detection would have applied.
package approval
