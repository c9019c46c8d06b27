// Package services defines the shared error taxonomy and context plumbing used
// by patchwatch components. Sentinel markers classify failures so the sweep
// scheduler and adapter gates can decide between retrying, cooling down, and
// routing an entity to review without string matching.
package services
