// Package store persists tracked entities, their update history, and pending
// approvals in SQLite.
//
// Entity mutation paths are deliberately narrow: CommitUpdate is the only
// operation that changes CurrentVersion, and it runs inside a transaction so
// a history append and version swap are atomic per entity.
package store
