// Package tracked defines the persistent data model for monitored titles:
// entities, their update history, scraped candidate listings, and pending
// approvals awaiting reviewer consensus.
package tracked
