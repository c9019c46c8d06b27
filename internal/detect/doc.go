// Package detect implements candidate ranking and the update decision. Given
// a tracked entity and the listings scraped during a sweep, the engine scores
// every pairing and produces a single verdict: commit the update, park it for
// reviewer approval, or do nothing. Decisions are pure; the sweep applies the
// commit and approval side effects.
package detect
