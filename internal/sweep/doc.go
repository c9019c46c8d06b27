// Package sweep drives periodic update checks over tracked entities. Each
// sweep lists entities past their staleness threshold, fans the checks out
// with bounded concurrency, and applies the decision engine's verdicts. A
// short-TTL snapshot cache skips rescoring when a candidate pool has not
// changed between sweeps.
package sweep
