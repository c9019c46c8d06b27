// Package titles implements the pure text engine behind update detection:
// release-title normalization, lexical similarity scoring, version token
// extraction, and the related-but-distinct classifier that keeps sequels from
// being mistaken for updates.
//
// Every function in this package is deterministic and free of I/O so the
// scoring pipeline is unit-testable without network or storage access.
package titles
