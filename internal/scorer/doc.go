// Package scorer provides the optional AI assessment used to tighten
// detection confidence for mid-band similarity scores. The detection engine
// treats every scorer failure as a soft miss and falls back to lexical
// scoring alone, so implementations never need to guarantee availability.
package scorer
