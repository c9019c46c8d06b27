// Package catalog defines the external identity adapter contract and the
// gate that protects upstream sources from bursty access.
//
// Adapters resolve a noisy scraped title to a canonical (title, version)
// identity. They come in two shapes: a search-plus-detail API client
// (storefront) and a scraped build-history feed (buildfeed); both normalize
// to the same Candidate contract before reaching the decision engine. Every
// adapter is wrapped in a Gate that serializes calls, enforces a minimum
// inter-request delay, backs off exponentially on failure, and enters a
// cooldown window after repeated failures so one blocked source cannot stall
// a sweep.
package catalog
