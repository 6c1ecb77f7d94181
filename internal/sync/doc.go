// Package sync implements the incremental synchronization engine that keeps
// the SQLite page mirror consistent with a rendered source document.
//
// # Overview
//
// A render produces the document's bytes plus an ordered sequence of page
// payloads. The engine compares content fingerprints against the store's
// current state and applies the minimal diff:
//
//	Renderer output                       Store state
//	  (doc bytes, [page 0..N-1])            documents + pages rows
//	                  \                    /
//	                   Engine.Sync(identity, ...)
//	                          |
//	          insert new / update changed / delete orphaned
//
// # Algorithm
//
//  1. Fingerprint the whole document.
//  2. If the stored fingerprint matches and Force is off, short-circuit:
//     nothing is touched and the report says StatusUnchanged.
//  3. Walk pages in ascending index order. A missing index is inserted, a
//     divergent fingerprint is updated in place, a matching fingerprint is
//     skipped (even under Force).
//  4. Delete every stored page whose index is >= the current page count.
//  5. Commit the document record with the new fingerprint, last.
//
// After a successful sync the stored index set for the document is exactly
// {0..N-1}: no gaps, no stale tail entries.
//
// # Crash safety
//
// There is no umbrella transaction. Instead every step is independently
// idempotent: page writes are keyed upserts, deletes tolerate absence, and
// the document fingerprint is only written after all page work succeeded.
// If the process dies mid-call, the old fingerprint is still in place, so
// the retry cannot short-circuit; it re-walks the pages and rewrites only
// the ones still divergent. Running the same sync twice in a row performs
// zero page writes the second time.
//
// Two concurrent Sync calls for the same identity are not supported; callers
// serialize per identity. Different identities are independent.
//
// # Enrichment
//
// When a page is about to be inserted or updated, the optional Enricher is
// asked for extracted text. Enrichment is best-effort: a delegate failure is
// logged and recorded as a degraded result, and the page write proceeds.
package sync
