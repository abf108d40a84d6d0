// Package workflow runs the two carbontoken jobs: issuing tokens for the
// records of a time window, and resolving issuances the provider queued.
//
// ISSUE RUN:
//
// 1. The record source is paged in fixed-size pages
// 2. Each tracking number becomes a Tracking Key; malformed, empty and
// already tokenized keys are skipped (dedup gate)
// 3. Surviving keys are mapped to activity documents, written to the scratch
// file and submitted in exactly one provider call
// 4. Each per-item result is upserted into the ledger by its Tracking Key
//
// No ledger row is written before the provider answers, so a connection
// failure leaves the run fully retryable. A whole-batch failure is logged and
// writes nothing either.
//
// UPDATE RUN:
//
// Queued ledger rows are scanned in creation order and looked up on the
// provider's status endpoint. Resolved issuances move to success through a
// conditional update that only touches rows still queued.
//
// Both runs are single-threaded and blocking. A panic inside a run is
// recovered at the run boundary and reported as a RunError.
package workflow
