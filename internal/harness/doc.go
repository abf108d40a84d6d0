// Package harness runs end-to-end scenarios against the issue and update
// workflows.
//
// A scenario seeds the ERP tables (and optionally the ledger) of a fresh
// SQLite database, then executes a list of steps against an in-process fake
// provider:
//   - issue: one issue run over a window
//   - update: one Status Poller pass
//   - resolve: make queued requests resolve on the fake provider's status
//     endpoint
//
// Each step may set how the fake provider answers the next batch (issue,
// queue, fail or reject) and may check the run's error code and counts.
// Assertions then check the ledger rows and the batches the provider
// received.
//
// # Determinism
//
// Run ids come from a FixedGenerator ("run-1", "run-2", ...) and every
// timestamp from a SteppingClock, so the snapshot of a scenario (step
// outcomes, submitted ids, final ledger) is stable and compared against a
// golden file with RunWithGolden.
package harness
