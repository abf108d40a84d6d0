// Package store provides durable storage for the Token Ledger and the shared
// database handle the Record Source reads through.
//
// The ledger has one table per deployment Kind:
//   - shipment_route_segment_token: keyed by (shipment_id, shipment_route_segment_id, tracking_number)
//   - q_v_delivery_token: keyed by (delivery_id, tracking_number)
//
// # Critical Patterns
//
// Key-Level Idempotency
//   - UNIQUE index on the Tracking Key columns of each table
//   - Save is an insert-or-update inside one transaction, so a retried
//     reconciliation pass updates the existing row instead of adding one
//
// Monotonic Resolution
//   - MarkSuccess only moves rows that are still queued
//     (UPDATE ... WHERE status = 'queued'), so repeated poller passes never
//     touch success or failed rows
//
// Creation Order
//   - Every row has a surrogate id that grows with insertion order; queued
//     scans page on it (keyset paging), so rows resolved mid-scan never shift
//     later pages
//
// # Dialects
//
// Production runs against the ERP Postgres database through lib/pq; local runs
// and tests use SQLite through mattn/go-sqlite3. All statements use $n
// placeholders, which both drivers accept. SQLite connections get:
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
