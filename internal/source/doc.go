// Package source reads the ERP rows that feed tokenization.
//
// Two Kinds are supported. Shipments come from shipment_route_segment joined
// twice with postal_address (origin and destination) and are partitioned by
// origin facility. Deliveries come from the UPS Quantum View subscription table
// q_v_subscription_file_delivery and carry only a delivery id and the raw
// tracking numbers.
//
// Records are read in fixed-size pages. Each page is its own query, so no
// result set stays open while the caller talks to the ledger on the same
// connection pool. A query or scan failure is logged and ends the sequence;
// callers get an empty or partial result rather than an aborted run.
package source
