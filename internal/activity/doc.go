// Package activity turns source records into the activity documents the
// tokenization provider accepts, and owns tracking number normalisation.
//
// Mapping is pure: the same record, tracking number and window always yield
// the same document. UPS records with a tracking number become tracking-only
// documents that the provider resolves against the carrier; everything else
// carries the route (mode, origin and destination addresses) and the billing
// weight so the provider can compute emissions from distance.
package activity
