package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind selects a deployment variant: the source query, the ledger table and
// the shape of the parent composite id.
type Kind string

const (
	// KindShipment is an ERP shipment route segment, keyed by
	// (shipment id, segment id, tracking number).
	KindShipment Kind = "shipment"

	// KindDelivery is a UPS Quantum View subscription delivery, keyed by
	// (delivery id, tracking number).
	KindDelivery Kind = "delivery"
)

// Kinds lists every supported Kind in a stable order.
var Kinds = []Kind{KindShipment, KindDelivery}

// ParseKind converts a CLI/config string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown kind %q: must be one of %v", s, Kinds)
	}
	return k, nil
}

// Valid reports whether k is a supported Kind.
func (k Kind) Valid() bool {
	return k == KindShipment || k == KindDelivery
}

// ParentParts is the number of components in the parent composite id.
func (k Kind) ParentParts() int {
	if k == KindShipment {
		return 2
	}
	return 1
}

// Status is the tokenization state of a ledger entry.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Valid reports whether s is one of the three ledger states.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// NoTracking is the tracking component used for shipment segments that carry
// no tracking number at all.
const NoTracking = "_NA_"

// DefaultError is recorded for failed items the provider gave no reason for.
const DefaultError = "Cannot create a token"

// IDSeparator joins the components of an activity id.
const IDSeparator = ":"

// ErrMalformedID indicates an activity id that cannot be split back into a
// Tracking Key for the expected Kind.
var ErrMalformedID = errors.New("malformed activity id")

// Key is the Tracking Key: the unit of dedup and ledger identity.
type Key struct {
	Parent   []string // shipment id + segment id, or delivery id
	Tracking string
}

// ShipmentKey builds the key of one tracking number of a shipment route segment.
func ShipmentKey(shipmentID, segmentID, tracking string) Key {
	return Key{Parent: []string{shipmentID, segmentID}, Tracking: tracking}
}

// DeliveryKey builds the key of one tracking number of a Quantum View delivery.
func DeliveryKey(deliveryID, tracking string) Key {
	return Key{Parent: []string{deliveryID}, Tracking: tracking}
}

// ID renders the key as the colon-joined activity id, preserving component order.
func (k Key) ID() string {
	parts := make([]string, 0, len(k.Parent)+1)
	parts = append(parts, k.Parent...)
	parts = append(parts, k.Tracking)
	return strings.Join(parts, IDSeparator)
}

func (k Key) String() string {
	return k.ID()
}

// HasTracking reports whether the key carries a real tracking number rather
// than the NoTracking placeholder.
func (k Key) HasTracking() bool {
	return k.Tracking != "" && k.Tracking != NoTracking
}

// Validate checks that every component is non-empty and free of
// IDSeparator, so that ParseKey(kind, k.ID()) returns k again.
func (k Key) Validate() error {
	if len(k.Parent) == 0 {
		return fmt.Errorf("%w: %q has no parent id", ErrMalformedID, k.ID())
	}
	for _, p := range append(append([]string{}, k.Parent...), k.Tracking) {
		if p == "" {
			return fmt.Errorf("%w: %q has an empty component", ErrMalformedID, k.ID())
		}
		if strings.Contains(p, IDSeparator) {
			return fmt.Errorf("%w: component %q of %q contains %q", ErrMalformedID, p, k.ID(), IDSeparator)
		}
	}
	return nil
}

// ParseKey splits an echoed activity id back into a Tracking Key. The first
// N-1 components are the parent id and the last one is the tracking number,
// where N is fixed by kind.
func ParseKey(kind Kind, id string) (Key, error) {
	parts := strings.Split(id, IDSeparator)
	if len(parts) != kind.ParentParts()+1 {
		return Key{}, fmt.Errorf("%w: %q has %d components, %s ids have %d",
			ErrMalformedID, id, len(parts), kind, kind.ParentParts()+1)
	}
	for _, p := range parts {
		if p == "" {
			return Key{}, fmt.Errorf("%w: %q has an empty component", ErrMalformedID, id)
		}
	}
	last := len(parts) - 1
	return Key{Parent: parts[:last], Tracking: parts[last]}, nil
}

// Entry is one persisted Token Ledger row.
type Entry struct {
	ID          int64 // surrogate id, increases with creation order
	Kind        Kind
	Key         Key
	Status      Status
	TokenID     string // empty means NULL
	NodeID      string
	RequestUUID string // provider emissions request uuid (correlation id)
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Tokenized reports whether the entry already holds a token id.
func (e Entry) Tokenized() bool {
	return e.TokenID != ""
}

// Pollable reports whether the Status Poller can resolve the entry.
func (e Entry) Pollable() bool {
	return e.Status == StatusQueued && e.NodeID != "" && e.RequestUUID != ""
}

// Result is the reconciled outcome of one submitted activity, ready to be
// upserted into the ledger.
type Result struct {
	Key         Key
	Status      Status
	TokenID     string
	NodeID      string
	RequestUUID string
	Error       string
}

// Succeeded builds a success result.
func Succeeded(key Key, tokenID, nodeID, requestUUID string) Result {
	return Result{Key: key, Status: StatusSuccess, TokenID: tokenID, NodeID: nodeID, RequestUUID: requestUUID}
}

// Queued builds a result for an issuance the provider deferred.
func Queued(key Key, nodeID, requestUUID string) Result {
	return Result{Key: key, Status: StatusQueued, NodeID: nodeID, RequestUUID: requestUUID}
}

// Failed builds a failure result. An empty message becomes DefaultError.
func Failed(key Key, msg string) Result {
	if msg == "" {
		msg = DefaultError
	}
	return Result{Key: key, Status: StatusFailed, Error: msg}
}

// Validate checks the per-status invariants of the ledger.
func (r Result) Validate() error {
	if r.Key.Tracking == "" || len(r.Key.Parent) == 0 {
		return fmt.Errorf("result for %q: incomplete tracking key", r.Key.ID())
	}
	switch r.Status {
	case StatusSuccess:
		if r.TokenID == "" {
			return fmt.Errorf("result for %q: success without token id", r.Key.ID())
		}
	case StatusFailed:
		if r.Error == "" {
			return fmt.Errorf("result for %q: failed without error", r.Key.ID())
		}
	case StatusQueued:
		if r.TokenID != "" || r.Error != "" {
			return fmt.Errorf("result for %q: queued must carry neither token id nor error", r.Key.ID())
		}
	default:
		return fmt.Errorf("result for %q: invalid status %q", r.Key.ID(), r.Status)
	}
	return nil
}
