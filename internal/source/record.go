package source

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/carbontoken/internal/ledger"
)

// WindowLayout is the literal format of window bounds on the command line.
const WindowLayout = "2006-01-02 15:04:05"

// Window is the half-open time range [From, Thru) a run covers.
type Window struct {
	From time.Time
	Thru time.Time
}

// ParseWindow parses both bounds in WindowLayout as UTC.
func ParseWindow(from, thru string) (Window, error) {
	f, err := time.ParseInLocation(WindowLayout, from, time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("invalid from_date %q: expected %s", from, WindowLayout)
	}
	t, err := time.ParseInLocation(WindowLayout, thru, time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("invalid thru_date %q: expected %s", thru, WindowLayout)
	}
	if t.Before(f) {
		return Window{}, fmt.Errorf("thru_date %s is before from_date %s", thru, from)
	}
	return Window{From: f, Thru: t}, nil
}

// Address is a postal address as stored in postal_address.
type Address struct {
	Address1           string
	Address2           string
	City               string
	PostalCode         string
	CountryGeoID       string
	StateProvinceGeoID string
}

// Record is one source row. Deliveries fill only DeliveryID and
// TrackingNumbers; their carrier is always UPS.
type Record struct {
	Kind                 ledger.Kind
	ShipmentID           string
	SegmentID            string
	DeliveryID           string
	CarrierPartyID       string
	ShipmentMethodTypeID string
	TrackingNumbers      string // raw, possibly comma-separated
	Origin               Address
	Destination          Address
	BillingWeight        decimal.NullDecimal
	BillingWeightUOM     string
}

// Parent returns the parent id components of the record's Tracking Keys.
func (r Record) Parent() []string {
	if r.Kind == ledger.KindDelivery {
		return []string{r.DeliveryID}
	}
	return []string{r.ShipmentID, r.SegmentID}
}

// Key builds the Tracking Key of one tracking number of the record.
func (r Record) Key(tracking string) ledger.Key {
	return ledger.Key{Parent: r.Parent(), Tracking: tracking}
}

// Carrier returns the carrier party id, UPS for deliveries.
func (r Record) Carrier() string {
	if r.Kind == ledger.KindDelivery {
		return CarrierUPS
	}
	return r.CarrierPartyID
}

// CarrierUPS is the carrier party id that gets tracking-only activities.
const CarrierUPS = "UPS"
