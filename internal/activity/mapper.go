package activity

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/carbontoken/internal/source"
)

// Map builds the activity document for one tracking number of rec.
//
// tracking is the normalised tracking number, or ledger.NoTracking for a
// shipment without one; the placeholder appears in the id but never as the
// tracking field.
func Map(rec source.Record, tracking string, w source.Window) Document {
	key := rec.Key(tracking)
	doc := Document{
		ID:       key.ID(),
		Type:     DocumentType,
		FromDate: w.From.Format(DateLayout),
		ThruDate: w.Thru.Format(DateLayout),
	}
	if key.HasTracking() {
		doc.Tracking = tracking
	}

	carrier := rec.Carrier()
	if carrier == source.CarrierUPS && key.HasTracking() {
		doc.Carrier = lower(carrier)
		return doc
	}

	if rec.ShipmentMethodTypeID != "" {
		doc.Mode = lower(rec.ShipmentMethodTypeID)
	}
	doc.From = mapAddress(rec.Origin)
	doc.To = mapAddress(rec.Destination)

	if rec.BillingWeight.Valid && !rec.BillingWeight.Decimal.IsZero() {
		doc.Weight = rec.BillingWeight.Decimal.String()
	}
	if label, ok := WeightUnit(rec.BillingWeightUOM); ok {
		doc.WeightUOM = label
	}
	return doc
}

func mapAddress(a source.Address) *Address {
	var lines []string
	for _, l := range []string{a.Address1, a.Address2} {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return &Address{
		Address:       norm.NFC.String(strings.Join(lines, " ")),
		City:          norm.NFC.String(strings.TrimSpace(a.City)),
		Country:       a.CountryGeoID,
		StateProvince: a.StateProvinceGeoID,
	}
}

// lower case-folds ERP identifiers. A Caser is stateful, so one is made per call.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

