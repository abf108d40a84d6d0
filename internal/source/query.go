package source

import (
	"fmt"

	"github.com/roach88/carbontoken/internal/ledger"
	"github.com/roach88/carbontoken/internal/store"
)

// Query selects the records of one run.
type Query struct {
	Kind       ledger.Kind
	Window     Window
	FacilityID string // required for shipments, ignored for deliveries
}

// Validate checks that the query can be executed.
func (q Query) Validate() error {
	if !q.Kind.Valid() {
		return fmt.Errorf("invalid kind %q", q.Kind)
	}
	if q.Kind == ledger.KindShipment && q.FacilityID == "" {
		return fmt.Errorf("facility id is required for %s records", q.Kind)
	}
	return nil
}

const shipmentColumns = `srs.shipment_id, srs.shipment_route_segment_id,
		srs.carrier_party_id, srs.shipment_method_type_id,
		srs.tracking_id_number, srs.billing_weight, srs.billing_weight_uom_id,
		pa.address1, pa.address2, pa.city, pa.postal_code, pa.country_geo_id, pa.state_province_geo_id,
		pa1.address1, pa1.address2, pa1.city, pa1.postal_code, pa1.country_geo_id, pa1.state_province_geo_id`

// statement renders the page query for q and returns it with its arguments.
// Every page binds limit and offset as the last two arguments.
func statement(d store.Dialect, q Query, limit, offset int) (string, []any) {
	from, thru := d.TimeArg(q.Window.From), d.TimeArg(q.Window.Thru)

	if q.Kind == ledger.KindDelivery {
		at := "(qv.delivery_date + qv.delivery_time)"
		if d == store.DialectSQLite {
			at = "datetime(qv.delivery_date || ' ' || qv.delivery_time)"
		}
		return fmt.Sprintf(`
			SELECT qv.delivery_id, qv.tracking_number
			FROM q_v_subscription_file_delivery qv
			WHERE %[1]s >= $1 AND %[1]s < $2
			ORDER BY qv.delivery_date, qv.delivery_time, qv.delivery_id, qv.tracking_number
			LIMIT $3 OFFSET $4
		`, at), []any{from, thru, limit, offset}
	}

	created := "srs.created_stamp"
	if d == store.DialectSQLite {
		created = "datetime(srs.created_stamp)"
	}
	return fmt.Sprintf(`
		SELECT %[1]s
		FROM shipment_route_segment srs
		JOIN postal_address pa ON srs.origin_contact_mech_id = pa.contact_mech_id
		JOIN postal_address pa1 ON srs.dest_contact_mech_id = pa1.contact_mech_id
		WHERE srs.origin_facility_id = $1
		AND %[2]s >= $2 AND %[2]s < $3
		ORDER BY srs.shipment_id, srs.shipment_route_segment_id
		LIMIT $4 OFFSET $5
	`, shipmentColumns, created), []any{q.FacilityID, from, thru, limit, offset}
}
