package testutil

import (
	"database/sql"
	"testing"
)

// ERPSchema creates the subset of the ERP tables the record source reads,
// in SQLite syntax.
const ERPSchema = `
CREATE TABLE IF NOT EXISTS postal_address (
    contact_mech_id TEXT PRIMARY KEY,
    address1 TEXT,
    address2 TEXT,
    city TEXT,
    postal_code TEXT,
    country_geo_id TEXT,
    state_province_geo_id TEXT
);

CREATE TABLE IF NOT EXISTS shipment_route_segment (
    shipment_id TEXT NOT NULL,
    shipment_route_segment_id TEXT NOT NULL,
    origin_facility_id TEXT,
    origin_contact_mech_id TEXT,
    dest_contact_mech_id TEXT,
    carrier_party_id TEXT,
    shipment_method_type_id TEXT,
    tracking_id_number TEXT,
    billing_weight NUMERIC,
    billing_weight_uom_id TEXT,
    created_stamp TEXT NOT NULL,
    PRIMARY KEY (shipment_id, shipment_route_segment_id)
);

CREATE TABLE IF NOT EXISTS q_v_subscription_file_delivery (
    delivery_id TEXT NOT NULL,
    tracking_number TEXT,
    delivery_date TEXT NOT NULL,
    delivery_time TEXT NOT NULL
);
`

// PostalAddress is one postal_address row.
type PostalAddress struct {
	ContactMechID      string
	Address1           string
	Address2           string
	City               string
	PostalCode         string
	CountryGeoID       string
	StateProvinceGeoID string
}

// ShipmentSegment is one shipment_route_segment row. Empty strings are stored
// as NULL; Weight is stored as NULL when empty.
type ShipmentSegment struct {
	ShipmentID   string
	SegmentID    string
	FacilityID   string
	Origin       string // contact mech id
	Destination  string // contact mech id
	Carrier      string
	Method       string
	Tracking     string
	Weight       string
	WeightUOM    string
	CreatedStamp string // YYYY-MM-DD HH:MM:SS
}

// Delivery is one q_v_subscription_file_delivery row.
type Delivery struct {
	DeliveryID string
	Tracking   string
	Date       string // YYYY-MM-DD
	Time       string // HH:MM:SS
}

// CreateERPTables applies ERPSchema to db.
func CreateERPTables(t *testing.T, db *sql.DB) {
	t.Helper()
	if _, err := db.Exec(ERPSchema); err != nil {
		t.Fatalf("create ERP tables: %v", err)
	}
}

// InsertAddresses inserts postal addresses.
func InsertAddresses(t *testing.T, db *sql.DB, addrs ...PostalAddress) {
	t.Helper()
	for _, a := range addrs {
		_, err := db.Exec(`INSERT INTO postal_address
			(contact_mech_id, address1, address2, city, postal_code, country_geo_id, state_province_geo_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			a.ContactMechID, null(a.Address1), null(a.Address2), null(a.City), null(a.PostalCode),
			null(a.CountryGeoID), null(a.StateProvinceGeoID))
		if err != nil {
			t.Fatalf("insert postal_address %s: %v", a.ContactMechID, err)
		}
	}
}

// InsertSegments inserts shipment route segments.
func InsertSegments(t *testing.T, db *sql.DB, segs ...ShipmentSegment) {
	t.Helper()
	for _, s := range segs {
		_, err := db.Exec(`INSERT INTO shipment_route_segment
			(shipment_id, shipment_route_segment_id, origin_facility_id, origin_contact_mech_id,
			dest_contact_mech_id, carrier_party_id, shipment_method_type_id, tracking_id_number,
			billing_weight, billing_weight_uom_id, created_stamp)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			s.ShipmentID, s.SegmentID, null(s.FacilityID), null(s.Origin), null(s.Destination),
			null(s.Carrier), null(s.Method), null(s.Tracking), null(s.Weight), null(s.WeightUOM),
			s.CreatedStamp)
		if err != nil {
			t.Fatalf("insert shipment_route_segment %s/%s: %v", s.ShipmentID, s.SegmentID, err)
		}
	}
}

// InsertDeliveries inserts Quantum View deliveries.
func InsertDeliveries(t *testing.T, db *sql.DB, ds ...Delivery) {
	t.Helper()
	for _, d := range ds {
		_, err := db.Exec(`INSERT INTO q_v_subscription_file_delivery
			(delivery_id, tracking_number, delivery_date, delivery_time)
			VALUES ($1, $2, $3, $4)`,
			d.DeliveryID, null(d.Tracking), d.Date, d.Time)
		if err != nil {
			t.Fatalf("insert q_v_subscription_file_delivery %s: %v", d.DeliveryID, err)
		}
	}
}

func null(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
