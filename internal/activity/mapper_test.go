package activity

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/carbontoken/internal/ledger"
	"github.com/roach88/carbontoken/internal/source"
)

var window = source.Window{
	From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	Thru: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
}

var (
	springfield = source.Address{Address1: "1 Main St", City: "Springfield", PostalCode: "11111", CountryGeoID: "USA", StateProvinceGeoID: "IL"}
	shelbyville = source.Address{Address1: "2 Elm St", Address2: "Suite 4", City: "Shelbyville", CountryGeoID: "USA"}
)

func upsRecord() source.Record {
	return source.Record{
		Kind:            ledger.KindShipment,
		ShipmentID:      "10001",
		SegmentID:       "00002",
		CarrierPartyID:  "UPS",
		TrackingNumbers: "1Z999AA10123456784",
		Origin:          springfield,
		Destination:     shelbyville,
		BillingWeight:   decimal.NewNullDecimal(decimal.RequireFromString("3")),
	}
}

func fedexRecord() source.Record {
	return source.Record{
		Kind:                 ledger.KindShipment,
		ShipmentID:           "10002",
		SegmentID:            "00001",
		CarrierPartyID:       "FEDEX",
		ShipmentMethodTypeID: "GROUND",
		TrackingNumbers:      "F1",
		Origin:               springfield,
		Destination:          shelbyville,
		BillingWeight:        decimal.NewNullDecimal(decimal.RequireFromString("12.50")),
		BillingWeightUOM:     "WT_lb",
	}
}

func untrackedRecord() source.Record {
	return source.Record{
		Kind:           ledger.KindShipment,
		ShipmentID:     "10001",
		SegmentID:      "00001",
		CarrierPartyID: "UPS",
		Origin:         springfield,
		Destination:    shelbyville,
	}
}

func TestMap_UPSTrackingOnly(t *testing.T) {
	doc := Map(upsRecord(), "1Z999AA10123456784", window)

	assert.Equal(t, Document{
		Carrier:  "ups",
		FromDate: "2024-01-01T00:00:00.000",
		ID:       "10001:00002:1Z999AA10123456784",
		ThruDate: "2024-01-02T00:00:00.000",
		Tracking: "1Z999AA10123456784",
		Type:     "shipment",
	}, doc)
}

func TestMap_Delivery(t *testing.T) {
	rec := source.Record{Kind: ledger.KindDelivery, DeliveryID: "Q1", TrackingNumbers: "1Z1"}

	doc := Map(rec, "1Z1", window)

	assert.Equal(t, "Q1:1Z1", doc.ID)
	assert.Equal(t, "ups", doc.Carrier)
	assert.Equal(t, "1Z1", doc.Tracking)
	assert.Nil(t, doc.From)
}

func TestMap_FullDetail(t *testing.T) {
	doc := Map(fedexRecord(), "F1", window)

	assert.Empty(t, doc.Carrier)
	assert.Equal(t, "10002:00001:F1", doc.ID)
	assert.Equal(t, "F1", doc.Tracking)
	assert.Equal(t, "ground", doc.Mode)
	assert.Equal(t, &Address{Address: "1 Main St", City: "Springfield", Country: "USA", StateProvince: "IL"}, doc.From)
	assert.Equal(t, &Address{Address: "2 Elm St Suite 4", City: "Shelbyville", Country: "USA"}, doc.To)
	assert.Equal(t, "12.5", doc.Weight)
	assert.Equal(t, "lbs", doc.WeightUOM)
}

func TestMap_PlaceholderTrackingOmitted(t *testing.T) {
	doc := Map(untrackedRecord(), ledger.NoTracking, window)

	assert.Equal(t, "10001:00001:_NA_", doc.ID)
	assert.Empty(t, doc.Tracking)
	assert.Empty(t, doc.Carrier, "UPS without tracking gets full detail")
	assert.NotNil(t, doc.From)
}

func TestMap_OmitsAbsentFields(t *testing.T) {
	rec := fedexRecord()
	rec.ShipmentMethodTypeID = ""
	rec.BillingWeight = decimal.NullDecimal{}
	rec.BillingWeightUOM = "WT_oz"
	rec.Destination.StateProvinceGeoID = ""

	raw, err := json.Marshal(Map(rec, "F1", window))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	for _, field := range []string{"mode", "weight", "weight_uom", "carrier"} {
		assert.NotContains(t, m, field)
	}
	to := m["to"].(map[string]any)
	assert.NotContains(t, to, "state_province")
	assert.NotContains(t, string(raw), "null")
}

func TestMap_ZeroWeightOmitted(t *testing.T) {
	rec := fedexRecord()
	rec.BillingWeight = decimal.NewNullDecimal(decimal.Zero)

	assert.Empty(t, Map(rec, "F1", window).Weight)
}

func TestMap_NormalizesAddressText(t *testing.T) {
	rec := fedexRecord()
	// "e" followed by a combining acute accent
	rec.Origin.City = "Montre\u0301al"

	doc := Map(rec, "F1", window)

	assert.Equal(t, "Montr\u00e9al", doc.From.City)
}

func TestMap_Deterministic(t *testing.T) {
	assert.Equal(t, Map(fedexRecord(), "F1", window), Map(fedexRecord(), "F1", window))
}

func TestBatch_EncodeGolden(t *testing.T) {
	batch := Batch{Activities: []Document{
		Map(upsRecord(), "1Z999AA10123456784", window),
		Map(fedexRecord(), "F1", window),
		Map(untrackedRecord(), ledger.NoTracking, window),
	}}

	var buf bytes.Buffer
	require.NoError(t, batch.Encode(&buf))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "batch_payload", buf.Bytes())
}

func TestBatch_WriteFileOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokenize_input.json")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 4096), 0o644))

	batch := Batch{Activities: []Document{Map(upsRecord(), "1Z999AA10123456784", window)}}
	require.NoError(t, batch.WriteFile(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Batch
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, batch, decoded)
}
