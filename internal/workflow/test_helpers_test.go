package workflow

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roach88/carbontoken/internal/ledger"
	"github.com/roach88/carbontoken/internal/metrics"
	"github.com/roach88/carbontoken/internal/provider"
	"github.com/roach88/carbontoken/internal/source"
	"github.com/roach88/carbontoken/internal/store"
	"github.com/roach88/carbontoken/internal/testutil"
)

var (
	testNow    = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	testWindow = source.Window{
		From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Thru: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
)

// fixture wires a workflow to a SQLite database holding both the ERP tables
// and the ledger, and to a fake provider.
type fixture struct {
	store   *store.Store
	fake    *testutil.FakeProvider
	metrics *metrics.Recorder
	dir     string
	wf      *Workflow
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWithLogger(t, zap.NewNop(), opts...)
}

func newFixtureWithLogger(t *testing.T, log *zap.Logger, opts ...Option) *fixture {
	t.Helper()

	dir := t.TempDir()
	clock := testutil.NewSteppingClock(testNow, time.Second)

	st, err := store.Open("sqlite3", filepath.Join(dir, "erp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	st.WithClock(clock.Now)
	testutil.CreateERPTables(t, st.DB())

	fake := testutil.NewFakeProvider(t)
	client, err := provider.New(provider.Config{SubmitURL: fake.URL, StatusURL: fake.URL}, log)
	require.NoError(t, err)

	m := metrics.New()
	base := []Option{
		WithClock(clock.Now),
		WithRunIDs(NewFixedGenerator("run-1", "run-2", "run-3", "run-4")),
		WithMetrics(m),
		WithScratchDir(dir),
	}
	return &fixture{
		store:   st,
		fake:    fake,
		metrics: m,
		dir:     dir,
		wf:      New(st, client, log, append(base, opts...)...),
	}
}

// shipmentRequest issues for facility F1 over testWindow.
func shipmentRequest() IssueRequest {
	return IssueRequest{Kind: ledger.KindShipment, Window: testWindow, FacilityID: "F1", IssuedTo: "0xabc"}
}

func deliveryRequest() IssueRequest {
	return IssueRequest{Kind: ledger.KindDelivery, Window: testWindow, IssuedTo: "0xabc"}
}

// seedShipments inserts the standard segment set:
//   - S1/00001: UPS with two tracking numbers
//   - S2/00001: FEDEX without tracking, full detail
//   - S3/00001: tracking number one character too long
//   - S4/00001: other facility, never selected
func seedShipments(t *testing.T, f *fixture) {
	t.Helper()
	db := f.store.DB()
	testutil.InsertAddresses(t, db,
		testutil.PostalAddress{ContactMechID: "A1", Address1: "1 Main St", City: "Boston", CountryGeoID: "USA", StateProvinceGeoID: "MA"},
		testutil.PostalAddress{ContactMechID: "A2", Address1: "9 Rue Haute", City: "Lyon", CountryGeoID: "FRA"},
	)
	testutil.InsertSegments(t, db,
		testutil.ShipmentSegment{ShipmentID: "S1", SegmentID: "00001", FacilityID: "F1", Origin: "A1", Destination: "A2",
			Carrier: "UPS", Method: "GROUND", Tracking: "1Z001, 1Z002", CreatedStamp: "2024-01-10 08:00:00"},
		testutil.ShipmentSegment{ShipmentID: "S2", SegmentID: "00001", FacilityID: "F1", Origin: "A1", Destination: "A2",
			Carrier: "FEDEX", Method: "AIR", Weight: "12.5", WeightUOM: "WT_lb", CreatedStamp: "2024-01-11 08:00:00"},
		testutil.ShipmentSegment{ShipmentID: "S3", SegmentID: "00001", FacilityID: "F1", Origin: "A1", Destination: "A2",
			Carrier: "UPS", Tracking: "1Z34567890123456789", CreatedStamp: "2024-01-12 08:00:00"},
		testutil.ShipmentSegment{ShipmentID: "S4", SegmentID: "00001", FacilityID: "F2", Origin: "A1", Destination: "A2",
			Carrier: "UPS", Tracking: "1Z004", CreatedStamp: "2024-01-12 08:00:00"},
	)
}

// entries returns the ledger rows of kind keyed by activity id.
func entries(t *testing.T, f *fixture, kind ledger.Kind) map[string]ledger.Entry {
	t.Helper()
	list, err := f.store.Ledger(kind).List(t.Context())
	require.NoError(t, err)
	byID := make(map[string]ledger.Entry, len(list))
	for _, e := range list {
		byID[e.Key.ID()] = e
	}
	return byID
}
