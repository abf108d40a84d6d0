package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/roach88/carbontoken/internal/ledger"
	"github.com/roach88/carbontoken/internal/store"
	"github.com/roach88/carbontoken/internal/testutil"
)

func openERP(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("sqlite3", filepath.Join(t.TempDir(), "erp.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	testutil.CreateERPTables(t, s.DB())
	return s
}

func mustWindow(t *testing.T, from, thru string) Window {
	t.Helper()
	w, err := ParseWindow(from, thru)
	require.NoError(t, err)
	return w
}

func drain(t *testing.T, c *Cursor) []Record {
	t.Helper()
	var all []Record
	for {
		page := c.Next(context.Background())
		if len(page) == 0 {
			return all
		}
		all = append(all, page...)
	}
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("2024-01-01 00:00:00", "2024-01-02 00:00:00")
	require.NoError(t, err)
	assert.Equal(t, 2024, w.From.Year())
	assert.Equal(t, 2, w.Thru.Day())

	_, err = ParseWindow("2024-01-01", "2024-01-02 00:00:00")
	assert.Error(t, err)

	_, err = ParseWindow("2024-01-02 00:00:00", "2024-01-01 00:00:00")
	assert.Error(t, err)
}

func TestQuery_Validate(t *testing.T) {
	assert.Error(t, Query{Kind: "pallet"}.Validate())
	assert.Error(t, Query{Kind: ledger.KindShipment}.Validate(), "shipments need a facility")
	assert.NoError(t, Query{Kind: ledger.KindShipment, FacilityID: "WH1"}.Validate())
	assert.NoError(t, Query{Kind: ledger.KindDelivery}.Validate())
}

func TestCursor_Shipments(t *testing.T) {
	s := openERP(t)
	db := s.DB()

	testutil.InsertAddresses(t, db,
		testutil.PostalAddress{ContactMechID: "O1", Address1: "1 Main St", City: "Springfield", PostalCode: "11111", CountryGeoID: "USA", StateProvinceGeoID: "IL"},
		testutil.PostalAddress{ContactMechID: "D1", Address1: "2 Elm St", Address2: "Suite 4", City: "Shelbyville", CountryGeoID: "USA"},
	)
	testutil.InsertSegments(t, db,
		testutil.ShipmentSegment{ShipmentID: "10002", SegmentID: "00001", FacilityID: "WH1", Origin: "O1", Destination: "D1",
			Carrier: "FEDEX", Method: "GROUND", Tracking: "F1,F2", Weight: "12.5", WeightUOM: "WT_lb", CreatedStamp: "2024-01-01 10:00:00"},
		testutil.ShipmentSegment{ShipmentID: "10001", SegmentID: "00002", FacilityID: "WH1", Origin: "O1", Destination: "D1",
			Carrier: "UPS", Tracking: "1Z1", CreatedStamp: "2024-01-01 00:00:00"},
		testutil.ShipmentSegment{ShipmentID: "10001", SegmentID: "00001", FacilityID: "WH1", Origin: "O1", Destination: "D1",
			Carrier: "UPS", CreatedStamp: "2024-01-01 12:00:00"},
		// thru bound is exclusive
		testutil.ShipmentSegment{ShipmentID: "10003", SegmentID: "00001", FacilityID: "WH1", Origin: "O1", Destination: "D1",
			CreatedStamp: "2024-01-02 00:00:00"},
		// other facility
		testutil.ShipmentSegment{ShipmentID: "10004", SegmentID: "00001", FacilityID: "WH2", Origin: "O1", Destination: "D1",
			CreatedStamp: "2024-01-01 10:00:00"},
	)

	c := Open(db, store.DialectSQLite, Query{
		Kind:       ledger.KindShipment,
		Window:     mustWindow(t, "2024-01-01 00:00:00", "2024-01-02 00:00:00"),
		FacilityID: "WH1",
	}, 0, zap.NewNop())
	defer c.Close()

	recs := drain(t, c)
	require.NoError(t, c.Err())
	require.Len(t, recs, 3)

	// ordered by shipment id then segment id
	assert.Equal(t, []string{"10001", "00001"}, recs[0].Parent())
	assert.Equal(t, []string{"10001", "00002"}, recs[1].Parent())
	assert.Equal(t, []string{"10002", "00001"}, recs[2].Parent())

	fedex := recs[2]
	assert.Equal(t, ledger.KindShipment, fedex.Kind)
	assert.Equal(t, "FEDEX", fedex.Carrier())
	assert.Equal(t, "GROUND", fedex.ShipmentMethodTypeID)
	assert.Equal(t, "F1,F2", fedex.TrackingNumbers)
	assert.True(t, fedex.BillingWeight.Valid)
	assert.Equal(t, "12.5", fedex.BillingWeight.Decimal.String())
	assert.Equal(t, "WT_lb", fedex.BillingWeightUOM)
	assert.Equal(t, "Springfield", fedex.Origin.City)
	assert.Equal(t, "IL", fedex.Origin.StateProvinceGeoID)
	assert.Equal(t, "Suite 4", fedex.Destination.Address2)

	assert.Empty(t, recs[0].TrackingNumbers)
	assert.False(t, recs[0].BillingWeight.Valid)
}

func TestCursor_Deliveries(t *testing.T) {
	s := openERP(t)

	testutil.InsertDeliveries(t, s.DB(),
		testutil.Delivery{DeliveryID: "Q2", Tracking: "1Z2", Date: "2024-01-01", Time: "09:00:00"},
		testutil.Delivery{DeliveryID: "Q1", Tracking: "1Z1", Date: "2024-01-01", Time: "08:00:00"},
		testutil.Delivery{DeliveryID: "Q3", Date: "2024-01-01", Time: "10:00:00"},
		testutil.Delivery{DeliveryID: "Q0", Tracking: "1Z0", Date: "2023-12-31", Time: "23:59:59"},
	)

	c := Open(s.DB(), store.DialectSQLite, Query{
		Kind:   ledger.KindDelivery,
		Window: mustWindow(t, "2024-01-01 00:00:00", "2024-01-02 00:00:00"),
	}, 0, nil)

	recs := drain(t, c)
	require.NoError(t, c.Err())
	require.Len(t, recs, 3)

	assert.Equal(t, "Q1", recs[0].DeliveryID)
	assert.Equal(t, "Q2", recs[1].DeliveryID)
	assert.Equal(t, "Q3", recs[2].DeliveryID)
	assert.Equal(t, []string{"Q1"}, recs[0].Parent())
	assert.Equal(t, CarrierUPS, recs[0].Carrier())
	assert.Empty(t, recs[2].TrackingNumbers)
}

func TestCursor_Paging(t *testing.T) {
	s := openERP(t)

	for i := 0; i < 7; i++ {
		testutil.InsertDeliveries(t, s.DB(), testutil.Delivery{
			DeliveryID: fmt.Sprintf("Q%d", i),
			Tracking:   fmt.Sprintf("1Z%d", i),
			Date:       "2024-01-01",
			Time:       fmt.Sprintf("08:00:0%d", i),
		})
	}

	c := Open(s.DB(), store.DialectSQLite, Query{
		Kind:   ledger.KindDelivery,
		Window: mustWindow(t, "2024-01-01 00:00:00", "2024-01-02 00:00:00"),
	}, 3, nil)

	ctx := context.Background()
	assert.Len(t, c.Next(ctx), 3)
	assert.Len(t, c.Next(ctx), 3)
	last := c.Next(ctx)
	require.Len(t, last, 1)
	assert.Equal(t, "Q6", last[0].DeliveryID)
	assert.Empty(t, c.Next(ctx))
}

func TestCursor_Close(t *testing.T) {
	s := openERP(t)
	testutil.InsertDeliveries(t, s.DB(), testutil.Delivery{DeliveryID: "Q1", Tracking: "1Z1", Date: "2024-01-01", Time: "08:00:00"})

	c := Open(s.DB(), store.DialectSQLite, Query{
		Kind:   ledger.KindDelivery,
		Window: mustWindow(t, "2024-01-01 00:00:00", "2024-01-02 00:00:00"),
	}, 0, nil)
	require.NoError(t, c.Close())
	assert.Empty(t, c.Next(context.Background()))
}

func TestCursor_QueryErrorEndsSequence(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM q_v_subscription_file_delivery").
		WillReturnError(errors.New("relation does not exist"))

	core, logs := observer.New(zap.ErrorLevel)
	c := Open(db, store.DialectPostgres, Query{
		Kind:   ledger.KindDelivery,
		Window: Window{},
	}, 10, zap.New(core))

	assert.Empty(t, c.Next(context.Background()))
	assert.Error(t, c.Err())
	assert.Empty(t, c.Next(context.Background()), "sequence stays exhausted")
	assert.Equal(t, 1, logs.FilterMessage("record source failed").Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCursor_ScanErrorReturnsPartialPage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"delivery_id", "tracking_number"}).
		AddRow("Q1", "1Z1").
		AddRow("Q2", "1Z2").
		RowError(1, errors.New("connection lost"))
	mock.ExpectQuery("FROM q_v_subscription_file_delivery").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 10, 0).
		WillReturnRows(rows)

	c := Open(db, store.DialectPostgres, Query{Kind: ledger.KindDelivery}, 10, nil)

	page := c.Next(context.Background())
	require.Len(t, page, 1)
	assert.Equal(t, "Q1", page[0].DeliveryID)
	assert.Error(t, c.Err())
	assert.Empty(t, c.Next(context.Background()))
}

func TestCursor_InvalidQuery(t *testing.T) {
	c := Open(nil, store.DialectSQLite, Query{Kind: ledger.KindShipment}, 0, nil)

	assert.Empty(t, c.Next(context.Background()))
	assert.Error(t, c.Err())
}

func TestStatement_PostgresDeliveryExpression(t *testing.T) {
	stmt, args := statement(store.DialectPostgres, Query{Kind: ledger.KindDelivery}, 1000, 2000)

	assert.Contains(t, stmt, "(qv.delivery_date + qv.delivery_time) >= $1")
	assert.Len(t, args, 4)
	assert.Equal(t, 1000, args[2])
	assert.Equal(t, 2000, args[3])
}

func TestStatement_PostgresBindsNaiveBounds(t *testing.T) {
	w, err := ParseWindow("2024-01-01 00:00:00", "2024-02-01 00:00:00")
	require.NoError(t, err)

	_, args := statement(store.DialectPostgres, Query{Kind: ledger.KindShipment, Window: w, FacilityID: "F1"}, 10, 0)

	require.Len(t, args, 5)
	assert.Equal(t, "F1", args[0])
	assert.Equal(t, "2024-01-01 00:00:00", args[1])
	assert.Equal(t, "2024-02-01 00:00:00", args[2])
}
