package source

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/carbontoken/internal/ledger"
	"github.com/roach88/carbontoken/internal/store"
)

// DefaultPageSize is the number of records fetched per page.
const DefaultPageSize = 1000

// Querier is the subset of *sql.DB the cursor needs.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Cursor pages through the records of one Query.
type Cursor struct {
	q        Querier
	dialect  store.Dialect
	query    Query
	pageSize int
	log      *zap.Logger

	offset int
	done   bool
	err    error
}

// Open returns a cursor over the records selected by query. No statement runs
// until the first Next. A pageSize <= 0 uses DefaultPageSize.
func Open(q Querier, dialect store.Dialect, query Query, pageSize int, log *zap.Logger) *Cursor {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Cursor{
		q:        q,
		dialect:  dialect,
		query:    query,
		pageSize: pageSize,
		log:      log.With(zap.String("kind", string(query.Kind))),
	}
	if err := query.Validate(); err != nil {
		c.fail(err)
	}
	return c
}

// Next returns the next page of records. An empty page means the sequence is
// exhausted, either because every record was read or because a query failed.
func (c *Cursor) Next(ctx context.Context) []Record {
	if c.done {
		return nil
	}

	stmt, args := statement(c.dialect, c.query, c.pageSize, c.offset)
	rows, err := c.q.QueryContext(ctx, stmt, args...)
	if err != nil {
		c.fail(fmt.Errorf("query %s records: %w", c.query.Kind, err))
		return nil
	}
	defer rows.Close()

	page := make([]Record, 0, c.pageSize)
	for rows.Next() {
		rec, err := c.scan(rows)
		if err != nil {
			c.fail(fmt.Errorf("scan %s record: %w", c.query.Kind, err))
			return page
		}
		page = append(page, rec)
	}
	if err := rows.Err(); err != nil {
		c.fail(fmt.Errorf("iterate %s records: %w", c.query.Kind, err))
		return page
	}

	c.offset += len(page)
	if len(page) < c.pageSize {
		c.done = true
	}
	c.log.Debug("fetched page", zap.Int("records", len(page)), zap.Int("offset", c.offset))
	return page
}

// Err returns the first error that ended the sequence, if any.
func (c *Cursor) Err() error {
	return c.err
}

// Close ends the sequence. Later calls to Next return nothing.
func (c *Cursor) Close() error {
	c.done = true
	return nil
}

func (c *Cursor) fail(err error) {
	c.log.Error("record source failed", zap.Error(err))
	if c.err == nil {
		c.err = err
	}
	c.done = true
}

func (c *Cursor) scan(rows *sql.Rows) (Record, error) {
	rec := Record{Kind: c.query.Kind}

	if c.query.Kind == ledger.KindDelivery {
		var tracking sql.NullString
		if err := rows.Scan(&rec.DeliveryID, &tracking); err != nil {
			return Record{}, err
		}
		rec.TrackingNumbers = tracking.String
		return rec, nil
	}

	var carrier, method, tracking, uom sql.NullString
	var o, d [6]sql.NullString
	dest := []any{
		&rec.ShipmentID, &rec.SegmentID,
		&carrier, &method,
		&tracking, &rec.BillingWeight, &uom,
	}
	for i := range o {
		dest = append(dest, &o[i])
	}
	for i := range d {
		dest = append(dest, &d[i])
	}
	if err := rows.Scan(dest...); err != nil {
		return Record{}, err
	}

	rec.CarrierPartyID = carrier.String
	rec.ShipmentMethodTypeID = method.String
	rec.TrackingNumbers = tracking.String
	rec.BillingWeightUOM = uom.String
	rec.Origin = address(o)
	rec.Destination = address(d)
	return rec, nil
}

func address(cols [6]sql.NullString) Address {
	return Address{
		Address1:           cols[0].String,
		Address2:           cols[1].String,
		City:               cols[2].String,
		PostalCode:         cols[3].String,
		CountryGeoID:       cols[4].String,
		StateProvinceGeoID: cols[5].String,
	}
}
