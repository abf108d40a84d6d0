package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/carbontoken/internal/ledger"
)

// table describes one ledger table: its name and Tracking Key columns
// (parent columns followed by tracking_number).
type table struct {
	name       string
	keyColumns []string
}

var tables = map[ledger.Kind]table{
	ledger.KindShipment: {
		name:       "shipment_route_segment_token",
		keyColumns: []string{"shipment_id", "shipment_route_segment_id", "tracking_number"},
	},
	ledger.KindDelivery: {
		name:       "q_v_delivery_token",
		keyColumns: []string{"delivery_id", "tracking_number"},
	},
}

// entryColumns lists the columns scanEntry expects, in order.
func (t table) entryColumns() string {
	cols := append([]string{"id"}, t.keyColumns...)
	cols = append(cols, "status", "token_id", "node_id", "emissions_request_uuid", "error",
		"created_stamp", "last_updated_stamp")
	return strings.Join(cols, ", ")
}

// keyWhere renders "col1 = $n AND col2 = $n+1 ..." starting at placeholder start.
func (t table) keyWhere(start int) string {
	conds := make([]string, len(t.keyColumns))
	for i, col := range t.keyColumns {
		conds[i] = fmt.Sprintf("%s = $%d", col, start+i)
	}
	return strings.Join(conds, " AND ")
}

// placeholders renders "$start, $start+1, ..." for n arguments.
func placeholders(start, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(ph, ", ")
}

// Ledger is the Token Ledger table of one Kind.
type Ledger struct {
	s    *Store
	kind ledger.Kind
	t    table
}

// Kind reports which ledger table this view is bound to.
func (l *Ledger) Kind() ledger.Kind {
	return l.kind
}

// keyArgs returns the key column values in column order.
func (l *Ledger) keyArgs(key ledger.Key) ([]any, error) {
	if len(key.Parent) != l.kind.ParentParts() || key.Tracking == "" {
		return nil, fmt.Errorf("%w: key %q does not fit %s ledger", ledger.ErrMalformedID, key.ID(), l.kind)
	}
	args := make([]any, 0, len(l.t.keyColumns))
	for _, p := range key.Parent {
		args = append(args, p)
	}
	return append(args, key.Tracking), nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry reads one row selected with entryColumns.
func (l *Ledger) scanEntry(row rowScanner) (ledger.Entry, error) {
	var e ledger.Entry
	keyVals := make([]string, len(l.t.keyColumns))
	var status string
	var tokenID, nodeID, requestUUID, errMsg sql.NullString

	dest := []any{&e.ID}
	for i := range keyVals {
		dest = append(dest, &keyVals[i])
	}
	dest = append(dest, &status, &tokenID, &nodeID, &requestUUID, &errMsg, &e.CreatedAt, &e.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		return ledger.Entry{}, err
	}

	last := len(keyVals) - 1
	e.Kind = l.kind
	e.Key = ledger.Key{Parent: keyVals[:last], Tracking: keyVals[last]}
	e.Status = ledger.Status(status)
	e.TokenID = tokenID.String
	e.NodeID = nodeID.String
	e.RequestUUID = requestUUID.String
	e.Error = errMsg.String
	return e, nil
}

// nullString maps the empty string to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
