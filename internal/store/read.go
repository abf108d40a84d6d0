package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/carbontoken/internal/ledger"
)

// Get returns the ledger entry for key, if any.
func (l *Ledger) Get(ctx context.Context, key ledger.Key) (ledger.Entry, bool, error) {
	args, err := l.keyArgs(key)
	if err != nil {
		return ledger.Entry{}, false, fmt.Errorf("get token: %w", err)
	}

	row := l.s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s
	`, l.t.entryColumns(), l.t.name, l.t.keyWhere(1)), args...)

	e, err := l.scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Entry{}, false, nil
	}
	if err != nil {
		return ledger.Entry{}, false, fmt.Errorf("get token: %w", err)
	}
	return e, true, nil
}

// FindToken returns an existing token id for key.
//
// A key with a real tracking number is looked up by tracking number across
// every ledger table, so a parcel tokenized through one variant is not
// tokenized again through the other. A key with the NoTracking placeholder is
// only looked up by its exact key in this Kind's table.
func (l *Ledger) FindToken(ctx context.Context, key ledger.Key) (string, bool, error) {
	var query string
	var args []any

	if key.HasTracking() {
		query = trackingTokenQuery
		args = []any{key.Tracking}
	} else {
		keyArgs, err := l.keyArgs(key)
		if err != nil {
			return "", false, fmt.Errorf("find token: %w", err)
		}
		query = fmt.Sprintf(`
			SELECT token_id
			FROM %s
			WHERE %s AND token_id IS NOT NULL
		`, l.t.name, l.t.keyWhere(1))
		args = keyArgs
	}

	var tokenID string
	err := l.s.db.QueryRowContext(ctx, query, args...).Scan(&tokenID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find token: %w", err)
	}
	return tokenID, true, nil
}

// trackingTokenQuery unions every ledger table, in Kinds order.
var trackingTokenQuery = func() string {
	parts := make([]string, 0, len(ledger.Kinds))
	for _, k := range ledger.Kinds {
		parts = append(parts, fmt.Sprintf(
			"SELECT token_id FROM %s WHERE tracking_number = $1 AND token_id IS NOT NULL", tables[k].name))
	}
	return strings.Join(parts, "\nUNION\n") + "\nLIMIT 1"
}()

// ListQueued returns up to limit queued entries that carry both a node id and
// a request uuid, with id greater than afterID, in creation order.
// Pass the last returned id as afterID to fetch the next page.
//
// Returns an empty slice (not nil) when nothing is left.
func (l *Ledger) ListQueued(ctx context.Context, afterID int64, limit int) ([]ledger.Entry, error) {
	rows, err := l.s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE status = $1
		AND node_id IS NOT NULL
		AND emissions_request_uuid IS NOT NULL
		AND id > $2
		ORDER BY id ASC
		LIMIT $3
	`, l.t.entryColumns(), l.t.name), string(ledger.StatusQueued), afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued: %w", err)
	}
	return l.collect(rows, "list queued")
}

// List returns every entry of the table in creation order.
func (l *Ledger) List(ctx context.Context) ([]ledger.Entry, error) {
	rows, err := l.s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM %s
		ORDER BY id ASC
	`, l.t.entryColumns(), l.t.name))
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return l.collect(rows, "list tokens")
}

func (l *Ledger) collect(rows *sql.Rows, op string) ([]ledger.Entry, error) {
	defer rows.Close()

	entries := []ledger.Entry{}
	for rows.Next() {
		e, err := l.scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return entries, nil
}
