package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/carbontoken/internal/ledger"
)

// Save upserts a reconciled result by its Tracking Key and reports whether a
// new row was inserted.
//
// The insert uses ON CONFLICT (key) DO NOTHING inside a transaction; when the
// key already exists the row's status, token id, node id, request uuid, error
// and updated stamp are overwritten in the same transaction. Applying the same
// result twice therefore leaves exactly one row with the same content, and
// applying a different result for the same key updates that row.
func (l *Ledger) Save(ctx context.Context, r ledger.Result) (inserted bool, err error) {
	if err := r.Validate(); err != nil {
		return false, fmt.Errorf("save token: %w", err)
	}
	keyArgs, err := l.keyArgs(r.Key)
	if err != nil {
		return false, fmt.Errorf("save token: %w", err)
	}

	now := l.s.now().UTC()

	tx, err := l.s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("save token: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	insertArgs := append(append([]any{}, keyArgs...),
		string(r.Status), nullString(r.TokenID), nullString(r.NodeID), nullString(r.RequestUUID),
		nullString(r.Error), now, now)

	result, err := tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s
		(%s, status, token_id, node_id, emissions_request_uuid, error, created_stamp, last_updated_stamp)
		VALUES (%s)
		ON CONFLICT (%s) DO NOTHING
	`, l.t.name, joinColumns(l.t.keyColumns), placeholders(1, len(insertArgs)), joinColumns(l.t.keyColumns)),
		insertArgs...)
	if err != nil {
		return false, fmt.Errorf("save token: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save token: rows affected: %w", err)
	}

	if rowsAffected > 0 {
		inserted = true
	} else {
		// Conflict - the key already has a row, update it in place
		updateArgs := append([]any{
			string(r.Status), nullString(r.TokenID), nullString(r.NodeID), nullString(r.RequestUUID),
			nullString(r.Error), now,
		}, keyArgs...)

		_, err = tx.ExecContext(ctx, fmt.Sprintf(`
			UPDATE %s
			SET status = $1,
			token_id = $2,
			node_id = $3,
			emissions_request_uuid = $4,
			error = $5,
			last_updated_stamp = $6
			WHERE %s
		`, l.t.name, l.t.keyWhere(7)), updateArgs...)
		if err != nil {
			return false, fmt.Errorf("save token: update: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("save token: commit: %w", err)
	}

	return inserted, nil
}

// MarkSuccess resolves a queued row to success with tokenID and clears its
// error. Rows that are no longer queued are left untouched; the return value
// reports whether the row was updated.
func (l *Ledger) MarkSuccess(ctx context.Context, id int64, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, fmt.Errorf("mark success: row %d: empty token id", id)
	}

	result, err := l.s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s
		SET status = $1,
		token_id = $2,
		error = NULL,
		last_updated_stamp = $3
		WHERE id = $4 AND status = $5
	`, l.t.name),
		string(ledger.StatusSuccess), tokenID, l.s.now().UTC(), id, string(ledger.StatusQueued))
	if err != nil {
		return false, fmt.Errorf("mark success: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark success: rows affected: %w", err)
	}
	return n > 0, nil
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}
