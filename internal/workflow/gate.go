package workflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/carbontoken/internal/ledger"
)

// IsTokenized reports whether key already holds a token and returns it.
//
// A real tracking number is looked up across every ledger table; the
// NoTracking placeholder only matches its own key. Rows that are queued or
// failed carry no token and do not block resubmission. A ledger read error is
// logged and the key is treated as not tokenized.
func (w *Workflow) IsTokenized(ctx context.Context, kind ledger.Kind, key ledger.Key) (string, bool) {
	tokenID, ok, err := w.store.Ledger(kind).FindToken(ctx, key)
	if err != nil {
		w.log.Warn("dedup lookup failed, treating key as new",
			zap.String("kind", string(kind)),
			zap.String("key", key.ID()),
			zap.Error(err))
		return "", false
	}
	return tokenID, ok
}

// hasFailed reports whether key has a failed entry in the kind's ledger.
// Only consulted when failed keys are configured not to be retried.
func (w *Workflow) hasFailed(ctx context.Context, kind ledger.Kind, key ledger.Key) bool {
	e, ok, err := w.store.Ledger(kind).Get(ctx, key)
	if err != nil {
		w.log.Warn("failed-entry lookup failed, treating key as new",
			zap.String("kind", string(kind)),
			zap.String("key", key.ID()),
			zap.Error(err))
		return false
	}
	return ok && e.Status == ledger.StatusFailed
}
