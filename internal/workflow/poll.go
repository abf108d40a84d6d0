package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/carbontoken/internal/ledger"
	"github.com/roach88/carbontoken/internal/provider"
	"github.com/roach88/carbontoken/internal/store"
)

// Poll runs one Status Poller pass over the queued entries of kind.
//
// Entries are visited in creation order with keyset paging, so entries
// resolved during the pass never shift later pages. An entry moves to
// success only through a conditional update on its queued status. Provider
// and ledger errors for one entry are logged and counted; the pass continues.
// A failure to list the queue ends the pass with a LEDGER_FAILED RunError.
func (w *Workflow) Poll(ctx context.Context, kind ledger.Kind) (report *PollReport, err error) {
	runID := w.runIDs.Generate()
	log := w.runLogger(runID, kind)
	start := w.now()

	report = &PollReport{RunID: runID, Kind: kind, StartedAt: start}

	defer func() {
		if r := recover(); r != nil {
			log.Error("update run panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = &RunError{Code: ErrCodePanic, Message: fmt.Sprint(r), RunID: runID}
		}
		report.FinishedAt = w.now()
		w.metrics.RunFinished(report.FinishedAt.Sub(start), err == nil, report.FinishedAt)
	}()

	if !kind.Valid() {
		return report, &RunError{Code: ErrCodeInvalidRequest, Message: fmt.Sprintf("unknown kind %q", kind), RunID: runID}
	}

	l := w.store.Ledger(kind)
	log.Info("update run started")

	var afterID int64
	for {
		if ctx.Err() != nil {
			return report, canceled(runID, ctx.Err())
		}

		entries, err := l.ListQueued(ctx, afterID, w.pageSize)
		if err != nil {
			if ctx.Err() != nil {
				return report, canceled(runID, ctx.Err())
			}
			log.Error("cannot list queued entries", zap.Int64("after_id", afterID), zap.Error(err))
			return report, &RunError{Code: ErrCodeLedgerFailed, Message: "cannot list queued entries", RunID: runID, Err: err}
		}

		for _, e := range entries {
			afterID = e.ID
			if err := w.resolve(ctx, log, l, e, report); err != nil {
				return report, err
			}
		}

		if len(entries) < w.pageSize {
			break
		}
	}

	log.Info("update run finished",
		zap.Int("checked", report.Checked),
		zap.Int("updated", report.Updated),
		zap.Int("pending", report.Pending),
		zap.Int("errors", report.Errors))
	return report, nil
}

// resolve looks up one queued entry and records its token when it resolved.
// Only cancellation is returned as an error.
func (w *Workflow) resolve(ctx context.Context, log *zap.Logger, l *store.Ledger, e ledger.Entry, report *PollReport) error {
	report.Checked++
	entryLog := log.With(zap.Int64("id", e.ID), zap.String("key", e.Key.ID()))

	status, err := w.provider.TokenStatus(ctx, e.NodeID, e.RequestUUID)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return canceled(report.RunID, ctx.Err())
	case errors.Is(err, provider.ErrNotFound):
		report.Pending++
		entryLog.Debug("issuance not known to the provider yet")
		return nil
	default:
		report.Errors++
		entryLog.Warn("token status lookup failed", zap.Error(err))
		return nil
	}

	tokenID, ok := status.Resolved()
	if !ok {
		report.Pending++
		entryLog.Debug("issuance still pending", zap.String("status", status.Status))
		return nil
	}

	updated, err := l.MarkSuccess(ctx, e.ID, tokenID)
	if err != nil {
		report.Errors++
		entryLog.Error("failed to record resolved token", zap.String("token_id", tokenID), zap.Error(err))
		return nil
	}
	if !updated {
		entryLog.Debug("entry no longer queued, left untouched")
		return nil
	}

	report.Updated++
	w.metrics.TokenResolved()
	entryLog.Info("token resolved", zap.String("token_id", tokenID))
	return nil
}
