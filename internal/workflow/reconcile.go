package workflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/carbontoken/internal/ledger"
	"github.com/roach88/carbontoken/internal/provider"
)

// Reconcile upserts every per-item result into the kind's ledger.
//
// Items whose id does not parse into a Tracking Key are counted as invalid
// and skipped. A write error is logged and counted; the pass continues.
func (w *Workflow) Reconcile(ctx context.Context, kind ledger.Kind, items []provider.ResultItem) ReconcileReport {
	return w.reconcile(ctx, w.log.With(zap.String("kind", string(kind))), kind, items)
}

func (w *Workflow) reconcile(ctx context.Context, log *zap.Logger, kind ledger.Kind, items []provider.ResultItem) ReconcileReport {
	var report ReconcileReport
	l := w.store.Ledger(kind)

	for _, item := range items {
		key, err := ledger.ParseKey(kind, item.ID)
		if err != nil {
			report.Invalid++
			log.Error("cannot map result to a tracking key", zap.String("id", item.ID), zap.Error(err))
			continue
		}

		result := resultFor(key, item)
		if _, err := l.Save(ctx, result); err != nil {
			report.WriteErrors++
			log.Error("failed to record result",
				zap.String("id", item.ID),
				zap.String("status", string(result.Status)),
				zap.Error(err))
			continue
		}

		switch result.Status {
		case ledger.StatusSuccess:
			report.Success++
		case ledger.StatusQueued:
			report.Queued++
			if result.NodeID == "" || result.RequestUUID == "" {
				log.Warn("queued result without correlation, it cannot be polled", zap.String("id", item.ID))
			}
		case ledger.StatusFailed:
			report.Failed++
			log.Warn("token not issued", zap.String("id", item.ID), zap.String("error", result.Error))
		}
		w.metrics.Result(string(result.Status))
	}

	log.Info("results reconciled",
		zap.Int("success", report.Success),
		zap.Int("queued", report.Queued),
		zap.Int("error", report.Failed),
		zap.Int("invalid", report.Invalid),
		zap.Int("write_errors", report.WriteErrors))
	return report
}

// resultFor classifies one provider item.
func resultFor(key ledger.Key, item provider.ResultItem) ledger.Result {
	switch {
	case item.Queued():
		return ledger.Queued(key, item.NodeID, item.EmissionsRequestUUID)
	case item.TokenID != "":
		return ledger.Succeeded(key, item.TokenID, item.NodeID, item.EmissionsRequestUUID)
	default:
		return ledger.Failed(key, item.Error)
	}
}
