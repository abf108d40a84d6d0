package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/carbontoken/internal/activity"
	"github.com/roach88/carbontoken/internal/ledger"
	"github.com/roach88/carbontoken/internal/metrics"
	"github.com/roach88/carbontoken/internal/provider"
	"github.com/roach88/carbontoken/internal/source"
)

// IssueRequest selects the records of one issue run.
type IssueRequest struct {
	Kind       ledger.Kind
	Window     source.Window
	FacilityID string // required for shipments
	IssuedTo   string
}

// Validate checks the request before any I/O happens.
func (r IssueRequest) Validate() error {
	if err := (source.Query{Kind: r.Kind, Window: r.Window, FacilityID: r.FacilityID}).Validate(); err != nil {
		return err
	}
	if r.IssuedTo == "" {
		return errors.New("issued-to address is required")
	}
	return nil
}

// Issue tokenizes every eligible Tracking Key of the request's window.
//
// The run reads the whole window, then submits one batch and reconciles the
// answer. A source error ends the read early; what was read is still
// submitted and the run returns a SOURCE_FAILED RunError afterwards. The
// returned report is never nil and holds the counts gathered up to the point
// of failure.
func (w *Workflow) Issue(ctx context.Context, req IssueRequest) (report *IssueReport, err error) {
	runID := w.runIDs.Generate()
	log := w.runLogger(runID, req.Kind)
	start := w.now()

	report = &IssueReport{
		RunID:     runID,
		Kind:      req.Kind,
		From:      req.Window.From,
		Thru:      req.Window.Thru,
		Skipped:   map[string]int{},
		StartedAt: start,
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("issue run panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = &RunError{Code: ErrCodePanic, Message: fmt.Sprint(r), RunID: runID}
		}
		report.FinishedAt = w.now()
		w.metrics.RunFinished(report.FinishedAt.Sub(start), err == nil, report.FinishedAt)
	}()

	if err := req.Validate(); err != nil {
		return report, &RunError{Code: ErrCodeInvalidRequest, Message: "invalid issue request", RunID: runID, Err: err}
	}

	log.Info("issue run started",
		zap.Time("from", req.Window.From),
		zap.Time("thru", req.Window.Thru),
		zap.String("facility_id", req.FacilityID))

	docs, sourceErr := w.collect(ctx, log, req, report)
	if ctx.Err() != nil {
		return report, canceled(runID, ctx.Err())
	}

	if len(docs) == 0 {
		log.Info("nothing to tokenize")
		return report, sourceErr
	}

	report.Scratch = w.ScratchPath(req.Kind)
	if err := (activity.Batch{Activities: docs}).WriteFile(report.Scratch); err != nil {
		log.Error("failed to write batch file", zap.String("path", report.Scratch), zap.Error(err))
		return report, &RunError{Code: ErrCodeScratchFailed, Message: "cannot write batch file", RunID: runID, Err: err}
	}

	report.Submitted = len(docs)
	w.metrics.ActivitiesSubmitted(len(docs))
	log.Info("submitting batch", zap.Int("activities", len(docs)), zap.String("path", report.Scratch))

	resp, err := w.provider.Tokenize(ctx, provider.Submission{
		IssuedTo:   req.IssuedTo,
		IssuedFrom: w.issuedFrom,
		Path:       report.Scratch,
	})
	if err != nil {
		if ctx.Err() != nil {
			return report, canceled(runID, ctx.Err())
		}
		log.Error("tokenization request failed", zap.Error(err))
		return report, &RunError{Code: ErrCodeSubmitFailed, Message: "tokenization request failed", RunID: runID, Err: err}
	}
	if resp.Failure != nil {
		log.Error("batch rejected", zap.String("status", resp.Failure.Status), zap.String("msg", resp.Failure.Msg))
		return report, &RunError{Code: ErrCodeBatchRejected, Message: resp.Failure.Msg, RunID: runID}
	}

	report.Results = w.reconcile(ctx, log, req.Kind, resp.Results)
	report.Results.Missing = missing(docs, resp.Results)
	if report.Results.Missing > 0 {
		log.Warn("provider returned no result for some activities", zap.Int("missing", report.Results.Missing))
	}

	log.Info("issue run finished",
		zap.Int("records", report.Records),
		zap.Int("submitted", report.Submitted),
		zap.Int("success", report.Results.Success),
		zap.Int("queued", report.Results.Queued),
		zap.Int("error", report.Results.Failed))
	return report, sourceErr
}

// collect pages through the source and returns the documents of every
// eligible key. The returned error is a SOURCE_FAILED RunError when the source
// stopped early.
func (w *Workflow) collect(ctx context.Context, log *zap.Logger, req IssueRequest, report *IssueReport) ([]activity.Document, error) {
	cur := source.Open(w.store.DB(), w.store.Dialect(), source.Query{
		Kind:       req.Kind,
		Window:     req.Window,
		FacilityID: req.FacilityID,
	}, w.pageSize, log)
	defer cur.Close()

	seen := map[string]struct{}{}
	var docs []activity.Document
	for ctx.Err() == nil {
		page := cur.Next(ctx)
		if len(page) == 0 {
			break
		}
		report.Records += len(page)
		w.metrics.RecordsScanned(len(page))

		for _, rec := range page {
			for _, tracking := range w.trackingNumbers(log, rec, report) {
				key := rec.Key(tracking)
				if err := key.Validate(); err != nil {
					// The provider echoes this id; it must split back into the same key.
					log.Warn("malformed tracking key", zap.String("key", key.ID()), zap.Error(err))
					report.skip(metrics.SkipMalformed)
					w.metrics.KeySkipped(metrics.SkipMalformed)
					continue
				}
				if !w.eligible(ctx, log, req.Kind, key, seen, report) {
					continue
				}
				docs = append(docs, activity.Map(rec, tracking, req.Window))
			}
		}
	}

	if err := cur.Err(); err != nil && ctx.Err() == nil {
		return docs, &RunError{Code: ErrCodeSourceFailed, Message: "record source stopped early", RunID: report.RunID, Err: err}
	}
	return docs, nil
}

// trackingNumbers splits and validates the tracking field of rec. A shipment
// without any tracking number yields the NoTracking placeholder.
func (w *Workflow) trackingNumbers(log *zap.Logger, rec source.Record, report *IssueReport) []string {
	parts := activity.SplitTracking(rec.TrackingNumbers)
	if parts == nil {
		if rec.Kind == ledger.KindShipment {
			return []string{ledger.NoTracking}
		}
		log.Warn("record has no tracking number", zap.Strings("parent", rec.Parent()))
		report.skip(metrics.SkipNoTracking)
		w.metrics.KeySkipped(metrics.SkipNoTracking)
		return nil
	}

	valid := make([]string, 0, len(parts))
	for _, tracking := range parts {
		err := activity.ValidateTracking(tracking)
		switch {
		case err == nil:
			valid = append(valid, tracking)
			continue
		case errors.Is(err, activity.ErrTrackingEmpty):
			log.Warn("empty tracking number", zap.String("raw", rec.TrackingNumbers))
			report.skip(metrics.SkipEmpty)
			w.metrics.KeySkipped(metrics.SkipEmpty)
		default:
			log.Warn("malformed tracking number", zap.String("tracking", tracking), zap.Error(err))
			report.skip(metrics.SkipMalformed)
			w.metrics.KeySkipped(metrics.SkipMalformed)
		}
	}
	return valid
}

// eligible applies the in-run duplicate check and the dedup gate to key.
func (w *Workflow) eligible(ctx context.Context, log *zap.Logger, kind ledger.Kind, key ledger.Key, seen map[string]struct{}, report *IssueReport) bool {
	report.Keys++

	// A real tracking number is submitted once per run whatever its parent.
	dedupKey := key.Tracking
	if !key.HasTracking() {
		dedupKey = key.ID()
	}
	if _, dup := seen[dedupKey]; dup {
		log.Debug("tracking number already in this batch", zap.String("key", key.ID()))
		report.skip(metrics.SkipDuplicate)
		w.metrics.KeySkipped(metrics.SkipDuplicate)
		return false
	}
	seen[dedupKey] = struct{}{}

	if tokenID, ok := w.IsTokenized(ctx, kind, key); ok {
		log.Warn("already tokenized", zap.String("key", key.ID()), zap.String("token_id", tokenID))
		report.skip(metrics.SkipTokenized)
		w.metrics.KeySkipped(metrics.SkipTokenized)
		return false
	}
	if w.skipFailed && w.hasFailed(ctx, kind, key) {
		log.Warn("previous issuance failed, not retrying", zap.String("key", key.ID()))
		report.skip(metrics.SkipFailed)
		w.metrics.KeySkipped(metrics.SkipFailed)
		return false
	}
	return true
}

// missing counts submitted documents the provider returned no item for.
func missing(docs []activity.Document, items []provider.ResultItem) int {
	echoed := make(map[string]struct{}, len(items))
	for _, item := range items {
		echoed[item.ID] = struct{}{}
	}
	n := 0
	for _, d := range docs {
		if _, ok := echoed[d.ID]; !ok {
			n++
		}
	}
	return n
}

func canceled(runID string, err error) error {
	return &RunError{Code: ErrCodeCanceled, Message: "run canceled", RunID: runID, Err: err}
}
