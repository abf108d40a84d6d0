package harness

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/carbontoken/internal/ledger"
	"github.com/roach88/carbontoken/internal/provider"
	"github.com/roach88/carbontoken/internal/source"
	"github.com/roach88/carbontoken/internal/store"
	"github.com/roach88/carbontoken/internal/testutil"
	"github.com/roach88/carbontoken/internal/workflow"
)

// Epoch is the first instant of the harness clock. Every store or workflow
// timestamp advances it by one second.
var Epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Harness is the scenario execution engine.
// It runs scenarios with a deterministic clock and fixed run ids.
type Harness struct {
	store *store.Store
	fake  *testutil.FakeProvider
	wf    *workflow.Workflow
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh SQLite database under t.TempDir() and against
// its own fake provider, so scenarios never see each other's rows.
//
// Execution flow:
// 1. Create the database, the ERP tables and the ledger
// 2. Insert the ERP seed rows and the ledger seed rows
// 3. Execute steps, checking each step's expectation
// 4. Snapshot the received batches and the final ledger
// 5. Evaluate assertions
//
// Step expectation and assertion mismatches are recorded on the result. The
// returned error is reserved for failures of the harness itself.
func Run(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	h, err := newHarness(t, scenario)
	if err != nil {
		return nil, err
	}

	ctx := t.Context()
	if err := h.seed(t, ctx, scenario); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		outcome, err := h.executeStep(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		result.Steps = append(result.Steps, outcome)
		checkExpect(i, step.Expect, outcome, result)
	}

	for _, b := range h.fake.Batches() {
		result.Batches = append(result.Batches, b.IDs)
	}
	if err := h.snapshotLedger(ctx, result); err != nil {
		return nil, err
	}

	for _, e := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(e.Error())
	}
	return result, nil
}

func newHarness(t *testing.T, scenario *Scenario) (*Harness, error) {
	clock := testutil.NewSteppingClock(Epoch, time.Second)

	dir := t.TempDir()
	st, err := store.Open("sqlite3", filepath.Join(dir, "scenario.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario store: %w", err)
	}
	t.Cleanup(func() { st.Close() })
	st.WithClock(clock.Now)
	testutil.CreateERPTables(t, st.DB())

	fake := testutil.NewFakeProvider(t)
	log := zap.NewNop() // Suppress logs in scenarios
	client, err := provider.New(provider.Config{SubmitURL: fake.URL, StatusURL: fake.URL}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider client: %w", err)
	}

	runIDs := make([]string, len(scenario.Steps))
	for i := range runIDs {
		runIDs[i] = fmt.Sprintf("run-%d", i+1)
	}
	opts := []workflow.Option{
		workflow.WithClock(clock.Now),
		workflow.WithRunIDs(workflow.NewFixedGenerator(runIDs...)),
		workflow.WithScratchDir(dir),
		workflow.WithSkipFailed(scenario.Options.SkipFailed),
	}
	if scenario.Options.PageSize > 0 {
		opts = append(opts, workflow.WithPageSize(scenario.Options.PageSize))
	}
	if scenario.Options.IssuedFrom != "" {
		opts = append(opts, workflow.WithIssuedFrom(scenario.Options.IssuedFrom))
	}

	return &Harness{
		store: st,
		fake:  fake,
		wf:    workflow.New(st, client, log, opts...),
	}, nil
}

// seed inserts the scenario's ERP rows and ledger rows.
func (h *Harness) seed(t *testing.T, ctx context.Context, scenario *Scenario) error {
	db := h.store.DB()
	for _, a := range scenario.ERP.Addresses {
		testutil.InsertAddresses(t, db, testutil.PostalAddress{
			ContactMechID:      a.ID,
			Address1:           a.Address1,
			Address2:           a.Address2,
			City:               a.City,
			PostalCode:         a.PostalCode,
			CountryGeoID:       a.Country,
			StateProvinceGeoID: a.StateProvince,
		})
	}
	for _, s := range scenario.ERP.Segments {
		testutil.InsertSegments(t, db, testutil.ShipmentSegment{
			ShipmentID:   s.Shipment,
			SegmentID:    s.Segment,
			FacilityID:   s.Facility,
			Origin:       s.From,
			Destination:  s.To,
			Carrier:      s.Carrier,
			Method:       s.Method,
			Tracking:     s.Tracking,
			Weight:       s.Weight,
			WeightUOM:    s.WeightUOM,
			CreatedStamp: s.Created,
		})
	}
	for _, d := range scenario.ERP.Deliveries {
		testutil.InsertDeliveries(t, db, testutil.Delivery{
			DeliveryID: d.Delivery,
			Tracking:   d.Tracking,
			Date:       d.Date,
			Time:       d.Time,
		})
	}

	for i, row := range scenario.Ledger {
		kind, err := ledger.ParseKind(row.Kind)
		if err != nil {
			return fmt.Errorf("ledger[%d]: %w", i, err)
		}
		key, err := ledger.ParseKey(kind, row.ID)
		if err != nil {
			return fmt.Errorf("ledger[%d]: %w", i, err)
		}
		r := ledger.Result{
			Key:         key,
			Status:      ledger.Status(row.Status),
			TokenID:     row.TokenID,
			NodeID:      row.NodeID,
			RequestUUID: row.RequestUUID,
			Error:       row.Error,
		}
		if _, err := h.store.Ledger(kind).Save(ctx, r); err != nil {
			return fmt.Errorf("ledger[%d]: %w", i, err)
		}
	}
	return nil
}

// executeStep applies the provider mode of step and runs its action.
func (h *Harness) executeStep(ctx context.Context, step Step) (StepOutcome, error) {
	switch step.Provider {
	case ProviderIssue:
		h.fake.RejectBatches("")
		h.fake.SetResults(testutil.IssueTokens)
	case ProviderQueue:
		h.fake.RejectBatches("")
		h.fake.SetResults(testutil.QueueTokens)
	case ProviderFail:
		h.fake.RejectBatches("")
		h.fake.SetResults(testutil.FailTokens)
	case ProviderReject:
		h.fake.RejectBatches(step.RejectMsg)
	}

	switch {
	case step.Issue != nil:
		return h.executeIssue(ctx, step.Issue)
	case step.Update != nil:
		return h.executeUpdate(ctx, step.Update)
	default:
		for _, r := range step.Resolve {
			h.fake.Resolve(r.Node, r.UUID, r.Token)
		}
		return StepOutcome{Op: OpResolve}, nil
	}
}

func (h *Harness) executeIssue(ctx context.Context, s *IssueStep) (StepOutcome, error) {
	kind, err := ledger.ParseKind(s.Kind)
	if err != nil {
		return StepOutcome{}, err
	}
	window, err := source.ParseWindow(s.From, s.Thru)
	if err != nil {
		return StepOutcome{}, err
	}

	report, err := h.wf.Issue(ctx, workflow.IssueRequest{
		Kind:       kind,
		Window:     window,
		FacilityID: s.Facility,
		IssuedTo:   s.IssuedTo,
	})
	outcome := StepOutcome{Op: OpIssue, RunID: report.RunID}
	if err := runErrorCode(err, &outcome); err != nil {
		return StepOutcome{}, err
	}

	counts := map[string]int{
		"records":      report.Records,
		"keys":         report.Keys,
		"submitted":    report.Submitted,
		"success":      report.Results.Success,
		"queued":       report.Results.Queued,
		"error":        report.Results.Failed,
		"invalid":      report.Results.Invalid,
		"write_errors": report.Results.WriteErrors,
		"missing":      report.Results.Missing,
	}
	for reason, n := range report.Skipped {
		counts["skipped."+reason] = n
	}
	outcome.Counts = nonZero(counts)
	return outcome, nil
}

func (h *Harness) executeUpdate(ctx context.Context, s *UpdateStep) (StepOutcome, error) {
	kind, err := ledger.ParseKind(s.Kind)
	if err != nil {
		return StepOutcome{}, err
	}

	report, err := h.wf.Poll(ctx, kind)
	outcome := StepOutcome{Op: OpUpdate, RunID: report.RunID}
	if err := runErrorCode(err, &outcome); err != nil {
		return StepOutcome{}, err
	}

	outcome.Counts = nonZero(map[string]int{
		"checked": report.Checked,
		"updated": report.Updated,
		"pending": report.Pending,
		"errors":  report.Errors,
	})
	return outcome, nil
}

// runErrorCode records the code of a RunError on outcome. Any other error is
// returned as a harness failure.
func runErrorCode(err error, outcome *StepOutcome) error {
	if err == nil {
		return nil
	}
	var re *workflow.RunError
	if !errors.As(err, &re) {
		return fmt.Errorf("%s run returned a non-run error: %w", outcome.Op, err)
	}
	outcome.Error = string(re.Code)
	return nil
}

// snapshotLedger copies every ledger row into result.
func (h *Harness) snapshotLedger(ctx context.Context, result *Result) error {
	for _, kind := range ledger.Kinds {
		entries, err := h.store.Ledger(kind).List(ctx)
		if err != nil {
			return fmt.Errorf("failed to read %s ledger: %w", kind, err)
		}
		for _, e := range entries {
			result.Ledger = append(result.Ledger, LedgerRow{
				Kind:        string(kind),
				ID:          e.Key.ID(),
				Status:      string(e.Status),
				TokenID:     e.TokenID,
				NodeID:      e.NodeID,
				RequestUUID: e.RequestUUID,
				Error:       e.Error,
			})
		}
	}
	return nil
}

// checkExpect compares a step outcome with its expectation.
func checkExpect(index int, expect *StepExpect, outcome StepOutcome, result *Result) {
	wantErr := ""
	if expect != nil {
		wantErr = expect.Error
	}
	if outcome.Error != wantErr {
		result.AddError(fmt.Sprintf("steps[%d]: expected error %q, got %q", index, wantErr, outcome.Error))
	}
	if expect == nil {
		return
	}

	names := make([]string, 0, len(expect.Counts))
	for name := range expect.Counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if got := outcome.Counts[name]; got != expect.Counts[name] {
			result.AddError(fmt.Sprintf("steps[%d]: expected %s=%d, got %d", index, name, expect.Counts[name], got))
		}
	}
}

func nonZero(counts map[string]int) map[string]int {
	for name, n := range counts {
		if n == 0 {
			delete(counts, name)
		}
	}
	if len(counts) == 0 {
		return nil
	}
	return counts
}
