package harness

// Step operations recorded in a StepOutcome.
const (
	OpIssue   = "issue"
	OpUpdate  = "update"
	OpResolve = "resolve"
)

// StepOutcome is what one scenario step did.
type StepOutcome struct {
	Op    string `json:"op"`
	RunID string `json:"run_id,omitempty"`

	// Error is the RunError code the step ended with, empty on success.
	Error string `json:"error,omitempty"`

	// Counts holds the non-zero report counters of the step. Issue steps use
	// records, keys, submitted, success, queued, error, invalid,
	// write_errors, missing and skipped.<reason>; update steps use checked,
	// updated, pending and errors.
	Counts map[string]int `json:"counts,omitempty"`
}

// LedgerRow is the comparable form of one ledger entry.
type LedgerRow struct {
	Kind        string `json:"kind"`
	ID          string `json:"id"`
	Status      string `json:"status"`
	TokenID     string `json:"token_id,omitempty"`
	NodeID      string `json:"node_id,omitempty"`
	RequestUUID string `json:"request_uuid,omitempty"`
	Error       string `json:"error,omitempty"`
}

// field returns the row value named by an assertion key.
func (r LedgerRow) field(name string) (string, bool) {
	switch name {
	case "kind":
		return r.Kind, true
	case "id":
		return r.ID, true
	case "status":
		return r.Status, true
	case "token_id":
		return r.TokenID, true
	case "node_id":
		return r.NodeID, true
	case "request_uuid":
		return r.RequestUUID, true
	case "error":
		return r.Error, true
	}
	return "", false
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if every step expectation and assertion matched.
	Pass bool `json:"pass"`

	// Steps holds one outcome per scenario step, in order.
	Steps []StepOutcome `json:"steps"`

	// Batches holds the activity ids of every batch the provider received.
	Batches [][]string `json:"batches"`

	// Ledger holds the final ledger rows, shipments first, each in creation
	// order.
	Ledger []LedgerRow `json:"ledger"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Steps:   []StepOutcome{},
		Batches: [][]string{},
		Ledger:  []LedgerRow{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// row returns the ledger row for kind and id.
func (r *Result) row(kind, id string) (LedgerRow, bool) {
	for _, row := range r.Ledger {
		if row.Kind == kind && row.ID == id {
			return row, true
		}
	}
	return LedgerRow{}, false
}
