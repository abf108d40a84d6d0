package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/carbontoken/internal/ledger"
	"github.com/roach88/carbontoken/internal/source"
)

// Scenario defines an end-to-end workflow scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// ERP holds the source rows inserted before the first step.
	ERP ERPSeed `yaml:"erp"`

	// Ledger holds ledger rows written before the first step, e.g. tokens
	// issued by an earlier deployment.
	Ledger []LedgerSeed `yaml:"ledger,omitempty"`

	// Options tunes the workflow under test.
	Options Options `yaml:"options,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final ledger and the received batches.
	Assertions []Assertion `yaml:"assertions"`
}

// ERPSeed is the source data of a scenario.
type ERPSeed struct {
	Addresses  []AddressRow  `yaml:"addresses,omitempty"`
	Segments   []SegmentRow  `yaml:"segments,omitempty"`
	Deliveries []DeliveryRow `yaml:"deliveries,omitempty"`
}

// AddressRow is one postal_address row.
type AddressRow struct {
	ID            string `yaml:"id"`
	Address1      string `yaml:"address1,omitempty"`
	Address2      string `yaml:"address2,omitempty"`
	City          string `yaml:"city,omitempty"`
	PostalCode    string `yaml:"postal_code,omitempty"`
	Country       string `yaml:"country,omitempty"`
	StateProvince string `yaml:"state_province,omitempty"`
}

// SegmentRow is one shipment_route_segment row.
type SegmentRow struct {
	Shipment  string `yaml:"shipment"`
	Segment   string `yaml:"segment"`
	Facility  string `yaml:"facility"`
	From      string `yaml:"from"` // address id
	To        string `yaml:"to"`   // address id
	Carrier   string `yaml:"carrier,omitempty"`
	Method    string `yaml:"method,omitempty"`
	Tracking  string `yaml:"tracking,omitempty"`
	Weight    string `yaml:"weight,omitempty"`
	WeightUOM string `yaml:"weight_uom,omitempty"`
	Created   string `yaml:"created"` // YYYY-MM-DD HH:MM:SS
}

// DeliveryRow is one q_v_subscription_file_delivery row.
type DeliveryRow struct {
	Delivery string `yaml:"delivery"`
	Tracking string `yaml:"tracking,omitempty"`
	Date     string `yaml:"date"` // YYYY-MM-DD
	Time     string `yaml:"time"` // HH:MM:SS
}

// LedgerSeed is one pre-existing ledger row.
type LedgerSeed struct {
	Kind        string `yaml:"kind"`
	ID          string `yaml:"id"` // activity id
	Status      string `yaml:"status"`
	TokenID     string `yaml:"token_id,omitempty"`
	NodeID      string `yaml:"node_id,omitempty"`
	RequestUUID string `yaml:"request_uuid,omitempty"`
	Error       string `yaml:"error,omitempty"`
}

// Options tunes the workflow under test.
type Options struct {
	PageSize   int    `yaml:"page_size,omitempty"`
	IssuedFrom string `yaml:"issued_from,omitempty"`
	SkipFailed bool   `yaml:"skip_failed,omitempty"`
}

// Step is one scenario step. Exactly one of Issue, Update and Resolve is set.
type Step struct {
	// Provider sets how the fake provider answers batches from this step on:
	// issue, queue, fail or reject. Empty keeps the previous mode.
	Provider string `yaml:"provider,omitempty"`

	// RejectMsg is the failure message used in reject mode.
	RejectMsg string `yaml:"reject_msg,omitempty"`

	Issue   *IssueStep   `yaml:"issue,omitempty"`
	Update  *UpdateStep  `yaml:"update,omitempty"`
	Resolve []Resolution `yaml:"resolve,omitempty"`

	// Expect checks the step's outcome. If nil, the step must succeed.
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// IssueStep runs one issue workflow.
type IssueStep struct {
	Kind     string `yaml:"kind"`
	From     string `yaml:"from"`
	Thru     string `yaml:"thru"`
	Facility string `yaml:"facility,omitempty"`
	IssuedTo string `yaml:"issued_to"`
}

// UpdateStep runs one Status Poller pass.
type UpdateStep struct {
	Kind string `yaml:"kind"`
}

// Resolution makes a queued request resolve on the fake provider. An empty
// token registers the request as still pending.
type Resolution struct {
	Node  string `yaml:"node"`
	UUID  string `yaml:"uuid"`
	Token string `yaml:"token,omitempty"`
}

// StepExpect specifies the expected outcome of a step.
type StepExpect struct {
	// Error is the expected RunError code; empty means no error.
	Error string `yaml:"error,omitempty"`

	// Counts is a subset match against the step's counts
	// (see StepOutcome.Counts for the names).
	Counts map[string]int `yaml:"counts,omitempty"`
}

// Assertion validates the final ledger or the batches the provider received.
type Assertion struct {
	// Type specifies the assertion type:
	// - "ledger_row": the ledger row for Kind/ID matches Expect (subset match)
	// - "ledger_count": the Kind ledger holds exactly Count rows
	// - "batch_count": the provider received exactly Count batches
	// - "batch_ids": batch number Batch carried exactly IDs, in order
	Type string `yaml:"type"`

	Kind   string            `yaml:"kind,omitempty"`
	ID     string            `yaml:"id,omitempty"`
	Expect map[string]string `yaml:"expect,omitempty"`
	Count  int               `yaml:"count,omitempty"`
	Batch  int               `yaml:"batch,omitempty"`
	IDs    []string          `yaml:"ids,omitempty"`
}

// Assertion type constants.
const (
	AssertLedgerRow   = "ledger_row"
	AssertLedgerCount = "ledger_count"
	AssertBatchCount  = "batch_count"
	AssertBatchIDs    = "batch_ids"
)

// Provider modes.
const (
	ProviderIssue  = "issue"
	ProviderQueue  = "queue"
	ProviderFail   = "fail"
	ProviderReject = "reject"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, row := range s.Ledger {
		kind, err := ledger.ParseKind(row.Kind)
		if err != nil {
			return fmt.Errorf("ledger[%d]: %w", i, err)
		}
		if _, err := ledger.ParseKey(kind, row.ID); err != nil {
			return fmt.Errorf("ledger[%d]: %w", i, err)
		}
		if !ledger.Status(row.Status).Valid() {
			return fmt.Errorf("ledger[%d]: invalid status %q", i, row.Status)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateStep checks that a step does exactly one thing.
func validateStep(index int, s *Step) error {
	actions := 0
	if s.Issue != nil {
		actions++
		if _, err := ledger.ParseKind(s.Issue.Kind); err != nil {
			return fmt.Errorf("steps[%d].issue: %w", index, err)
		}
		if _, err := source.ParseWindow(s.Issue.From, s.Issue.Thru); err != nil {
			return fmt.Errorf("steps[%d].issue: %w", index, err)
		}
	}
	if s.Update != nil {
		actions++
		if _, err := ledger.ParseKind(s.Update.Kind); err != nil {
			return fmt.Errorf("steps[%d].update: %w", index, err)
		}
	}
	if len(s.Resolve) > 0 {
		actions++
	}
	if actions != 1 {
		return fmt.Errorf("steps[%d]: exactly one of issue, update and resolve is required", index)
	}

	switch s.Provider {
	case "", ProviderIssue, ProviderQueue, ProviderFail:
	case ProviderReject:
		if s.RejectMsg == "" {
			return fmt.Errorf("steps[%d]: reject_msg is required for provider reject", index)
		}
	default:
		return fmt.Errorf("steps[%d]: unknown provider mode %q", index, s.Provider)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertLedgerRow:
		if a.Kind == "" || a.ID == "" {
			return fmt.Errorf("assertions[%d]: kind and id are required for ledger_row", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for ledger_row", index)
		}
	case AssertLedgerCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for ledger_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for ledger_count", index)
		}
	case AssertBatchCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for batch_count", index)
		}
	case AssertBatchIDs:
		if a.Batch < 0 {
			return fmt.Errorf("assertions[%d]: batch must be non-negative for batch_ids", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
