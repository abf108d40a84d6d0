package workflow

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roach88/carbontoken/internal/ledger"
)

// IssueReport summarizes one issue run.
type IssueReport struct {
	RunID      string          `json:"run_id"`
	Kind       ledger.Kind     `json:"kind"`
	From       time.Time       `json:"from"`
	Thru       time.Time       `json:"thru"`
	Records    int             `json:"records"`
	Keys       int             `json:"keys"`
	Skipped    map[string]int  `json:"skipped"`
	Submitted  int             `json:"submitted"`
	Scratch    string          `json:"scratch,omitempty"`
	Results    ReconcileReport `json:"results"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

func (r *IssueReport) skip(reason string) {
	r.Skipped[reason]++
}

// Text renders the report for terminal output.
func (r *IssueReport) Text() string {
	var b strings.Builder
	line(&b, "run", r.RunID)
	line(&b, "kind", string(r.Kind))
	line(&b, "window", r.From.Format(windowLayout)+" - "+r.Thru.Format(windowLayout))
	line(&b, "records", r.Records)
	line(&b, "keys", r.Keys)
	line(&b, "skipped", skippedText(r.Skipped))
	line(&b, "submitted", r.Submitted)
	line(&b, "success", r.Results.Success)
	line(&b, "queued", r.Results.Queued)
	line(&b, "error", r.Results.Failed)
	if r.Results.Invalid > 0 || r.Results.WriteErrors > 0 || r.Results.Missing > 0 {
		line(&b, "invalid", r.Results.Invalid)
		line(&b, "write errors", r.Results.WriteErrors)
		line(&b, "missing", r.Results.Missing)
	}
	return b.String()
}

func skippedText(skipped map[string]int) string {
	if len(skipped) == 0 {
		return "none"
	}
	reasons := make([]string, 0, len(skipped))
	for reason := range skipped {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	parts := make([]string, len(reasons))
	for i, reason := range reasons {
		parts[i] = fmt.Sprintf("%s=%d", reason, skipped[reason])
	}
	return strings.Join(parts, " ")
}

// ReconcileReport counts the outcome of one reconciliation pass.
type ReconcileReport struct {
	Success     int `json:"success"`
	Queued      int `json:"queued"`
	Failed      int `json:"error"`
	Invalid     int `json:"invalid"`
	WriteErrors int `json:"write_errors"`
	Missing     int `json:"missing"`
}

// Written is the number of ledger rows the pass wrote.
func (r ReconcileReport) Written() int {
	return r.Success + r.Queued + r.Failed
}

// PollReport summarizes one update run.
type PollReport struct {
	RunID      string      `json:"run_id"`
	Kind       ledger.Kind `json:"kind"`
	Checked    int         `json:"checked"`
	Updated    int         `json:"updated"`
	Pending    int         `json:"pending"`
	Errors     int         `json:"errors"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}

// Text renders the report for terminal output.
func (r *PollReport) Text() string {
	var b strings.Builder
	line(&b, "run", r.RunID)
	line(&b, "kind", string(r.Kind))
	line(&b, "checked", r.Checked)
	line(&b, "updated", r.Updated)
	line(&b, "pending", r.Pending)
	line(&b, "errors", r.Errors)
	return b.String()
}

const windowLayout = "2006-01-02 15:04:05"

func line(b *strings.Builder, label string, value any) {
	fmt.Fprintf(b, "%-13s %v\n", label+":", value)
}
