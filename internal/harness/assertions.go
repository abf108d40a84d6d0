package harness

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the final ledger to help debug the failure.
type AssertionError struct {
	Type     string      // Assertion type for categorization
	Expected string      // Human-readable expected outcome
	Actual   string      // Human-readable actual outcome
	Ledger   []LedgerRow // Final ledger for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nLedger:\n")
	if len(e.Ledger) == 0 {
		fmt.Fprintf(&buf, "  (empty)\n")
	}
	for _, row := range e.Ledger {
		fmt.Fprintf(&buf, "  %s %s %s", row.Kind, row.ID, row.Status)
		if row.TokenID != "" {
			fmt.Fprintf(&buf, " token=%s", row.TokenID)
		}
		if row.Error != "" {
			fmt.Fprintf(&buf, " error=%q", row.Error)
		}
		buf.WriteString("\n")
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failures, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []*AssertionError {
	var failures []*AssertionError
	for _, a := range assertions {
		var err *AssertionError
		switch a.Type {
		case AssertLedgerRow:
			err = assertLedgerRow(result, a)
		case AssertLedgerCount:
			err = assertLedgerCount(result, a)
		case AssertBatchCount:
			err = assertBatchCount(result, a)
		case AssertBatchIDs:
			err = assertBatchIDs(result, a)
		default:
			err = &AssertionError{
				Type:     a.Type,
				Expected: "known assertion type",
				Actual:   fmt.Sprintf("unknown assertion type %q", a.Type),
			}
		}
		if err != nil {
			err.Ledger = result.Ledger
			failures = append(failures, err)
		}
	}
	return failures
}

// assertLedgerRow checks that the row for kind/id exists and that every
// expected field matches (subset match). An expected empty string matches a
// NULL column.
func assertLedgerRow(result *Result, a Assertion) *AssertionError {
	row, ok := result.row(a.Kind, a.ID)
	if !ok {
		return &AssertionError{
			Type:     AssertLedgerRow,
			Expected: fmt.Sprintf("%s row %s", a.Kind, a.ID),
			Actual:   "no such row",
		}
	}

	fields := make([]string, 0, len(a.Expect))
	for name := range a.Expect {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	for _, name := range fields {
		got, known := row.field(name)
		if !known {
			return &AssertionError{
				Type:     AssertLedgerRow,
				Expected: fmt.Sprintf("a ledger column, got %q", name),
				Actual:   "unknown column",
			}
		}
		if got != a.Expect[name] {
			return &AssertionError{
				Type:     AssertLedgerRow,
				Expected: fmt.Sprintf("%s row %s with %s=%q", a.Kind, a.ID, name, a.Expect[name]),
				Actual:   fmt.Sprintf("%s=%q", name, got),
			}
		}
	}
	return nil
}

func assertLedgerCount(result *Result, a Assertion) *AssertionError {
	count := 0
	for _, row := range result.Ledger {
		if row.Kind == a.Kind {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertLedgerCount,
			Expected: fmt.Sprintf("%d %s rows", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d rows", count),
		}
	}
	return nil
}

func assertBatchCount(result *Result, a Assertion) *AssertionError {
	if len(result.Batches) != a.Count {
		return &AssertionError{
			Type:     AssertBatchCount,
			Expected: fmt.Sprintf("%d batches", a.Count),
			Actual:   fmt.Sprintf("%d batches", len(result.Batches)),
		}
	}
	return nil
}

// assertBatchIDs checks the ids of one batch, in submission order. Batches
// are numbered from 0.
func assertBatchIDs(result *Result, a Assertion) *AssertionError {
	if a.Batch >= len(result.Batches) {
		return &AssertionError{
			Type:     AssertBatchIDs,
			Expected: fmt.Sprintf("batch %d with ids %v", a.Batch, a.IDs),
			Actual:   fmt.Sprintf("only %d batches received", len(result.Batches)),
		}
	}
	got := result.Batches[a.Batch]
	if !slices.Equal(got, a.IDs) {
		return &AssertionError{
			Type:     AssertBatchIDs,
			Expected: fmt.Sprintf("batch %d with ids %v", a.Batch, a.IDs),
			Actual:   fmt.Sprintf("ids %v", got),
		}
	}
	return nil
}
