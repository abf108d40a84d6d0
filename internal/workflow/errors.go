package workflow

import (
	"errors"
	"fmt"
)

// RunError reports why a run did not complete cleanly.
//
// Run errors are reported after the run has released its resources. Counts
// gathered before the failure are still returned in the run report.
type RunError struct {
	// Code identifies the error category.
	Code RunErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run.
	RunID string

	// Err is the underlying cause, if any.
	Err error
}

// RunErrorCode categorizes run errors.
type RunErrorCode string

const (
	// ErrCodeInvalidRequest indicates the run was asked for something it
	// cannot do. Nothing was read or written.
	ErrCodeInvalidRequest RunErrorCode = "INVALID_REQUEST"

	// ErrCodeSourceFailed indicates the record source stopped early. The run
	// still submitted what it had read.
	ErrCodeSourceFailed RunErrorCode = "SOURCE_FAILED"

	// ErrCodeScratchFailed indicates the batch file could not be written.
	ErrCodeScratchFailed RunErrorCode = "SCRATCH_FAILED"

	// ErrCodeSubmitFailed indicates the provider could not be reached or its
	// answer could not be decoded. Nothing was written to the ledger.
	ErrCodeSubmitFailed RunErrorCode = "SUBMIT_FAILED"

	// ErrCodeBatchRejected indicates the provider rejected the whole batch.
	ErrCodeBatchRejected RunErrorCode = "BATCH_REJECTED"

	// ErrCodeLedgerFailed indicates the ledger could not be scanned.
	ErrCodeLedgerFailed RunErrorCode = "LEDGER_FAILED"

	// ErrCodeCanceled indicates the run context was canceled.
	ErrCodeCanceled RunErrorCode = "CANCELED"

	// ErrCodePanic indicates an unexpected panic inside the run.
	ErrCodePanic RunErrorCode = "PANIC"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RunID != "" {
		msg += fmt.Sprintf(" (run=%s)", e.RunID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RunError) Unwrap() error {
	return e.Err
}

// CodeOf returns the RunErrorCode of err, or "" when err is not a RunError.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) RunErrorCode {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
