package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/carbontoken/internal/workflow"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Run completed
	ExitFailure      = 1 // Run failed (provider unreachable, batch rejected, source stopped early, ...)
	ExitCommandError = 2 // Command error (bad flags, bad configuration, database unreachable)
)

// Error codes reported for command errors. Run failures report their
// workflow.RunErrorCode instead.
const (
	ErrCodeInvalidFlag = "INVALID_FLAG"
	ErrCodeConfig      = "CONFIG"
	ErrCodeDatabase    = "DATABASE"
	ErrCodeProvider    = "PROVIDER"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the JSON envelope of every command result.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // run report
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
}

// textReport is implemented by reports that have a human-readable form.
type textReport interface {
	Text() string
}

// Success outputs a run report in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	if r, ok := data.(textReport); ok {
		_, err := fmt.Fprint(f.Writer, r.Text())
		return err
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs an error, with the partial report when there is one.
func (f *OutputFormatter) Error(code, message, runID string, data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Data:   data,
			Error:  &CLIError{Code: code, Message: message, RunID: runID},
		})
	}

	if r, ok := data.(textReport); ok {
		fmt.Fprint(f.Writer, r.Text())
	}
	_, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	return err
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// outputCommandError reports a command error (exit code 2).
func outputCommandError(f *OutputFormatter, code string, err error) error {
	_ = f.Error(code, err.Error(), "", nil)
	return WrapExitError(ExitCommandError, code, err)
}

// outputRunError reports a failed run with its partial report. Invalid
// requests are command errors; everything else is a run failure.
func outputRunError(f *OutputFormatter, report any, err error) error {
	code := string(workflow.CodeOf(err))
	if code == "" {
		code = "RUN_FAILED"
	}
	var runID string
	var re *workflow.RunError
	if errors.As(err, &re) {
		runID = re.RunID
	}
	_ = f.Error(code, err.Error(), runID, report)

	exit := ExitFailure
	if workflow.CodeOf(err) == workflow.ErrCodeInvalidRequest {
		exit = ExitCommandError
	}
	return WrapExitError(exit, code, err)
}
