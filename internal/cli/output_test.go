package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/carbontoken/internal/workflow"
)

type stubReport struct{ N int }

func (r stubReport) Text() string { return fmt.Sprintf("n: %d\n", r.N) }

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(stubReport{N: 3}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"N": 3.0}, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error("BATCH_REJECTED", "issuer not allowed", "run-1", stubReport{N: 2}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "BATCH_REJECTED", resp.Error.Code)
	assert.Equal(t, "issuer not allowed", resp.Error.Message)
	assert.Equal(t, "run-1", resp.Error.RunID)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(stubReport{N: 3}))
	assert.Equal(t, "n: 3\n", buf.String())

	buf.Reset()
	require.NoError(t, formatter.Success("plain"))
	assert.Equal(t, "plain\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error("SUBMIT_FAILED", "connection refused", "run-1", stubReport{N: 1}))
	assert.Equal(t, "n: 1\nError [SUBMIT_FAILED]: connection refused\n", buf.String())
}

func TestOutputRunError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{"run failure", &workflow.RunError{Code: workflow.ErrCodeSubmitFailed, Message: "down", RunID: "r1"}, "SUBMIT_FAILED", ExitFailure},
		{"invalid request", &workflow.RunError{Code: workflow.ErrCodeInvalidRequest, Message: "bad"}, "INVALID_REQUEST", ExitCommandError},
		{"plain error", errors.New("boom"), "RUN_FAILED", ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			err := outputRunError(&OutputFormatter{Format: "text", Writer: buf}, nil, tt.err)

			assert.Equal(t, tt.wantExit, GetExitCode(err))
			assert.ErrorIs(t, err, tt.err)
			assert.Contains(t, buf.String(), "Error ["+tt.wantCode+"]")
		})
	}
}

func TestExitError(t *testing.T) {
	cause := errors.New("no such file")

	err := WrapExitError(ExitCommandError, "failed to load configuration", cause)
	assert.Equal(t, "failed to load configuration: no such file", err.Error())
	assert.ErrorIs(t, err, cause)

	plain := NewExitError(ExitFailure, "run failed")
	assert.Equal(t, "run failed", plain.Error())
	assert.Nil(t, plain.Unwrap())
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("other")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "bad flag"))))
}
