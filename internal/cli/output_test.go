package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seqlease/internal/sequence"
	"github.com/roach88/seqlease/internal/store"
	"github.com/roach88/seqlease/internal/store/memory"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(nextResult{Name: "orders", Values: []string{"1", "2"}})
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   nextResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"1", "2"}, resp.Data.Values)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(ErrCodeExhausted, "sequence used up", nil)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeExhausted, resp.Error.Code)
	assert.Equal(t, "sequence used up", resp.Error.Message)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	require.NoError(t, formatter.Success("plain value"))
	require.NoError(t, formatter.Success(nextResult{Values: []string{"7", "8"}}))
	assert.Equal(t, "plain value\n7\n8\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	err := formatter.Error(ErrCodeStore, "store down", map[string]string{"driver": "sqlite"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E003]: store down")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("allocated %d values", 3)

			assert.Empty(t, out.String(), "diagnostics must not corrupt JSON output")
			if tt.wantLog {
				assert.Contains(t, errOut.String(), "allocated 3 values")
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "bad config", errors.New("inner")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
}

func TestOutputError_ExitCodes(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrCodeConfig, ExitCommandError},
		{ErrCodeInvalid, ExitCommandError},
		{ErrCodeStore, ExitFailure},
		{ErrCodeExhausted, ExitFailure},
		{ErrCodeNotFound, ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			buf := &bytes.Buffer{}
			err := outputError(&OutputFormatter{Format: "text", Writer: buf}, tt.code, "doing thing", errors.New("cause"))

			assert.Equal(t, tt.want, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.code)
			assert.Contains(t, buf.String(), "doing thing: cause")
		})
	}
}

func TestClassify(t *testing.T) {
	reg, err := sequence.NewRegistry(memory.New(), sequence.WithLogger(discardLogger()))
	require.NoError(t, err)
	defer reg.Close()

	_, unknown := reg.Next(t.Context(), sequence.Fixed("missing"))
	_, invalid := reg.Next(t.Context(), sequence.Request{Name: "x", Dynamic: true, Min: 5, Max: 5, Step: 1, Count: 1})

	assert.Equal(t, ErrCodeNotFound, classify(unknown))
	assert.Equal(t, ErrCodeInvalid, classify(invalid))
	assert.Equal(t, ErrCodeNotFound, classify(fmt.Errorf("get: %w", store.ErrNotFound)))
	assert.Equal(t, ErrCodeGeneric, classify(errors.New("other")))
}
