package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/seqlease/internal/sequence"
	"github.com/roach88/seqlease/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Allocation or store failure (exhausted, unknown sequence, store down)
	ExitCommandError = 2 // Command error (bad flags, bad config, invalid definition)
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric   = "E001" // Generic/unknown error
	ErrCodeConfig    = "E002" // Config file or flag error
	ErrCodeStore     = "E003" // Store unreachable or transaction failed
	ErrCodeNotFound  = "E004" // No durable row for the name
	ErrCodeInvalid   = "E005" // Invalid sequence definition or parameters
	ErrCodeExhausted = "E006" // Non-looping sequence used up
	ErrCodeIntegrity = "E007" // Durable row vanished or is corrupt
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
// Returns ExitFailure (1) if the error is not an ExitError.
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
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E002", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
// In text mode data is printed with fmt.Fprintln unless it implements
// textWriter.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	if tw, ok := data.(textWriter); ok {
		return tw.writeText(f.Writer)
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// textWriter is implemented by results with a multi-line text rendering.
type textWriter interface {
	writeText(w io.Writer) error
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// outputError prints err with code and returns the matching ExitError.
// Config and definition problems exit with ExitCommandError; everything
// else with ExitFailure.
func outputError(f *OutputFormatter, code, context string, err error) error {
	msg := fmt.Sprintf("%s: %v", context, err)
	_ = f.Error(code, msg, nil)

	exit := ExitFailure
	if code == ErrCodeConfig || code == ErrCodeInvalid {
		exit = ExitCommandError
	}
	return WrapExitError(exit, fmt.Sprintf("[%s] %s", code, context), err)
}

// classify maps an allocation or store error to a CLI error code.
func classify(err error) string {
	switch {
	case sequence.IsConfigurationError(err):
		return ErrCodeInvalid
	case sequence.IsUnknownSequenceError(err), errors.Is(err, store.ErrNotFound):
		return ErrCodeNotFound
	case sequence.IsExhaustedError(err):
		return ErrCodeExhausted
	case sequence.IsStoreIntegrityError(err):
		return ErrCodeIntegrity
	case sequence.IsStoreError(err):
		return ErrCodeStore
	}
	return ErrCodeGeneric
}
