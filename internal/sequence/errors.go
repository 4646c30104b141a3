package sequence

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Next after the registry has been closed.
var ErrClosed = errors.New("sequence: registry closed")

// ErrorCode categorizes errors that reach callers of Registry.Next.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates invalid dynamic parameters, an invalid
	// cache configuration or an unusable name. Detected before store access.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"

	// ErrCodeUnknownSequence indicates a fixed-mode name with no durable row.
	ErrCodeUnknownSequence ErrorCode = "UNKNOWN_SEQUENCE"

	// ErrCodeExhausted indicates the durable range is used up and the
	// sequence does not loop.
	ErrCodeExhausted ErrorCode = "EXHAUSTED"

	// ErrCodeStoreIntegrity indicates the durable row vanished or holds
	// values that break the row invariants.
	ErrCodeStoreIntegrity ErrorCode = "STORE_INTEGRITY"

	// ErrCodeStore indicates the store transaction itself failed
	// (connectivity, lock timeout). Wraps the driver error.
	ErrCodeStore ErrorCode = "STORE"
)

// Error is the error type returned by the registry.
type Error struct {
	Code ErrorCode

	// Name is the sequence name as the caller passed it (without the
	// dynamic namespace prefix). Empty for configuration errors that are not
	// tied to a name.
	Name string

	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Name != "" {
		msg = fmt.Sprintf("%s: %s (sequence=%s)", e.Code, e.Message, e.Name)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsConfigurationError reports whether err is a configuration error.
func IsConfigurationError(err error) bool { return hasCode(err, ErrCodeConfiguration) }

// IsUnknownSequenceError reports whether err is an unknown-sequence error.
func IsUnknownSequenceError(err error) bool { return hasCode(err, ErrCodeUnknownSequence) }

// IsExhaustedError reports whether err is an exhaustion error.
func IsExhaustedError(err error) bool { return hasCode(err, ErrCodeExhausted) }

// IsStoreIntegrityError reports whether err is a store integrity error.
func IsStoreIntegrityError(err error) bool { return hasCode(err, ErrCodeStoreIntegrity) }

// IsStoreError reports whether err is a failed store transaction.
func IsStoreError(err error) bool { return hasCode(err, ErrCodeStore) }

func configError(name, format string, args ...any) *Error {
	return &Error{Code: ErrCodeConfiguration, Name: name, Message: fmt.Sprintf(format, args...)}
}

func unknownSequenceError(name string) *Error {
	return &Error{
		Code:    ErrCodeUnknownSequence,
		Name:    name,
		Message: "no durable row for fixed-mode sequence",
	}
}

func exhaustedError(name string, max int64) *Error {
	return &Error{
		Code:    ErrCodeExhausted,
		Name:    name,
		Message: fmt.Sprintf("durable range used up at max=%d and loop is disabled", max),
	}
}

func integrityError(name, message string, cause error) *Error {
	return &Error{Code: ErrCodeStoreIntegrity, Name: name, Message: message, Err: cause}
}

func storeError(name, op string, cause error) *Error {
	return &Error{Code: ErrCodeStore, Name: name, Message: op + " failed", Err: cause}
}
