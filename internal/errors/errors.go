// Package errors provides structured error types for logexplain.
//
// Every fatal or locally recovered condition in the pipeline maps to an
// ExplainError carrying a machine-readable code. The wrapped cause is one of
// the sentinel errors below so callers can match with errors.Is.
//
// Error code ranges:
// - 1xxx: Configuration errors
// - 2xxx: Input errors
// - 5xxx: Completion (external API) errors
// - 9xxx: General errors
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error identifier.
type ErrorCode string

// Configuration error codes (1xxx)
const (
	ErrCodeConfigInvalid     ErrorCode = "EXPLAIN_1001"
	ErrCodeConfigMissing     ErrorCode = "EXPLAIN_1002"
	ErrCodeConfigValidation  ErrorCode = "EXPLAIN_1003"
	ErrCodeCredentialMissing ErrorCode = "EXPLAIN_1004"
)

// Input error codes (2xxx)
const (
	ErrCodeInputNotFound         ErrorCode = "EXPLAIN_2001"
	ErrCodeInputPermissionDenied ErrorCode = "EXPLAIN_2002"
	ErrCodeInputParseFailed      ErrorCode = "EXPLAIN_2003"
	ErrCodeInputReadFailed       ErrorCode = "EXPLAIN_2004"
	ErrCodeInputEmpty            ErrorCode = "EXPLAIN_2005"
)

// Completion error codes (5xxx)
const (
	ErrCodeCompletionConnection ErrorCode = "EXPLAIN_5001"
	ErrCodeCompletionTimeout    ErrorCode = "EXPLAIN_5002"
	ErrCodeCompletionAuth       ErrorCode = "EXPLAIN_5003"
	ErrCodeCompletionRateLimit  ErrorCode = "EXPLAIN_5004"
	ErrCodeCompletionMalformed  ErrorCode = "EXPLAIN_5005"
	ErrCodeCompletionFailed     ErrorCode = "EXPLAIN_5006"
)

// General error codes (9xxx)
const (
	ErrCodeUnknown ErrorCode = "EXPLAIN_9999"
)

// Process exit codes.
const (
	ExitOK                = 0
	ExitFailure           = 1
	ExitCredentialMissing = 2
)

// Sentinel errors for type checking with errors.Is()
var (
	// Configuration errors
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrConfigMissing     = errors.New("configuration not found")
	ErrConfigValidation  = errors.New("configuration validation failed")
	ErrCredentialMissing = errors.New("API credential not set")

	// Input errors
	ErrInputNotFound         = errors.New("input not found")
	ErrInputPermissionDenied = errors.New("permission denied")
	ErrInputParseFailed      = errors.New("log entry parsing failed")
	ErrInputReadFailed       = errors.New("input read failed")
	ErrNoInput               = errors.New("no log lines to analyze")

	// Completion errors
	ErrCompletionConnection = errors.New("completion endpoint unreachable")
	ErrCompletionTimeout    = errors.New("completion timed out")
	ErrCompletionAuth       = errors.New("completion authentication failed")
	ErrCompletionRateLimit  = errors.New("completion rate limited")
	ErrCompletionMalformed  = errors.New("malformed completion response")
	ErrCompletionFailed     = errors.New("completion request failed")
)

// ExplainError is the base error type with structured information.
type ExplainError struct {
	Code    ErrorCode
	Message string
	Context map[string]interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ExplainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ExplainError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *ExplainError) WithContext(key string, value interface{}) *ExplainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ToMap converts the error to a map for structured logging.
func (e *ExplainError) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
	}
	if len(e.Context) > 0 {
		m["context"] = e.Context
	}
	if e.Cause != nil {
		m["cause"] = e.Cause.Error()
	}
	return m
}

// NewExplainError creates a new ExplainError.
func NewExplainError(code ErrorCode, message string, cause error) *ExplainError {
	return &ExplainError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Configuration Error constructors

// NewConfigInvalidError creates a configuration invalid error.
func NewConfigInvalidError(message string, cause error) *ExplainError {
	if cause == nil {
		cause = ErrConfigInvalid
	}
	return NewExplainError(ErrCodeConfigInvalid, message, cause)
}

// NewConfigMissingError creates a configuration missing error.
func NewConfigMissingError(path string) *ExplainError {
	return NewExplainError(ErrCodeConfigMissing, fmt.Sprintf("configuration file not found: %s", path), ErrConfigMissing).
		WithContext("path", path)
}

// NewConfigValidationError creates a configuration validation error.
func NewConfigValidationError(field string, value interface{}, reason string) *ExplainError {
	return &ExplainError{
		Code:    ErrCodeConfigValidation,
		Message: fmt.Sprintf("validation failed for '%s': %s", field, reason),
		Cause:   ErrConfigValidation,
		Context: map[string]interface{}{
			"field":  field,
			"value":  fmt.Sprintf("%v", value),
			"reason": reason,
		},
	}
}

// NewCredentialMissingError reports that the API credential is not set.
func NewCredentialMissingError(envVar string) *ExplainError {
	return NewExplainError(ErrCodeCredentialMissing, fmt.Sprintf("%s environment variable not set", envVar), ErrCredentialMissing).
		WithContext("env_var", envVar)
}

// Input Error constructors

// NewInputNotFoundError creates a file not found error.
func NewInputNotFoundError(path string) *ExplainError {
	return NewExplainError(ErrCodeInputNotFound, fmt.Sprintf("file '%s' not found", path), ErrInputNotFound).
		WithContext("path", path)
}

// NewInputPermissionDeniedError creates a permission denied error.
func NewInputPermissionDeniedError(path string) *ExplainError {
	return NewExplainError(ErrCodeInputPermissionDenied, fmt.Sprintf("permission denied reading: %s", path), ErrInputPermissionDenied).
		WithContext("path", path)
}

// NewInputParseError creates a parse error for a single log line.
func NewInputParseError(line string, lineNumber int, reason string) *ExplainError {
	truncated := line
	if len(line) > 200 {
		truncated = line[:200] + "..."
	}
	return &ExplainError{
		Code:    ErrCodeInputParseFailed,
		Message: fmt.Sprintf("failed to parse log line %d: %s", lineNumber, reason),
		Cause:   ErrInputParseFailed,
		Context: map[string]interface{}{
			"line":        truncated,
			"line_number": lineNumber,
			"reason":      reason,
		},
	}
}

// NewInputReadError wraps an I/O failure while reading the input.
func NewInputReadError(source string, cause error) *ExplainError {
	return NewExplainError(ErrCodeInputReadFailed, fmt.Sprintf("failed to read %s", source), fmt.Errorf("%w: %v", ErrInputReadFailed, cause)).
		WithContext("source", source)
}

// NewNoInputError reports that no non-blank lines were available.
func NewNoInputError(source string) *ExplainError {
	return NewExplainError(ErrCodeInputEmpty, fmt.Sprintf("no log lines found in %s", source), ErrNoInput).
		WithContext("source", source)
}

// Completion Error constructors

// NewCompletionError creates a completion error of the given code.
// The cause chain carries both the taxonomy sentinel for the code and the
// original failure, so errors.Is matches either.
func NewCompletionError(code ErrorCode, model string, cause error) *ExplainError {
	sentinel := completionSentinel(code)
	wrapped := sentinel
	if cause != nil {
		wrapped = fmt.Errorf("%w: %w", sentinel, cause)
	}
	return &ExplainError{
		Code:    code,
		Message: fmt.Sprintf("completion request for model '%s' failed", model),
		Cause:   wrapped,
		Context: map[string]interface{}{
			"model": model,
		},
	}
}

func completionSentinel(code ErrorCode) error {
	switch code {
	case ErrCodeCompletionConnection:
		return ErrCompletionConnection
	case ErrCodeCompletionTimeout:
		return ErrCompletionTimeout
	case ErrCodeCompletionAuth:
		return ErrCompletionAuth
	case ErrCodeCompletionRateLimit:
		return ErrCompletionRateLimit
	case ErrCodeCompletionMalformed:
		return ErrCompletionMalformed
	default:
		return ErrCompletionFailed
	}
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var explainErr *ExplainError
	if errors.As(err, &explainErr) {
		return explainErr.Code
	}
	return ErrCodeUnknown
}

// IsNoInput reports whether err signals an empty qualifying input.
func IsNoInput(err error) bool {
	return errors.Is(err, ErrNoInput)
}

// ExitCode maps an error returned by the CLI to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil, IsNoInput(err):
		return ExitOK
	case errors.Is(err, ErrCredentialMissing):
		return ExitCredentialMissing
	default:
		return ExitFailure
	}
}
