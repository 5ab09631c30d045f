// Package apperrors provides a single structured error type used across the
// strategist core so that every step failure carries a stable type, an HTTP
// status mapping, and a safe external message.
package apperrors

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorType classifies an AppError. The workflow engine maps these
// directly onto the run-level error taxonomy in the core specification:
// ProviderError/ParseError/ValidationError/StorageError/ConflictError/
// TimeoutError/CancelledError.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeProvider   ErrorType = "provider"
	ErrorTypeParse      ErrorType = "parse"
	ErrorTypeStorage    ErrorType = "storage"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeCancelled  ErrorType = "cancelled"
	ErrorTypeInternal   ErrorType = "internal"
)

var statusByType = map[ErrorType]int{
	ErrorTypeValidation: http.StatusBadRequest,
	ErrorTypeProvider:   http.StatusBadGateway,
	ErrorTypeParse:      http.StatusUnprocessableEntity,
	ErrorTypeStorage:    http.StatusInternalServerError,
	ErrorTypeConflict:   http.StatusConflict,
	ErrorTypeTimeout:    http.StatusGatewayTimeout,
	ErrorTypeCancelled:  http.StatusGone,
	ErrorTypeInternal:   http.StatusInternalServerError,
}

// safeMessageByType holds messages safe to return to a caller outside the
// process; ErrorTypeValidation is intentionally absent because validation
// messages are already safe to pass through verbatim.
var safeMessageByType = map[ErrorType]string{
	ErrorTypeProvider:  "The language model provider is currently unavailable",
	ErrorTypeParse:     "The model response could not be interpreted",
	ErrorTypeStorage:   "An internal error occurred",
	ErrorTypeConflict:  "This run has already moved past the requested checkpoint",
	ErrorTypeTimeout:   "The operation timed out",
	ErrorTypeCancelled: "The run was cancelled",
	ErrorTypeInternal:  "An internal error occurred",
}

// AppError is the one error type the core raises. Type drives both the HTTP
// status and whether the run-level policy in spec.md §7 treats it as
// recoverable (absorbed by the orchestrator) or fatal (fails the run).
type AppError struct {
	Type       ErrorType
	Message    string
	Details    string
	StatusCode int
	Cause      error
}

func New(t ErrorType, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: statusByType[t],
	}
}

func Newf(t ErrorType, format string, args ...interface{}) *AppError {
	return New(t, fmt.Sprintf(format, args...))
}

func Wrap(cause error, t ErrorType, message string) *AppError {
	err := New(t, message)
	err.Cause = cause
	return err
}

func Wrapf(cause error, t ErrorType, format string, args ...interface{}) *AppError {
	return Wrap(cause, t, fmt.Sprintf(format, args...))
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Details != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Details)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithDetailsf(format string, args ...interface{}) *AppError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// Predefined constructors mirroring the taxonomy's common cases.

func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message)
}

func NewProviderError(message string) *AppError {
	return New(ErrorTypeProvider, message)
}

func NewParseError(message string) *AppError {
	return New(ErrorTypeParse, message)
}

func NewStorageError(operation string, cause error) *AppError {
	return Wrapf(cause, ErrorTypeStorage, "storage operation failed: %s", operation)
}

func NewConflictError(message string) *AppError {
	return New(ErrorTypeConflict, message)
}

func NewTimeoutError(operation string) *AppError {
	return Newf(ErrorTypeTimeout, "operation timed out: %s", operation)
}

func NewCancelledError(runID string) *AppError {
	return Newf(ErrorTypeCancelled, "run cancelled: %s", runID)
}

// IsType reports whether err is an *AppError of the given type.
func IsType(err error, t ErrorType) bool {
	ae, ok := err.(*AppError)
	return ok && ae.Type == t
}

// GetType returns the AppError's type, or ErrorTypeInternal for any other
// error (including nil, defensively).
func GetType(err error) ErrorType {
	if ae, ok := err.(*AppError); ok {
		return ae.Type
	}
	return ErrorTypeInternal
}

// GetStatusCode returns the mapped HTTP status, defaulting to 500.
func GetStatusCode(err error) int {
	if ae, ok := err.(*AppError); ok {
		return ae.StatusCode
	}
	return http.StatusInternalServerError
}

// SafeErrorMessage returns a message safe to surface outside the process.
// Validation errors pass their message through verbatim since they are
// already phrased for an external reader.
func SafeErrorMessage(err error) string {
	ae, ok := err.(*AppError)
	if !ok {
		return "An unexpected error occurred"
	}
	if ae.Type == ErrorTypeValidation {
		return ae.Message
	}
	if msg, ok := safeMessageByType[ae.Type]; ok {
		return msg
	}
	return "An internal error occurred"
}

// LogFields renders err as a structured logging map.
func LogFields(err error) map[string]interface{} {
	fields := map[string]interface{}{"error": err.Error()}
	ae, ok := err.(*AppError)
	if !ok {
		return fields
	}
	fields["error_type"] = string(ae.Type)
	fields["status_code"] = ae.StatusCode
	if ae.Details != "" {
		fields["error_details"] = ae.Details
	}
	if ae.Cause != nil {
		fields["underlying_error"] = ae.Cause.Error()
	}
	return fields
}

// Chain folds a list of errors (ignoring nils) into one error whose message
// concatenates each with " -> ". Returns nil if every error is nil, and the
// single error unchanged if exactly one is non-nil.
func Chain(errs ...error) error {
	var nonNil []error
	for _, e := range errs {
		if e != nil {
			nonNil = append(nonNil, e)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	default:
		parts := make([]string, len(nonNil))
		for i, e := range nonNil {
			parts[i] = e.Error()
		}
		return fmt.Errorf("%s", strings.Join(parts, " -> "))
	}
}
