// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Invalid parameters, windows, aggregations and graphs
//   - Not found errors (200-299): Unknown strategies, params, indicators, instruments
//   - Calendar errors (300-399): Date correction and shifting failures
//   - Market data errors (400-499): Remote fetch and cache refill failures
//   - Evaluation errors (500-599): Per-cell indicator failures
//   - Output errors (600-699): Materialized table and manifest failures
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidParameter, "invalid parameter value")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeParamNotFound, "param %s not found", name)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeCacheQueryFailed, "failed to count cached rows", originalErr)
//
//	// Attach the failing node
//	err = errors.WithNode("param:system/close", err)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeIncompleteUpstreamData) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join wraps the standard errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsNotFound reports whether err carries one of the not found codes (200-299).
func IsNotFound(err error) bool {
	code := GetCode(err)

	return code >= 200 && code < 300
}

// IsInvalidWindow reports whether err is a window failure: an explicit invalid window
// or a calendar correction/shift failure.
func IsInvalidWindow(err error) bool {
	code := GetCode(err)

	return code == ErrCodeInvalidWindow || (code >= 300 && code < 400)
}

// NodeError attaches the identity of the graph node that failed to a structural error.
type NodeError struct {
	Node string
	Err  error
}

// WithNode wraps err with the failing node's identity. A nil err stays nil and an error
// that already names a node keeps the innermost one.
func WithNode(node string, err error) error {
	if err == nil {
		return nil
	}

	var nodeErr *NodeError
	if errors.As(err, &nodeErr) {
		return err
	}

	return &NodeError{Node: node, Err: err}
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

// Unwrap returns the wrapped error.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// FailingNode returns the node identity attached to err, if any.
func FailingNode(err error) (string, bool) {
	var nodeErr *NodeError
	if errors.As(err, &nodeErr) {
		return nodeErr.Node, true
	}

	return "", false
}

// InsufficientDataError represents an error when there is not enough data
// for a calculation (e.g., a trailing window shorter than the aggregation needs).
type InsufficientDataError struct {
	Required int    // Minimum data points required
	Actual   int    // Actual data points available
	Symbol   string // Optional: symbol context
	Message  string // Human-readable message
}

// NewInsufficientDataError creates a new InsufficientDataError.
func NewInsufficientDataError(required, actual int, symbol, message string) *InsufficientDataError {
	return &InsufficientDataError{
		Required: required,
		Actual:   actual,
		Symbol:   symbol,
		Message:  message,
	}
}

// NewInsufficientDataErrorf creates a new InsufficientDataError with a formatted message.
func NewInsufficientDataErrorf(required, actual int, symbol, format string, args ...any) *InsufficientDataError {
	return &InsufficientDataError{
		Required: required,
		Actual:   actual,
		Symbol:   symbol,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *InsufficientDataError) Error() string {
	return e.Message
}

// IsInsufficientDataError checks if an error is an InsufficientDataError.
// It uses errors.As to check the error chain.
func IsInsufficientDataError(err error) bool {
	var insufficientErr *InsufficientDataError

	return errors.As(err, &insufficientErr)
}
