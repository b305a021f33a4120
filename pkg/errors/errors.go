// Package errors provides structured error types for pixelshuffle.
//
// Every failure the engine can report is an authoring or configuration
// error, so codes describe what the caller got wrong rather than what
// went wrong at runtime:
//   - INVALID_*: rule, image or path validation failures
//   - FILE_NOT_FOUND: missing input or config file
//   - LENGTH_INVARIANT: the shuffler produced a sequence of the wrong length
//   - INTERNAL_*: unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidChunkSize, "rule %d: chunk size must be positive", depth)
//	if errors.Is(err, errors.ErrCodeInvalidChunkSize) {
//	    // Handle authoring error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInvalidImage, origErr, "decode %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput       Code = "INVALID_INPUT"
	ErrCodeInvalidRule        Code = "INVALID_RULE"
	ErrCodeInvalidChunkSize   Code = "INVALID_CHUNK_SIZE"
	ErrCodeInvalidPermutation Code = "INVALID_PERMUTATION"
	ErrCodeInvalidFormat      Code = "INVALID_FORMAT"
	ErrCodeInvalidImage       Code = "INVALID_IMAGE"
	ErrCodeInvalidPath        Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeFileNotFound Code = "FILE_NOT_FOUND"

	// Consistency errors
	ErrCodeLengthInvariant Code = "LENGTH_INVARIANT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsAuthoring reports whether err is a rule-authoring error, i.e. one the
// caller fixes by editing the rule set rather than by retrying.
func IsAuthoring(err error) bool {
	switch GetCode(err) {
	case ErrCodeInvalidRule, ErrCodeInvalidChunkSize, ErrCodeInvalidPermutation:
		return true
	}
	return false
}
