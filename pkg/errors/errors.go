// Package errors provides code-based domain errors. Services return these so
// transport layers can translate outcomes into HTTP statuses without string
// matching.
package errors

import (
	"errors"
	"net/http"
)

// Code classifies a domain failure.
type Code string

const (
	// CodeBadRequest marks validation failures and malformed identifiers.
	CodeBadRequest Code = "bad_request"
	// CodeNotFound marks references that do not resolve to a record.
	CodeNotFound Code = "not_found"
	// CodeConflict marks operations rejected because of concurrent state,
	// e.g. a match cycle already holding the advisory lock.
	CodeConflict Code = "conflict"
	// CodeUnavailable marks failures of an external collaborator.
	CodeUnavailable Code = "unavailable"
	// CodeInternal marks unexpected persistence or programming failures.
	CodeInternal Code = "internal"
)

// DomainError carries a failure code alongside a human-readable message.
type DomainError struct {
	Code    Code
	Message string
	wrapped error
}

func (e *DomainError) Error() string {
	if e.wrapped != nil {
		return e.Message + ": " + e.wrapped.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.wrapped }

// New creates a DomainError with the given code and message.
func New(code Code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Wrap creates a DomainError that preserves the underlying cause for
// errors.Is/As chains.
func Wrap(code Code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, wrapped: err}
}

// HasCode reports whether err (or anything it wraps) is a DomainError with
// the given code.
func HasCode(err error, code Code) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a domain code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
