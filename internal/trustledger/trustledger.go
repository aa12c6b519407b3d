// Package trustledger defines the client boundary to the external trust
// service that keeps the immutable mirror of committed matches. The service
// is append-only; idempotency of Append is the caller's responsibility.
package trustledger

import (
	"context"
	"errors"
	"fmt"
)

// Record is the wire shape of one mirrored match.
type Record struct {
	Donor         string `json:"donor"`
	Recipient     string `json:"recipient"`
	Organ         string `json:"organ"`
	Status        string `json:"status"`
	Compatibility string `json:"compatibility"`
	Timestamp     string `json:"timestamp"`
}

//go:generate mockgen -source=trustledger.go -destination=mocks/mocks.go -package=mocks

// Client is the port consumed by the matching engine and the ledger view.
type Client interface {
	// Append mirrors one record and returns the service's transaction
	// reference. May fail with a *Error carrying the failure category.
	Append(ctx context.Context, record Record) (string, error)
	// ListAll performs a full scan of the external ledger in service order.
	ListAll(ctx context.Context) ([]Record, error)
}

// ErrorCategory normalizes trust-service failures.
type ErrorCategory string

const (
	// CategoryNetwork covers connection failures and 5xx responses.
	CategoryNetwork ErrorCategory = "network"
	// CategoryConfirmationTimeout means the call exceeded its deadline before
	// the service confirmed the append.
	CategoryConfirmationTimeout ErrorCategory = "confirmation_timeout"
	// CategoryRejected means the service refused the record.
	CategoryRejected ErrorCategory = "rejected"
)

// Error wraps trust-service failures with normalized categorization.
type Error struct {
	Category   ErrorCategory
	Message    string
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("trust ledger [%s]: %s: %v", e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("trust ledger [%s]: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.Underlying }

// NewError creates a categorized trust-ledger error.
func NewError(category ErrorCategory, message string, underlying error) *Error {
	return &Error{Category: category, Message: message, Underlying: underlying}
}

// IsRetryable reports whether the failure is worth retrying. Rejections are
// terminal; network failures and timeouts are not.
func IsRetryable(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Category != CategoryRejected
	}
	return false
}

// CategoryOf extracts the category from an error, defaulting to network.
func CategoryOf(err error) ErrorCategory {
	var te *Error
	if errors.As(err, &te) {
		return te.Category
	}
	return CategoryNetwork
}
