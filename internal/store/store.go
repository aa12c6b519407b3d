// Package store defines the record-store boundary consumed by the matching
// engine and the ledger views, with in-memory and MongoDB implementations.
// Stores return pkg/platform/sentinel errors; services translate them.
package store

import (
	"context"

	"organlink/internal/domain"
)

// DonorStore persists donors. ListEligible returns unconsumed, consenting
// donors in registration order, oldest first, so match runs are reproducible.
type DonorStore interface {
	Insert(ctx context.Context, donor *domain.Donor) (string, error)
	FindByID(ctx context.Context, id string) (*domain.Donor, error)
	// List returns all donors, newest registration first.
	List(ctx context.Context) ([]*domain.Donor, error)
	ListEligible(ctx context.Context) ([]*domain.Donor, error)
	// Claim atomically flips Consumed from false to true. Returns
	// sentinel.ErrConflict when the donor is already consumed, so a donor can
	// be claimed by at most one concurrent cycle.
	Claim(ctx context.Context, id string) error
	ResetConsumed(ctx context.Context) error
	DeleteAll(ctx context.Context) error
}

// RecipientStore persists recipients. Same ordering and claim contract as
// DonorStore; eligibility is unconsumed only (recipients carry no consent
// flag).
type RecipientStore interface {
	Insert(ctx context.Context, recipient *domain.Recipient) (string, error)
	FindByID(ctx context.Context, id string) (*domain.Recipient, error)
	List(ctx context.Context) ([]*domain.Recipient, error)
	ListEligible(ctx context.Context) ([]*domain.Recipient, error)
	Claim(ctx context.Context, id string) error
	ResetConsumed(ctx context.Context) error
	DeleteAll(ctx context.Context) error
}

// MatchStore persists committed matches, newest first on List.
type MatchStore interface {
	Insert(ctx context.Context, match *domain.Match) (string, error)
	List(ctx context.Context) ([]*domain.Match, error)
	DeleteAll(ctx context.Context) error
}

// LedgerStore persists the local append-only ledger. Append rejects a reused
// block id with sentinel.ErrConflict; List returns newest first.
type LedgerStore interface {
	Append(ctx context.Context, record *domain.LedgerRecord) (string, error)
	List(ctx context.Context) ([]*domain.LedgerRecord, error)
	DeleteAll(ctx context.Context) error
}

// Stores bundles the four collections behind one injection point.
type Stores struct {
	Donors     DonorStore
	Recipients RecipientStore
	Matches    MatchStore
	Ledgers    LedgerStore
}
