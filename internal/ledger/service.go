// Package ledger provides the read-side reconciliation views: the enriched
// local ledger and the external trust-service ledger, exposed side by side
// for manual audit. The two are not reconciled automatically.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"golang.org/x/sync/errgroup"

	"organlink/internal/domain"
	"organlink/internal/store"
	"organlink/internal/trustledger"
	pkgerrors "organlink/pkg/errors"
	"organlink/pkg/platform/sentinel"
)

// enrichConcurrency bounds parallel name lookups per listing.
const enrichConcurrency = 8

// Service merges local ledger records with display names and exposes the
// external ledger for side-by-side audit.
type Service struct {
	stores *store.Stores
	trust  trustledger.Client
	logger *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService wires the ledger views.
func NewService(stores *store.Stores, trust trustledger.Client, logger *slog.Logger) *Service {
	return &Service{
		stores: stores,
		trust:  trust,
		logger: logger,
		rng:    rand.New(rand.NewSource(rand.Int63())),
	}
}

// ListEnrichedLedger returns local ledger records newest-first with donor and
// recipient ids resolved to display names. A dangling or malformed reference
// degrades to a placeholder name; a single bad reference must not break the
// listing. Records without a block id get a display-only backfill that is
// never persisted.
func (s *Service) ListEnrichedLedger(ctx context.Context) ([]*domain.EnrichedLedgerRecord, error) {
	records, err := s.stores.Ledgers.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, "list ledger records", err)
	}

	out := make([]*domain.EnrichedLedgerRecord, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i, record := range records {
		g.Go(func() error {
			enriched := &domain.EnrichedLedgerRecord{LedgerRecord: *record}
			enriched.DonorName = s.donorName(gctx, record.DonorID)
			enriched.RecipientName = s.recipientName(gctx, record.RecipientID)
			if enriched.BlockID == "" {
				enriched.BlockID = s.backfillBlockID()
			}
			out[i] = enriched
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, "enrich ledger records", err)
	}
	return out, nil
}

func (s *Service) donorName(ctx context.Context, id string) string {
	donor, err := s.stores.Donors.FindByID(ctx, id)
	if err != nil {
		s.logLookupFailure(ctx, "donor", id, err)
		return domain.UnknownDonor
	}
	if donor.FullName == "" {
		return domain.UnknownDonor
	}
	return donor.FullName
}

func (s *Service) recipientName(ctx context.Context, id string) string {
	recipient, err := s.stores.Recipients.FindByID(ctx, id)
	if err != nil {
		s.logLookupFailure(ctx, "recipient", id, err)
		return domain.UnknownRecipient
	}
	if recipient.Name == "" {
		return domain.UnknownRecipient
	}
	return recipient.Name
}

// Malformed ids are surfaced distinctly to operators via logs; for the
// listing itself they degrade the same way a missing record does.
func (s *Service) logLookupFailure(ctx context.Context, kind, id string, err error) {
	if errors.Is(err, sentinel.ErrMalformedID) {
		s.logger.WarnContext(ctx, "malformed ledger reference", "kind", kind, "id", id)
		return
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "ledger reference lookup failed", "kind", kind, "id", id, "error", err.Error())
	}
}

func (s *Service) backfillBlockID() string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return fmt.Sprintf("blk-%04d", 1000+s.rng.Intn(9000))
}

// ListExternalLedger fetches the full external ledger and assigns
// display-only sequential block numbers in fetch order. The external service
// is the source of truth for these records.
func (s *Service) ListExternalLedger(ctx context.Context) ([]*domain.ExternalLedgerRecord, error) {
	records, err := s.trust.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, "external ledger unavailable", err)
	}
	out := make([]*domain.ExternalLedgerRecord, 0, len(records))
	for i, record := range records {
		out = append(out, &domain.ExternalLedgerRecord{
			Seq:           i + 1,
			Donor:         record.Donor,
			Recipient:     record.Recipient,
			Organ:         record.Organ,
			Status:        record.Status,
			Compatibility: record.Compatibility,
			Timestamp:     record.Timestamp,
		})
	}
	return out, nil
}

// ListMatches returns committed matches newest-first with party names
// resolved the same way the enriched ledger resolves them.
func (s *Service) ListMatches(ctx context.Context) ([]*domain.EnrichedMatch, error) {
	matches, err := s.stores.Matches.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, "list matches", err)
	}
	out := make([]*domain.EnrichedMatch, len(matches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i, m := range matches {
		g.Go(func() error {
			out[i] = &domain.EnrichedMatch{
				Match:         *m,
				DonorName:     s.donorName(gctx, m.DonorID),
				RecipientName: s.recipientName(gctx, m.RecipientID),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, "enrich matches", err)
	}
	return out, nil
}
