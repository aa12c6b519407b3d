// Package match implements the matching engine: the greedy first-fit cycle
// over eligible donors and recipients, and the commit unit that keeps the
// match store, the local ledger, and the external mirror consistent.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"organlink/internal/audit"
	"organlink/internal/domain"
	"organlink/internal/match/lock"
	"organlink/internal/match/metrics"
	"organlink/internal/store"
	"organlink/internal/trustledger"
	pkgerrors "organlink/pkg/errors"
	"organlink/pkg/platform/sentinel"
)

const blockIDRetries = 5

// Service orchestrates match cycles. All collaborators are injected so the
// engine itself stays free of I/O specifics.
type Service struct {
	stores        *store.Stores
	ledger        trustledger.Client
	scorer        Scorer
	lock          lock.CycleLock
	audit         audit.Emitter
	metrics       *metrics.Metrics
	logger        *slog.Logger
	now           func() time.Time
	mirrorTimeout time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures the Service.
type Option func(*Service)

// WithClock overrides the engine clock. Test seam.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMirrorTimeout bounds each external-ledger mirror call.
func WithMirrorTimeout(d time.Duration) Option {
	return func(s *Service) { s.mirrorTimeout = d }
}

// WithRandSeed seeds the block-id suffix source for reproducible tests.
func WithRandSeed(seed int64) Option {
	return func(s *Service) { s.rng = rand.New(rand.NewSource(seed)) }
}

// NewService wires the matching engine.
func NewService(
	stores *store.Stores,
	ledger trustledger.Client,
	scorer Scorer,
	cycleLock lock.CycleLock,
	emitter audit.Emitter,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		stores:        stores,
		ledger:        ledger,
		scorer:        scorer,
		lock:          cycleLock,
		audit:         emitter,
		metrics:       m,
		logger:        logger,
		now:           time.Now,
		mirrorTimeout: 5 * time.Second,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunMatchCycle executes one greedy first-fit pass over all eligible parties.
//
// The whole run holds the advisory cycle lock; a concurrent caller gets a
// conflict instead of a second cycle racing for the same donors. Recipients
// are visited earliest-registered-first; for each one the eligible donor set
// is re-loaded so a donor consumed earlier in this same cycle is excluded
// from later iterations. The first compatible donor in load order wins - no
// secondary ranking by score.
func (s *Service) RunMatchCycle(ctx context.Context) (*domain.CycleResult, error) {
	release, err := s.lock.Acquire(ctx)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a match cycle is already running")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, "acquire cycle lock", err)
	}
	defer release()

	start := s.now()
	result := &domain.CycleResult{}

	recipients, err := s.stores.Recipients.ListEligible(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, "load eligible recipients", err)
	}
	donors, err := s.stores.Donors.ListEligible(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, "load eligible donors", err)
	}
	if len(recipients) == 0 || len(donors) == 0 {
		result.Outcome = domain.OutcomeNoCandidates
		s.metrics.ObserveCycle(string(result.Outcome), start)
		return result, nil
	}

	for _, recipient := range recipients {
		// Re-load so donors consumed earlier in this cycle drop out. This is
		// a deliberate sequential greedy pass, not a global assignment.
		donors, err = s.stores.Donors.ListEligible(ctx)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, "reload eligible donors", err)
		}
		var donor *domain.Donor
		for _, candidate := range donors {
			if IsCompatible(candidate, recipient) {
				donor = candidate
				break
			}
		}
		if donor == nil {
			// No surviving compatible donor for this recipient; not an error.
			continue
		}

		summary, err := s.commitPair(ctx, donor, recipient, result)
		if err != nil {
			return nil, err
		}
		result.Matches = append(result.Matches, *summary)
	}

	if len(result.Matches) == 0 {
		result.Outcome = domain.OutcomeNoCompatiblePairs
	} else {
		result.Outcome = domain.OutcomeMatched
	}
	s.metrics.ObserveCycle(string(result.Outcome), start)
	return result, nil
}

// commitPair runs the commit unit for one pair: match record, local ledger
// record, external mirror, consumed flags - in that order. A mirror failure
// is reported, never rolled back: the local ledger is authoritative and the
// external mirror is best effort. Once started, the commit runs to local
// completion before the next recipient is considered.
func (s *Service) commitPair(ctx context.Context, donor *domain.Donor, recipient *domain.Recipient, result *domain.CycleResult) (*domain.MatchSummary, error) {
	now := s.now()
	score := s.scorer.Score(donor, recipient)

	match := &domain.Match{
		DonorID:       donor.ID,
		RecipientID:   recipient.ID,
		Organ:         recipient.Organ,
		Compatibility: score,
		Status:        domain.StatusMatched,
		Source:        domain.SourceAutomatic,
		CreatedAt:     now,
	}
	if _, err := s.stores.Matches.Insert(ctx, match); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, "insert match", err)
	}

	record := &domain.LedgerRecord{
		DonorID:     donor.ID,
		RecipientID: recipient.ID,
		Organ:       recipient.Organ,
		Status:      domain.StatusMatched,
		Meta:        map[string]string{domain.MetaCompatibility: strconv.Itoa(score) + "%"},
		Timestamp:   now,
	}
	blockID, err := s.appendLedger(ctx, record)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, "append ledger record", err)
	}

	mirrored := s.mirror(ctx, donor, recipient, score, now, blockID)
	if !mirrored {
		result.MirrorFailures++
	}

	if err := s.claim(ctx, s.stores.Donors.Claim, donor.ID, "donor"); err != nil {
		return nil, err
	}
	if err := s.claim(ctx, s.stores.Recipients.Claim, recipient.ID, "recipient"); err != nil {
		return nil, err
	}

	s.metrics.IncMatches()
	s.audit.Emit(ctx, audit.Event{
		Timestamp:   now,
		Action:      audit.ActionMatchCommitted,
		DonorID:     donor.ID,
		RecipientID: recipient.ID,
		Organ:       recipient.Organ,
		BlockID:     blockID,
	})

	return &domain.MatchSummary{
		DonorName:     donor.FullName,
		RecipientName: recipient.Name,
		Organ:         recipient.Organ,
		Compatibility: score,
		Status:        domain.StatusMatched,
		BlockID:       blockID,
		Mirrored:      mirrored,
	}, nil
}

// appendLedger writes the local ledger record, regenerating the block id on a
// uniqueness conflict.
func (s *Service) appendLedger(ctx context.Context, record *domain.LedgerRecord) (string, error) {
	for attempt := 0; attempt < blockIDRetries; attempt++ {
		record.BlockID = s.newBlockID(record.Timestamp)
		if _, err := s.stores.Ledgers.Append(ctx, record); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				continue
			}
			return "", err
		}
		return record.BlockID, nil
	}
	return "", fmt.Errorf("could not generate a unique block id in %d attempts", blockIDRetries)
}

func (s *Service) newBlockID(now time.Time) string {
	s.rngMu.Lock()
	suffix := 100 + s.rng.Intn(900)
	s.rngMu.Unlock()
	return fmt.Sprintf("blk-%d-%03d", now.Unix(), suffix)
}

// mirror pushes the committed record to the external trust service under a
// bounded timeout. Returns false on failure; the local commit stands either
// way and retrying is a reconciliation concern, not the cycle's.
func (s *Service) mirror(ctx context.Context, donor *domain.Donor, recipient *domain.Recipient, score int, now time.Time, blockID string) bool {
	mirrorCtx, cancel := context.WithTimeout(ctx, s.mirrorTimeout)
	defer cancel()

	_, err := s.ledger.Append(mirrorCtx, trustledger.Record{
		Donor:         donor.FullName,
		Recipient:     recipient.Name,
		Organ:         recipient.Organ,
		Status:        string(domain.StatusMatched),
		Compatibility: strconv.Itoa(score) + "%",
		Timestamp:     now.UTC().Format(time.RFC3339),
	})
	if err == nil {
		return true
	}

	s.metrics.IncMirrorFailures()
	s.logger.WarnContext(ctx, "external ledger mirror failed",
		"donor_id", donor.ID,
		"recipient_id", recipient.ID,
		"block_id", blockID,
		"category", string(trustledger.CategoryOf(err)),
		"error", err.Error(),
	)
	s.audit.Emit(ctx, audit.Event{
		Timestamp:   now,
		Action:      audit.ActionMirrorFailed,
		DonorID:     donor.ID,
		RecipientID: recipient.ID,
		Organ:       recipient.Organ,
		BlockID:     blockID,
		Detail:      string(trustledger.CategoryOf(err)),
	})
	return false
}

// claim flips a consumed flag via the store's compare-and-set. Under the
// cycle lock a conflict means the flag was flipped outside a cycle; that is
// logged, not fatal, because the match is already committed.
func (s *Service) claim(ctx context.Context, claimFn func(context.Context, string) error, id, kind string) error {
	err := claimFn(ctx, id)
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel.ErrConflict) {
		s.logger.WarnContext(ctx, "record already consumed at claim time", "kind", kind, "id", id)
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, "claim "+kind, err)
}

// ManualMatchInput is the operator-override payload for CreateManualMatch.
type ManualMatchInput struct {
	DonorID       string
	RecipientID   string
	Organ         string
	Compatibility int
	Status        domain.MatchStatus
}

// CreateManualMatch records an operator-entered match. It deliberately skips
// the compatibility check, both ledgers, and the consumed flags: the override
// exists for offline-arranged pairings and is distinguished from engine
// output by Source=manual.
func (s *Service) CreateManualMatch(ctx context.Context, input ManualMatchInput) (*domain.Match, error) {
	var missing []string
	if input.DonorID == "" {
		missing = append(missing, "donorId")
	}
	if input.RecipientID == "" {
		missing = append(missing, "recipientId")
	}
	if input.Organ == "" {
		missing = append(missing, "organ")
	}
	if input.Compatibility == 0 {
		missing = append(missing, "compatibility")
	}
	if input.Status == "" {
		missing = append(missing, "status")
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "missing fields: "+strings.Join(missing, ", "))
	}
	if input.Compatibility < 0 || input.Compatibility > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "compatibility must be between 0 and 100")
	}

	if _, err := s.stores.Donors.FindByID(ctx, input.DonorID); err != nil {
		return nil, translateLookup(err, "donor")
	}
	if _, err := s.stores.Recipients.FindByID(ctx, input.RecipientID); err != nil {
		return nil, translateLookup(err, "recipient")
	}

	match := &domain.Match{
		DonorID:       input.DonorID,
		RecipientID:   input.RecipientID,
		Organ:         input.Organ,
		Compatibility: input.Compatibility,
		Status:        input.Status,
		Source:        domain.SourceManual,
		CreatedAt:     s.now(),
	}
	id, err := s.stores.Matches.Insert(ctx, match)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, "insert manual match", err)
	}
	match.ID = id

	s.audit.Emit(ctx, audit.Event{
		Timestamp:   match.CreatedAt,
		Action:      audit.ActionManualMatchCreated,
		DonorID:     match.DonorID,
		RecipientID: match.RecipientID,
		Organ:       match.Organ,
	})
	return match, nil
}

// ResetConsumedFlags unconditionally marks every donor and recipient
// unconsumed. Demo/test reset, not part of the normal lifecycle.
func (s *Service) ResetConsumedFlags(ctx context.Context) error {
	if err := s.stores.Donors.ResetConsumed(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, "reset donors", err)
	}
	if err := s.stores.Recipients.ResetConsumed(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, "reset recipients", err)
	}
	s.audit.Emit(ctx, audit.Event{Timestamp: s.now(), Action: audit.ActionConsumedFlagsReset})
	return nil
}

// ClearAllDemoData wipes all four collections. Destructive, intended for
// non-production use only.
func (s *Service) ClearAllDemoData(ctx context.Context) error {
	if err := s.stores.Donors.DeleteAll(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, "clear donors", err)
	}
	if err := s.stores.Recipients.DeleteAll(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, "clear recipients", err)
	}
	if err := s.stores.Matches.DeleteAll(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, "clear matches", err)
	}
	if err := s.stores.Ledgers.DeleteAll(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, "clear ledgers", err)
	}
	s.audit.Emit(ctx, audit.Event{Timestamp: s.now(), Action: audit.ActionDemoDataCleared})
	return nil
}

func translateLookup(err error, kind string) error {
	switch {
	case errors.Is(err, sentinel.ErrMalformedID):
		return pkgerrors.New(pkgerrors.CodeBadRequest, "malformed "+kind+" id")
	case errors.Is(err, sentinel.ErrNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, kind+" not found")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, "look up "+kind, err)
	}
}
