package match

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"organlink/internal/audit"
	"organlink/internal/domain"
	"organlink/internal/match/lock"
	"organlink/internal/store"
	"organlink/internal/trustledger"
	"organlink/internal/trustledger/mocks"
	pkgerrors "organlink/pkg/errors"
)

// =============================================================================
// Match Engine Test Suite
// =============================================================================

type MatchServiceSuite struct {
	suite.Suite
	stores *store.Stores
	trust  *trustledger.MemoryLedger
	sink   *audit.MemorySink
	clock  time.Time
	svc    *Service
}

func TestMatchServiceSuite(t *testing.T) {
	suite.Run(t, new(MatchServiceSuite))
}

func (s *MatchServiceSuite) SetupTest() {
	s.stores = store.NewMemoryStores()
	s.trust = trustledger.NewMemoryLedger()
	s.sink = audit.NewMemorySink()
	s.clock = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s.svc = s.newService(s.trust)
}

func (s *MatchServiceSuite) newService(trust trustledger.Client) *Service {
	return NewService(
		s.stores,
		trust,
		FixedScorer(90),
		lock.NewMemory(),
		s.sink,
		nil,
		slog.New(slog.DiscardHandler),
		WithClock(func() time.Time { return s.clock }),
		WithRandSeed(1),
	)
}

func (s *MatchServiceSuite) addDonor(name, organ, blood string, consent bool) string {
	id, err := s.stores.Donors.Insert(context.Background(), &domain.Donor{
		FullName:      name,
		Age:           34,
		Gender:        "F",
		BloodGroup:    domain.BloodGroup(blood),
		OrganType:     organ,
		City:          "Pune",
		State:         "MH",
		ContactNumber: "9876543210",
		Email:         name + "@example.com",
		Consent:       consent,
		RegisteredAt:  s.clock,
	})
	s.Require().NoError(err)
	s.clock = s.clock.Add(time.Second)
	return id
}

func (s *MatchServiceSuite) addRecipient(name, organ, blood string) string {
	id, err := s.stores.Recipients.Insert(context.Background(), &domain.Recipient{
		Name:         name,
		Email:        name + "@example.com",
		Organ:        organ,
		BloodGroup:   domain.BloodGroup(blood),
		RegisteredAt: s.clock,
	})
	s.Require().NoError(err)
	s.clock = s.clock.Add(time.Second)
	return id
}

// =============================================================================
// RunMatchCycle
// =============================================================================

func (s *MatchServiceSuite) TestRunMatchCycleCommitsCompatiblePair() {
	ctx := context.Background()
	donorID := s.addDonor("Asha", "Kidney", "O+", true)
	recipientID := s.addRecipient("Ravi", "Kidney", "O+")

	result, err := s.svc.RunMatchCycle(ctx)
	s.Require().NoError(err)
	s.Equal(domain.OutcomeMatched, result.Outcome)
	s.Require().Len(result.Matches, 1)
	s.Zero(result.MirrorFailures)

	summary := result.Matches[0]
	s.Equal("Asha", summary.DonorName)
	s.Equal("Ravi", summary.RecipientName)
	s.Equal("Kidney", summary.Organ)
	s.Equal(90, summary.Compatibility)
	s.Equal(domain.StatusMatched, summary.Status)
	s.True(summary.Mirrored)
	s.True(strings.HasPrefix(summary.BlockID, "blk-"))

	s.Run("consumed flags are set on both parties", func() {
		donor, err := s.stores.Donors.FindByID(ctx, donorID)
		s.Require().NoError(err)
		s.True(donor.Consumed)

		recipient, err := s.stores.Recipients.FindByID(ctx, recipientID)
		s.Require().NoError(err)
		s.True(recipient.Consumed)
	})

	s.Run("match record carries the automatic source", func() {
		matches, err := s.stores.Matches.List(ctx)
		s.Require().NoError(err)
		s.Require().Len(matches, 1)
		s.Equal(donorID, matches[0].DonorID)
		s.Equal(recipientID, matches[0].RecipientID)
		s.Equal(domain.SourceAutomatic, matches[0].Source)
	})

	s.Run("local ledger has exactly one record with the score in meta", func() {
		records, err := s.stores.Ledgers.List(ctx)
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.Equal(summary.BlockID, records[0].BlockID)
		s.Equal("90%", records[0].Meta[domain.MetaCompatibility])
	})

	s.Run("mirror reached the external ledger", func() {
		mirrored, err := s.trust.ListAll(ctx)
		s.Require().NoError(err)
		s.Require().Len(mirrored, 1)
		s.Equal("Asha", mirrored[0].Donor)
		s.Equal("90%", mirrored[0].Compatibility)
	})

	s.Run("commit audit event was emitted", func() {
		events := s.sink.ByAction(audit.ActionMatchCommitted)
		s.Require().Len(events, 1)
		s.Equal(donorID, events[0].DonorID)
	})
}

func (s *MatchServiceSuite) TestRunMatchCycleDonorMatchedOncePerCycle() {
	ctx := context.Background()
	s.addDonor("Asha", "Kidney", "O+", true)
	s.addRecipient("Ravi", "Kidney", "O+")
	s.addRecipient("Meera", "Kidney", "O+")

	result, err := s.svc.RunMatchCycle(ctx)
	s.Require().NoError(err)
	s.Equal(domain.OutcomeMatched, result.Outcome)
	s.Len(result.Matches, 1)
	s.Equal("Ravi", result.Matches[0].RecipientName, "earliest-registered recipient wins the only donor")

	recipients, err := s.stores.Recipients.ListEligible(ctx)
	s.Require().NoError(err)
	s.Require().Len(recipients, 1)
	s.Equal("Meera", recipients[0].Name)
}

func (s *MatchServiceSuite) TestRunMatchCycleRepeatIsIdempotent() {
	ctx := context.Background()
	s.addDonor("Asha", "Kidney", "O+", true)
	s.addRecipient("Ravi", "Kidney", "O+")

	first, err := s.svc.RunMatchCycle(ctx)
	s.Require().NoError(err)
	s.Equal(domain.OutcomeMatched, first.Outcome)

	second, err := s.svc.RunMatchCycle(ctx)
	s.Require().NoError(err)
	s.Equal(domain.OutcomeNoCandidates, second.Outcome)
	s.Empty(second.Matches)

	matches, err := s.stores.Matches.List(ctx)
	s.Require().NoError(err)
	s.Len(matches, 1)
}

func (s *MatchServiceSuite) TestRunMatchCycleNoCandidates() {
	ctx := context.Background()

	s.Run("empty stores", func() {
		result, err := s.svc.RunMatchCycle(ctx)
		s.Require().NoError(err)
		s.Equal(domain.OutcomeNoCandidates, result.Outcome)
		s.Empty(result.Matches)
	})

	s.Run("donor without consent is not a candidate", func() {
		s.addDonor("Asha", "Kidney", "O+", false)
		s.addRecipient("Ravi", "Kidney", "O+")

		result, err := s.svc.RunMatchCycle(ctx)
		s.Require().NoError(err)
		s.Equal(domain.OutcomeNoCandidates, result.Outcome)
	})
}

func (s *MatchServiceSuite) TestRunMatchCycleNoCompatiblePairs() {
	ctx := context.Background()
	donorID := s.addDonor("Asha", "Liver", "A+", true)
	recipientID := s.addRecipient("Ravi", "Kidney", "O+")

	result, err := s.svc.RunMatchCycle(ctx)
	s.Require().NoError(err)
	s.Equal(domain.OutcomeNoCompatiblePairs, result.Outcome)
	s.Empty(result.Matches)

	donor, err := s.stores.Donors.FindByID(ctx, donorID)
	s.Require().NoError(err)
	s.False(donor.Consumed)

	recipient, err := s.stores.Recipients.FindByID(ctx, recipientID)
	s.Require().NoError(err)
	s.False(recipient.Consumed)

	records, err := s.stores.Ledgers.List(ctx)
	s.Require().NoError(err)
	s.Empty(records)
}

func (s *MatchServiceSuite) TestRunMatchCycleMirrorFailureStillCommits() {
	ctx := context.Background()
	ctrl := gomock.NewController(s.T())
	trust := mocks.NewMockClient(ctrl)
	trust.EXPECT().
		Append(gomock.Any(), gomock.Any()).
		Return("", trustledger.NewError(trustledger.CategoryNetwork, "connection refused", nil))
	svc := s.newService(trust)

	donorID := s.addDonor("Asha", "Kidney", "O+", true)
	s.addRecipient("Ravi", "Kidney", "O+")

	result, err := svc.RunMatchCycle(ctx)
	s.Require().NoError(err)
	s.Equal(domain.OutcomeMatched, result.Outcome)
	s.Require().Len(result.Matches, 1)
	s.False(result.Matches[0].Mirrored)
	s.Equal(1, result.MirrorFailures)

	s.Run("local commit stands", func() {
		donor, err := s.stores.Donors.FindByID(ctx, donorID)
		s.Require().NoError(err)
		s.True(donor.Consumed)

		records, err := s.stores.Ledgers.List(ctx)
		s.Require().NoError(err)
		s.Len(records, 1)
	})

	s.Run("mirror failure audit event carries the category", func() {
		events := s.sink.ByAction(audit.ActionMirrorFailed)
		s.Require().Len(events, 1)
		s.Equal(string(trustledger.CategoryNetwork), events[0].Detail)
	})
}

func (s *MatchServiceSuite) TestRunMatchCycleConflictsWhileLockHeld() {
	cycleLock := lock.NewMemory()
	svc := NewService(
		s.stores,
		s.trust,
		FixedScorer(90),
		cycleLock,
		s.sink,
		nil,
		slog.New(slog.DiscardHandler),
	)

	release, err := cycleLock.Acquire(context.Background())
	s.Require().NoError(err)
	defer release()

	_, err = svc.RunMatchCycle(context.Background())
	s.Require().Error(err)
	s.True(pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

// =============================================================================
// CreateManualMatch
// =============================================================================

func (s *MatchServiceSuite) TestCreateManualMatch() {
	ctx := context.Background()
	donorID := s.addDonor("Asha", "Kidney", "O+", true)
	recipientID := s.addRecipient("Ravi", "Kidney", "O+")

	s.Run("missing fields are all named", func() {
		_, err := s.svc.CreateManualMatch(ctx, ManualMatchInput{})
		s.Require().Error(err)
		s.True(pkgerrors.HasCode(err, pkgerrors.CodeBadRequest))
		for _, field := range []string{"donorId", "recipientId", "organ", "compatibility", "status"} {
			s.Contains(err.Error(), field)
		}
	})

	s.Run("compatibility outside 0-100 is rejected", func() {
		_, err := s.svc.CreateManualMatch(ctx, ManualMatchInput{
			DonorID:       donorID,
			RecipientID:   recipientID,
			Organ:         "Kidney",
			Compatibility: 130,
			Status:        domain.StatusMatched,
		})
		s.Require().Error(err)
		s.True(pkgerrors.HasCode(err, pkgerrors.CodeBadRequest))
	})

	s.Run("malformed donor id maps to bad request", func() {
		_, err := s.svc.CreateManualMatch(ctx, ManualMatchInput{
			DonorID:       "not-a-uuid",
			RecipientID:   recipientID,
			Organ:         "Kidney",
			Compatibility: 88,
			Status:        domain.StatusMatched,
		})
		s.Require().Error(err)
		s.True(pkgerrors.HasCode(err, pkgerrors.CodeBadRequest))
	})

	s.Run("unknown recipient maps to not found", func() {
		_, err := s.svc.CreateManualMatch(ctx, ManualMatchInput{
			DonorID:       donorID,
			RecipientID:   "00000000-0000-0000-0000-000000000000",
			Organ:         "Kidney",
			Compatibility: 88,
			Status:        domain.StatusMatched,
		})
		s.Require().Error(err)
		s.True(pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	})

	s.Run("valid input creates a manual match without side effects", func() {
		created, err := s.svc.CreateManualMatch(ctx, ManualMatchInput{
			DonorID:       donorID,
			RecipientID:   recipientID,
			Organ:         "Kidney",
			Compatibility: 88,
			Status:        domain.StatusMatched,
		})
		s.Require().NoError(err)
		s.NotEmpty(created.ID)
		s.Equal(domain.SourceManual, created.Source)

		donor, err := s.stores.Donors.FindByID(ctx, donorID)
		s.Require().NoError(err)
		s.False(donor.Consumed, "manual matches leave consumed flags alone")

		records, err := s.stores.Ledgers.List(ctx)
		s.Require().NoError(err)
		s.Empty(records, "manual matches bypass the ledgers")

		s.Len(s.sink.ByAction(audit.ActionManualMatchCreated), 1)
	})
}

// =============================================================================
// Administrative resets
// =============================================================================

func (s *MatchServiceSuite) TestResetConsumedFlags() {
	ctx := context.Background()
	donorID := s.addDonor("Asha", "Kidney", "O+", true)
	recipientID := s.addRecipient("Ravi", "Kidney", "O+")

	_, err := s.svc.RunMatchCycle(ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.ResetConsumedFlags(ctx))

	donor, err := s.stores.Donors.FindByID(ctx, donorID)
	s.Require().NoError(err)
	s.False(donor.Consumed)

	recipient, err := s.stores.Recipients.FindByID(ctx, recipientID)
	s.Require().NoError(err)
	s.False(recipient.Consumed)

	s.Run("matches and ledger entries survive the reset", func() {
		matches, err := s.stores.Matches.List(ctx)
		s.Require().NoError(err)
		s.Len(matches, 1)

		records, err := s.stores.Ledgers.List(ctx)
		s.Require().NoError(err)
		s.Len(records, 1)
	})
}

func (s *MatchServiceSuite) TestClearAllDemoData() {
	ctx := context.Background()
	s.addDonor("Asha", "Kidney", "O+", true)
	s.addRecipient("Ravi", "Kidney", "O+")
	_, err := s.svc.RunMatchCycle(ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.ClearAllDemoData(ctx))

	donors, err := s.stores.Donors.List(ctx)
	s.Require().NoError(err)
	s.Empty(donors)

	recipients, err := s.stores.Recipients.List(ctx)
	s.Require().NoError(err)
	s.Empty(recipients)

	matches, err := s.stores.Matches.List(ctx)
	s.Require().NoError(err)
	s.Empty(matches)

	records, err := s.stores.Ledgers.List(ctx)
	s.Require().NoError(err)
	s.Empty(records)

	s.Len(s.sink.ByAction(audit.ActionDemoDataCleared), 1)
}

// =============================================================================
// Block id generation
// =============================================================================

func (s *MatchServiceSuite) TestAppendLedgerRegeneratesBlockIDOnConflict() {
	ctx := context.Background()

	// Both records carry the same timestamp, so a suffix collision is
	// possible; appendLedger must regenerate rather than fail.
	first, err := s.svc.appendLedger(ctx, &domain.LedgerRecord{
		DonorID:     "d",
		RecipientID: "r",
		Organ:       "Kidney",
		Status:      domain.StatusMatched,
		Timestamp:   s.clock,
	})
	s.Require().NoError(err)

	second, err := s.svc.appendLedger(ctx, &domain.LedgerRecord{
		DonorID:     "d",
		RecipientID: "r",
		Organ:       "Kidney",
		Status:      domain.StatusMatched,
		Timestamp:   s.clock,
	})
	s.Require().NoError(err)
	s.NotEqual(first, second)

	records, err := s.stores.Ledgers.List(ctx)
	s.Require().NoError(err)
	s.Len(records, 2)
}

func (s *MatchServiceSuite) TestClaimTreatsConflictAsAlreadyConsumed() {
	ctx := context.Background()
	donorID := s.addDonor("Asha", "Kidney", "O+", true)

	s.Require().NoError(s.stores.Donors.Claim(ctx, donorID))

	// A second claim conflicts; the engine logs and carries on.
	err := s.svc.claim(ctx, s.stores.Donors.Claim, donorID, "donor")
	s.NoError(err)

	err = s.svc.claim(ctx, s.stores.Donors.Claim, "00000000-0000-0000-0000-000000000000", "donor")
	s.Require().Error(err)
	s.True(pkgerrors.HasCode(err, pkgerrors.CodeInternal))
}
