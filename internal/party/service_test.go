package party

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"organlink/internal/store"
	pkgerrors "organlink/pkg/errors"
)

type PartyServiceSuite struct {
	suite.Suite
	stores *store.Stores
	svc    *Service
}

func TestPartyServiceSuite(t *testing.T) {
	suite.Run(t, new(PartyServiceSuite))
}

func (s *PartyServiceSuite) SetupTest() {
	s.stores = store.NewMemoryStores()
	s.svc = NewService(s.stores, WithClock(func() time.Time {
		return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	}))
}

func validDonor() DonorRegistration {
	return DonorRegistration{
		FullName:      "Asha Patil",
		Age:           34,
		Gender:        "F",
		BloodGroup:    "O+",
		OrganType:     "Kidney",
		City:          "Pune",
		State:         "MH",
		ContactNumber: "9876543210",
		Email:         "asha@example.com",
		Consent:       true,
	}
}

func (s *PartyServiceSuite) TestRegisterDonor() {
	ctx := context.Background()

	s.Run("valid registration is stored with an id", func() {
		donor, err := s.svc.RegisterDonor(ctx, validDonor())
		s.Require().NoError(err)
		s.NotEmpty(donor.ID)
		s.False(donor.Consumed)
		s.False(donor.RegisteredAt.IsZero())
	})

	s.Run("every missing field is named in the error", func() {
		_, err := s.svc.RegisterDonor(ctx, DonorRegistration{})
		s.Require().Error(err)
		s.True(pkgerrors.HasCode(err, pkgerrors.CodeBadRequest))
		for _, field := range []string{
			"fullName", "age", "gender", "bloodGroup", "organType",
			"city", "state", "contactNumber", "email", "consent",
		} {
			s.Contains(err.Error(), field)
		}
	})

	s.Run("registration without consent is rejected", func() {
		reg := validDonor()
		reg.Consent = false
		_, err := s.svc.RegisterDonor(ctx, reg)
		s.Require().Error(err)
		s.Contains(err.Error(), "consent")

		donors, listErr := s.stores.Donors.List(ctx)
		s.Require().NoError(listErr)
		s.Len(donors, 1, "only the earlier valid registration persists")
	})

	s.Run("non-positive age is rejected", func() {
		reg := validDonor()
		reg.Age = 0
		_, err := s.svc.RegisterDonor(ctx, reg)
		s.Require().Error(err)
		s.Contains(err.Error(), "age")
	})
}

func (s *PartyServiceSuite) TestRegisterRecipient() {
	ctx := context.Background()

	s.Run("valid registration is stored", func() {
		recipient, err := s.svc.RegisterRecipient(ctx, RecipientRegistration{
			Name:       "Ravi Kumar",
			Email:      "ravi@example.com",
			Organ:      "Kidney",
			BloodGroup: "O+",
		})
		s.Require().NoError(err)
		s.NotEmpty(recipient.ID)
		s.False(recipient.Consumed)
	})

	s.Run("missing fields are named", func() {
		_, err := s.svc.RegisterRecipient(ctx, RecipientRegistration{Name: "Ravi"})
		s.Require().Error(err)
		s.True(pkgerrors.HasCode(err, pkgerrors.CodeBadRequest))
		for _, field := range []string{"email", "organ", "bloodGroup"} {
			s.Contains(err.Error(), field)
		}
	})
}

func (s *PartyServiceSuite) TestContact() {
	ctx := context.Background()

	s.Run("existing donor returns the contact card", func() {
		donor, err := s.svc.RegisterDonor(ctx, validDonor())
		s.Require().NoError(err)

		contact, err := s.svc.Contact(ctx, donor.ID)
		s.Require().NoError(err)
		s.Equal("Asha Patil", contact.DonorName)
		s.Equal("9876543210", contact.ContactNumber)
		s.Equal("asha@example.com", contact.Email)
		s.Equal("Pune", contact.City)
	})

	s.Run("empty id is a bad request", func() {
		_, err := s.svc.Contact(ctx, "  ")
		s.Require().Error(err)
		s.True(pkgerrors.HasCode(err, pkgerrors.CodeBadRequest))
	})

	s.Run("malformed id is a bad request, not a lookup miss", func() {
		_, err := s.svc.Contact(ctx, "not-a-uuid")
		s.Require().Error(err)
		s.True(pkgerrors.HasCode(err, pkgerrors.CodeBadRequest))
	})

	s.Run("unknown donor is not found", func() {
		_, err := s.svc.Contact(ctx, "00000000-0000-0000-0000-000000000000")
		s.Require().Error(err)
		s.True(pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
	})
}
