// Package party handles donor and recipient registration, listing, and the
// operator contact lookup. Matching state belongs to the match package; this
// one only creates and reads the parties.
package party

import (
	"context"
	"errors"
	"strings"
	"time"

	"organlink/internal/domain"
	"organlink/internal/store"
	pkgerrors "organlink/pkg/errors"
	"organlink/pkg/platform/sentinel"
)

// Service validates and persists party registrations.
type Service struct {
	stores *store.Stores
	now    func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithClock overrides the registration clock. Test seam.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(stores *store.Stores, opts ...Option) *Service {
	s := &Service{stores: stores, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DonorRegistration is the create payload. Consent must be explicitly true;
// a registration without it is rejected, not stored as ineligible.
type DonorRegistration struct {
	FullName      string
	Age           int
	Gender        string
	BloodGroup    string
	OrganType     string
	City          string
	State         string
	ContactNumber string
	Email         string
	HealthHistory string
	Consent       bool
}

// RegisterDonor validates and stores a new donor. Validation failures name
// every missing field and nothing is persisted on failure.
func (s *Service) RegisterDonor(ctx context.Context, reg DonorRegistration) (*domain.Donor, error) {
	var missing []string
	appendMissing := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	appendMissing("fullName", reg.FullName)
	if reg.Age <= 0 {
		missing = append(missing, "age")
	}
	appendMissing("gender", reg.Gender)
	appendMissing("bloodGroup", reg.BloodGroup)
	appendMissing("organType", reg.OrganType)
	appendMissing("city", reg.City)
	appendMissing("state", reg.State)
	appendMissing("contactNumber", reg.ContactNumber)
	appendMissing("email", reg.Email)
	if !reg.Consent {
		missing = append(missing, "consent")
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "missing fields: "+strings.Join(missing, ", "))
	}

	donor := &domain.Donor{
		FullName:      reg.FullName,
		Age:           reg.Age,
		Gender:        reg.Gender,
		BloodGroup:    domain.BloodGroup(reg.BloodGroup),
		OrganType:     reg.OrganType,
		City:          reg.City,
		State:         reg.State,
		ContactNumber: reg.ContactNumber,
		Email:         reg.Email,
		HealthHistory: reg.HealthHistory,
		Consent:       reg.Consent,
		RegisteredAt:  s.now(),
	}
	id, err := s.stores.Donors.Insert(ctx, donor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, "register donor", err)
	}
	donor.ID = id
	return donor, nil
}

// RecipientRegistration is the create payload for recipients.
type RecipientRegistration struct {
	Name           string
	Email          string
	Organ          string
	BloodGroup     string
	MedicalHistory string
}

// RegisterRecipient validates and stores a new recipient.
func (s *Service) RegisterRecipient(ctx context.Context, reg RecipientRegistration) (*domain.Recipient, error) {
	var missing []string
	appendMissing := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	appendMissing("name", reg.Name)
	appendMissing("email", reg.Email)
	appendMissing("organ", reg.Organ)
	appendMissing("bloodGroup", reg.BloodGroup)
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "missing fields: "+strings.Join(missing, ", "))
	}

	recipient := &domain.Recipient{
		Name:           reg.Name,
		Email:          reg.Email,
		Organ:          reg.Organ,
		BloodGroup:     domain.BloodGroup(reg.BloodGroup),
		MedicalHistory: reg.MedicalHistory,
		RegisteredAt:   s.now(),
	}
	id, err := s.stores.Recipients.Insert(ctx, recipient)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, "register recipient", err)
	}
	recipient.ID = id
	return recipient, nil
}

// ListDonors returns all donors, newest registration first.
func (s *Service) ListDonors(ctx context.Context) ([]*domain.Donor, error) {
	donors, err := s.stores.Donors.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, "list donors", err)
	}
	return donors, nil
}

// ListRecipients returns all recipients, newest registration first.
func (s *Service) ListRecipients(ctx context.Context) ([]*domain.Recipient, error) {
	recipients, err := s.stores.Recipients.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, "list recipients", err)
	}
	return recipients, nil
}

// DonorContact is the contact card returned to matched recipients.
type DonorContact struct {
	DonorName     string
	ContactNumber string
	Email         string
	City          string
}

// Contact resolves a donor's contact details. Unlike the read-side ledger
// enrichment, this path treats a missing donor as a hard error.
func (s *Service) Contact(ctx context.Context, donorID string) (*DonorContact, error) {
	if strings.TrimSpace(donorID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "missing fields: donorId")
	}
	donor, err := s.stores.Donors.FindByID(ctx, donorID)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrMalformedID):
			return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "malformed donor id")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "donor not found")
		default:
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, "look up donor", err)
		}
	}
	return &DonorContact{
		DonorName:     donor.FullName,
		ContactNumber: donor.ContactNumber,
		Email:         donor.Email,
		City:          donor.City,
	}, nil
}
