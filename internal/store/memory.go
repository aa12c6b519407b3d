package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"organlink/internal/domain"
	"organlink/pkg/platform/sentinel"
)

// NewMemoryStores returns a Stores bundle backed by process memory. Used in
// dev mode and as the test double for the engine and views.
func NewMemoryStores() *Stores {
	return &Stores{
		Donors:     NewMemoryDonorStore(),
		Recipients: NewMemoryRecipientStore(),
		Matches:    NewMemoryMatchStore(),
		Ledgers:    NewMemoryLedgerStore(),
	}
}

func validID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return sentinel.ErrMalformedID
	}
	return nil
}

// MemoryDonorStore is a mutex-guarded donor store with uuid ids.
type MemoryDonorStore struct {
	mu     sync.RWMutex
	donors map[string]*domain.Donor
}

func NewMemoryDonorStore() *MemoryDonorStore {
	return &MemoryDonorStore{donors: make(map[string]*domain.Donor)}
}

func (s *MemoryDonorStore) Insert(_ context.Context, donor *domain.Donor) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := *donor
	d.ID = uuid.NewString()
	s.donors[d.ID] = &d
	return d.ID, nil
}

func (s *MemoryDonorStore) FindByID(_ context.Context, id string) (*domain.Donor, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	donor, ok := s.donors[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copy := *donor
	return &copy, nil
}

func (s *MemoryDonorStore) List(_ context.Context) ([]*domain.Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Donor, 0, len(s.donors))
	for _, donor := range s.donors {
		copy := *donor
		out = append(out, &copy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.After(out[j].RegisteredAt) })
	return out, nil
}

func (s *MemoryDonorStore) ListEligible(_ context.Context) ([]*domain.Donor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Donor
	for _, donor := range s.donors {
		if donor.Consumed || !donor.Consent {
			continue
		}
		copy := *donor
		out = append(out, &copy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.Before(out[j].RegisteredAt) })
	return out, nil
}

func (s *MemoryDonorStore) Claim(_ context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	donor, ok := s.donors[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if donor.Consumed {
		return sentinel.ErrConflict
	}
	donor.Consumed = true
	return nil
}

func (s *MemoryDonorStore) ResetConsumed(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, donor := range s.donors {
		donor.Consumed = false
	}
	return nil
}

func (s *MemoryDonorStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.donors = make(map[string]*domain.Donor)
	return nil
}

// MemoryRecipientStore is the recipient counterpart of MemoryDonorStore.
type MemoryRecipientStore struct {
	mu         sync.RWMutex
	recipients map[string]*domain.Recipient
}

func NewMemoryRecipientStore() *MemoryRecipientStore {
	return &MemoryRecipientStore{recipients: make(map[string]*domain.Recipient)}
}

func (s *MemoryRecipientStore) Insert(_ context.Context, recipient *domain.Recipient) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := *recipient
	r.ID = uuid.NewString()
	s.recipients[r.ID] = &r
	return r.ID, nil
}

func (s *MemoryRecipientStore) FindByID(_ context.Context, id string) (*domain.Recipient, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	recipient, ok := s.recipients[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copy := *recipient
	return &copy, nil
}

func (s *MemoryRecipientStore) List(_ context.Context) ([]*domain.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Recipient, 0, len(s.recipients))
	for _, recipient := range s.recipients {
		copy := *recipient
		out = append(out, &copy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.After(out[j].RegisteredAt) })
	return out, nil
}

func (s *MemoryRecipientStore) ListEligible(_ context.Context) ([]*domain.Recipient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Recipient
	for _, recipient := range s.recipients {
		if recipient.Consumed {
			continue
		}
		copy := *recipient
		out = append(out, &copy)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.Before(out[j].RegisteredAt) })
	return out, nil
}

func (s *MemoryRecipientStore) Claim(_ context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	recipient, ok := s.recipients[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if recipient.Consumed {
		return sentinel.ErrConflict
	}
	recipient.Consumed = true
	return nil
}

func (s *MemoryRecipientStore) ResetConsumed(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, recipient := range s.recipients {
		recipient.Consumed = false
	}
	return nil
}

func (s *MemoryRecipientStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipients = make(map[string]*domain.Recipient)
	return nil
}

// MemoryMatchStore keeps committed matches in insertion order.
type MemoryMatchStore struct {
	mu      sync.RWMutex
	matches []*domain.Match
}

func NewMemoryMatchStore() *MemoryMatchStore {
	return &MemoryMatchStore{}
}

func (s *MemoryMatchStore) Insert(_ context.Context, match *domain.Match) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := *match
	m.ID = uuid.NewString()
	s.matches = append(s.matches, &m)
	return m.ID, nil
}

func (s *MemoryMatchStore) List(_ context.Context) ([]*domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Match, 0, len(s.matches))
	for i := len(s.matches) - 1; i >= 0; i-- {
		copy := *s.matches[i]
		out = append(out, &copy)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryMatchStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches = nil
	return nil
}

// MemoryLedgerStore enforces block-id uniqueness, the append-only contract
// the other backends inherit from their unique indexes.
type MemoryLedgerStore struct {
	mu      sync.RWMutex
	records []*domain.LedgerRecord
	blocks  map[string]struct{}
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{blocks: make(map[string]struct{})}
}

func (s *MemoryLedgerStore) Append(_ context.Context, record *domain.LedgerRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.BlockID != "" {
		if _, exists := s.blocks[record.BlockID]; exists {
			return "", sentinel.ErrConflict
		}
	}
	r := *record
	r.ID = uuid.NewString()
	if r.Meta != nil {
		meta := make(map[string]string, len(r.Meta))
		for k, v := range r.Meta {
			meta[k] = v
		}
		r.Meta = meta
	}
	s.records = append(s.records, &r)
	if r.BlockID != "" {
		s.blocks[r.BlockID] = struct{}{}
	}
	return r.ID, nil
}

func (s *MemoryLedgerStore) List(_ context.Context) ([]*domain.LedgerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.LedgerRecord, 0, len(s.records))
	for i := len(s.records) - 1; i >= 0; i-- {
		copy := *s.records[i]
		out = append(out, &copy)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (s *MemoryLedgerStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.blocks = make(map[string]struct{})
	return nil
}
