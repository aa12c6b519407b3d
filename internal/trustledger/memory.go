package trustledger

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLedger is an in-process trust ledger for dev mode and tests.
type MemoryLedger struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

func (l *MemoryLedger) Append(_ context.Context, record Record) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
	return fmt.Sprintf("tx-%06d", len(l.records)), nil
}

func (l *MemoryLedger) ListAll(_ context.Context) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Record{}, l.records...), nil
}
