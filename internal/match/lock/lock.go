// Package lock provides the advisory lock that serializes match cycles, so
// two operators triggering runs at once cannot double-claim a donor.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrHeld is returned when another cycle currently holds the lock.
var ErrHeld = errors.New("match cycle lock held")

// CycleLock guards a whole match run. Acquire returns a release func on
// success and ErrHeld when the lock is taken.
type CycleLock interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Memory is the in-process lock used in single-instance deployments and
// tests.
type Memory struct {
	mu   sync.Mutex
	held bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (l *Memory) Acquire(_ context.Context) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil, ErrHeld
	}
	l.held = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held = false
	}, nil
}
