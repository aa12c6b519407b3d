package trustledger

import (
	"sync"
	"time"
)

// breaker tracks consecutive trust-service failures:
// - open after failureThreshold consecutive failures; while open, calls are
//   rejected locally instead of hitting a service known to be down
// - after cooldown the breaker half-opens and lets calls probe the service
// - close again after successThreshold consecutive successes
type breaker struct {
	mu               sync.Mutex
	open             bool
	openedAt         time.Time
	cooldown         time.Duration
	failureCount     int
	successCount     int
	failureThreshold int
	successThreshold int
}

func newBreaker() *breaker {
	return &breaker{
		cooldown:         15 * time.Second,
		failureThreshold: 5,
		successThreshold: 2,
	}
}

func (b *breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return false
	}
	// Half-open: after the cooldown the next calls go through as probes.
	return time.Since(b.openedAt) < b.cooldown
}

func (b *breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	b.successCount = 0
	if b.failureCount >= b.failureThreshold {
		b.open = true
		b.openedAt = time.Now()
	}
}

func (b *breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open {
		b.successCount++
		if b.successCount >= b.successThreshold {
			b.open = false
			b.failureCount = 0
			b.successCount = 0
		}
		return
	}
	b.failureCount = 0
}
