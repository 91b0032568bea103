package mint

import (
	"sync"
	"time"
)

// breaker opens after threshold consecutive failures and rejects calls
// until openFor has elapsed.
type breaker struct {
	mu                  sync.Mutex
	threshold           int
	openFor             time.Duration
	consecutiveFailures int
	openUntil           time.Time
}

func (b *breaker) beforeSend(now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.openUntil.IsZero() && now.Before(b.openUntil) {
		return ErrCircuitOpen
	}
	return nil
}

func (b *breaker) afterFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures++
	if b.threshold > 0 && b.consecutiveFailures >= b.threshold {
		b.openUntil = now.Add(b.openFor)
		b.consecutiveFailures = 0
	}
}

func (b *breaker) afterSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFailures = 0
	b.openUntil = time.Time{}
}
