package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Idle clients are dropped to bound the map. Ten minutes is far longer
// than any collect timeout, so a client mid-batch is never forgotten
// between its submit and its collect.
const (
	sweepInterval = time.Minute
	clientIdleTTL = 10 * time.Minute
)

// clientBucket tracks the remaining token allowance for one caller.
type clientBucket struct {
	remaining float64
	seenAt    time.Time
}

// MemoryLimiter is a per-client token bucket held in process memory.
//
// The server keys it by client IP, so each caller hitting the batch
// routes gets an independent allowance: burst tokens up front, refilled
// at rate tokens per second. Submitting a batch and collecting it are
// one token each; the fan-out behind a batch is not counted, only the
// requests that create work.
//
// A sweep goroutine drops clients idle past clientIdleTTL. Call Close
// to stop it.
type MemoryLimiter struct {
	refillPerSec float64
	capacity     float64

	mu      sync.Mutex
	clients map[string]*clientBucket

	stopOnce sync.Once
	stopped  chan struct{}
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter creates a limiter allowing rate sustained requests
// per second per client with bursts up to burst.
func NewMemoryLimiter(rate float64, burst int) *MemoryLimiter {
	m := &MemoryLimiter{
		refillPerSec: rate,
		capacity:     float64(burst),
		clients:      make(map[string]*clientBucket),
		stopped:      make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Allow spends one token from key's bucket. A false return means the
// caller has exhausted its allowance and should be told to back off.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clients[key]
	if !ok {
		c = &clientBucket{remaining: m.capacity, seenAt: now}
		m.clients[key] = c
	} else {
		// Credit tokens for the time since this client was last seen,
		// capped at capacity.
		c.remaining = min(m.capacity, c.remaining+now.Sub(c.seenAt).Seconds()*m.refillPerSec)
		c.seenAt = now
	}

	if c.remaining < 1 {
		return false, nil
	}
	c.remaining--
	return true, nil
}

// Close stops the sweep goroutine. Idempotent.
func (m *MemoryLimiter) Close() error {
	m.stopOnce.Do(func() { close(m.stopped) })
	return nil
}

func (m *MemoryLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopped:
			return
		case <-ticker.C:
			m.dropIdle(time.Now())
		}
	}
}

// dropIdle removes clients not seen since clientIdleTTL before now.
func (m *MemoryLimiter) dropIdle(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, c := range m.clients {
		if now.Sub(c.seenAt) > clientIdleTTL {
			delete(m.clients, key)
		}
	}
}
