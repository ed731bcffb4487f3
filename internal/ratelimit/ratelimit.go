// Package ratelimit throttles the batch routes per client.
//
// Creating and collecting batches fans out real work to the venue, so
// the server caps how fast any one caller can create that work. The
// Limiter interface is the contract; MemoryLimiter is the in-process
// token bucket the server uses, and a shared-store implementation can
// replace it when multiple instances must agree on a caller's budget.
package ratelimit

import "context"

// Limiter decides whether the request identified by key may proceed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow reports whether key has budget for one more request. The
	// key is whatever the caller chooses to meter by; the HTTP layer
	// uses the client IP. An error means the limiter itself broke, and
	// the middleware fails open rather than refusing traffic.
	Allow(ctx context.Context, key string) (bool, error)

	// Close releases whatever the limiter holds (goroutines, connections).
	Close() error
}

// NoopLimiter admits everything. It stands in for a real limiter when
// throttling is switched off.
type NoopLimiter struct{}

// Allow always reports budget.
func (NoopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

// Close does nothing.
func (NoopLimiter) Close() error { return nil }
