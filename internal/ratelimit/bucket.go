// Package ratelimit implements the Gateway's single process-wide token
// bucket (spec §4.1): 19 tokens/second across all outbound REST calls to
// the brokerage. It is a small mutex-guarded struct in the same shape as
// the teacher's logger.Rotator, deliberately hand-rolled rather than using
// golang.org/x/time/rate — see SPEC_FULL.md §4.1 for the rationale (the
// spec's 2s caller-side wait-then-reject semantics don't map cleanly onto
// that package's Wait/Reserve API without extra bookkeeping of its own).
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Bucket is a single shared token bucket guarded by a mutex, refilled at a
// fixed rate. It protects the one credential the Gateway process holds.
type Bucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// New creates a Bucket with capacity and refill rate both set to
// ratePerSecond, full at construction time.
func New(ratePerSecond int) *Bucket {
	rate := float64(ratePerSecond)
	return &Bucket{
		tokens:     rate,
		capacity:   rate,
		refillRate: rate,
		lastRefill: time.Now(),
	}
}

func (b *Bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// TryAcquire attempts to take one token immediately, without waiting.
func (b *Bucket) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(time.Now())
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Acquire blocks, polling at a fine grain, until a token is available or
// maxWait elapses. It returns false on timeout — the caller should then
// surface errs.RateLimited to the requester (spec §4.1: "if none available
// within 2s, return RATE_LIMITED").
func (b *Bucket) Acquire(ctx context.Context, maxWait time.Duration) bool {
	deadline := time.Now().Add(maxWait)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	if b.TryAcquire() {
		return true
	}
	for {
		select {
		case <-ctx.Done():
			return false
		case now := <-ticker.C:
			if b.TryAcquire() {
				return true
			}
			if now.After(deadline) {
				return false
			}
		}
	}
}
