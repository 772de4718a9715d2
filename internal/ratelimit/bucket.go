// Package ratelimit implements a plain token bucket, shared by the
// telemetry collector's per-second event cap and each policy's
// rate_limit window.
//
// Unlike a fixed-cost-per-transition model, every caller here consumes
// a single token per admitted unit of work (one event, one action
// execution). Capacity is refilled to full once per window rather than
// incrementally, matching the teacher's bucket semantics.
//
// Invariants:
//   - tokens ∈ [0, capacity] at all times.
//   - Consume() is atomic under mutex.
//   - Refill goroutine runs for the lifetime of the Bucket.
package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"
)

// Bucket is a thread-safe token bucket.
type Bucket struct {
	mu           sync.Mutex
	capacity     int
	tokens       int
	refillPeriod time.Duration

	consumedTotal atomic.Uint64
	refillCount   atomic.Uint64

	stop chan struct{}
}

// New creates a Bucket with the given capacity and starts the refill
// goroutine. capacity must be > 0, refillPeriod must be > 0. Call
// Close() to stop the refill goroutine.
func New(capacity int, refillPeriod time.Duration) *Bucket {
	if capacity <= 0 {
		panic("ratelimit.Bucket: capacity must be > 0")
	}
	if refillPeriod <= 0 {
		panic("ratelimit.Bucket: refillPeriod must be > 0")
	}
	b := &Bucket{
		capacity:     capacity,
		tokens:       capacity,
		refillPeriod: refillPeriod,
		stop:         make(chan struct{}),
	}
	go b.refillLoop()
	return b
}

func (b *Bucket) refillLoop() {
	ticker := time.NewTicker(b.refillPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.mu.Lock()
			b.tokens = b.capacity
			b.mu.Unlock()
			b.refillCount.Add(1)
		case <-b.stop:
			return
		}
	}
}

// Allow attempts to consume a single token. Returns true if one was
// available.
func (b *Bucket) Allow() bool {
	return b.Consume(1)
}

// Consume attempts to consume cost tokens. Returns true if the tokens
// were available and consumed.
func (b *Bucket) Consume(cost int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tokens >= cost {
		b.tokens -= cost
		b.consumedTotal.Add(uint64(cost))
		return true
	}
	return false
}

// Remaining reports how many tokens could be consumed right now.
func (b *Bucket) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

// Capacity reports the ceiling tokens refill to.
func (b *Bucket) Capacity() int { return b.capacity }

// ConsumedTotal is the running sum of every admitted Consume/Allow cost,
// exposed for the caller's own counters rather than maintained here.
func (b *Bucket) ConsumedTotal() uint64 { return b.consumedTotal.Load() }

// RefillCount is how many times the ticker has topped the bucket back
// up to capacity since New.
func (b *Bucket) RefillCount() uint64 { return b.refillCount.Load() }

// Close stops the refill goroutine. A Bucket left unclosed leaks it.
func (b *Bucket) Close() { close(b.stop) }
