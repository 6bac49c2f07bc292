package core

import (
	"math"
	"time"

	"github.com/jonboulle/clockwork"
)

// TokenBucket admits control messages for one connection.
// Refill is lazy, computed on every Consume from elapsed clock time.
// Not safe for concurrent use; the owning room serializes access.
type TokenBucket struct {
	clock      clockwork.Clock
	capacity   float64
	tokens     float64
	fillRate   float64
	lastRefill time.Time
}

func NewTokenBucket(clock clockwork.Clock, capacity, fillRatePerSec float64) *TokenBucket {
	return &TokenBucket{
		clock:      clock,
		capacity:   capacity,
		tokens:     capacity,
		fillRate:   fillRatePerSec,
		lastRefill: clock.Now(),
	}
}

// Consume deducts cost and reports true if enough tokens are available.
// A denied request leaves the balance untouched.
func (b *TokenBucket) Consume(cost float64) bool {
	now := b.clock.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	b.lastRefill = now
	b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.fillRate)
	if b.tokens >= cost {
		b.tokens -= cost
		return true
	}
	return false
}

// Tokens is the balance as of the last Consume.
func (b *TokenBucket) Tokens() float64 { return b.tokens }

func (b *TokenBucket) Capacity() float64 { return b.capacity }
