package signal

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// pruneThreshold is the tracked-address count above which Allow drops idle entries.
const pruneThreshold = 1024

// HandshakeLimiter is a sliding-window limit on websocket upgrades per address.
type HandshakeLimiter struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	history  map[string][]time.Time
	limit    int
	interval time.Duration
}

func NewHandshakeLimiter(clock clockwork.Clock, limit int, interval time.Duration) *HandshakeLimiter {
	return &HandshakeLimiter{
		clock:    clock,
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *HandshakeLimiter) Allow(addr string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	windowStart := now.Add(-rl.interval)
	if len(rl.history) > pruneThreshold {
		rl.pruneLocked(windowStart)
	}

	attempts := rl.history[addr]
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[addr] = fresh
		return false
	}

	rl.history[addr] = append(fresh, now)
	return true
}

func (rl *HandshakeLimiter) pruneLocked(windowStart time.Time) {
	for addr, attempts := range rl.history {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(windowStart) {
			delete(rl.history, addr)
		}
	}
}

// Tracked is the number of addresses currently remembered.
func (rl *HandshakeLimiter) Tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.history)
}
