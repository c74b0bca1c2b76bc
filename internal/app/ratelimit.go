package app

import (
	"time"

	"github.com/dkeye/DigitalRoom/internal/core"
)

type window struct {
	count     int
	lastReset time.Time
}

// RateLimiter allows up to limit events per connection in each fixed window.
// Loop-owned, no locking.
type RateLimiter struct {
	history  map[core.SessionID]*window
	limit    int
	interval time.Duration
}

func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		history:  make(map[core.SessionID]*window),
		limit:    limit,
		interval: interval,
	}
}

func (rl *RateLimiter) Allow(sid core.SessionID, now time.Time) bool {
	w, ok := rl.history[sid]
	// 1. first event or window elapsed: open a new one
	if !ok || now.Sub(w.lastReset) > rl.interval {
		rl.history[sid] = &window{count: 1, lastReset: now}
		return true
	}
	// 2. window full
	if w.count >= rl.limit {
		return false
	}
	w.count++
	return true
}

func (rl *RateLimiter) Forget(sid core.SessionID) { delete(rl.history, sid) }

// Prune drops windows older than two intervals. Returns how many went.
func (rl *RateLimiter) Prune(now time.Time) int {
	n := 0
	for sid, w := range rl.history {
		if now.Sub(w.lastReset) > 2*rl.interval {
			delete(rl.history, sid)
			n++
		}
	}
	return n
}

func (rl *RateLimiter) Len() int { return len(rl.history) }
