package remote

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterWindow is how long an unused key takes to refill its whole burst.
const limiterWindow = time.Minute

type attempt struct {
	lim  *rate.Limiter
	last time.Time
}

// AttemptLimiter throttles credential attempts per key. One limiter is meant
// to be shared by all clients of a process so that opening a new client does
// not reset the count. It is safe for concurrent use.
type AttemptLimiter struct {
	perMinute int

	mu        sync.Mutex
	attempts  map[string]*attempt
	lastSweep time.Time
}

// NewAttemptLimiter allows perMinute attempts per key and minute, with bursts
// of the same size. perMinute <= 0 disables the limit.
func NewAttemptLimiter(perMinute int) *AttemptLimiter {
	return &AttemptLimiter{perMinute: perMinute, attempts: make(map[string]*attempt)}
}

func (l *AttemptLimiter) allow(key string, now time.Time) bool {
	if l == nil || l.perMinute <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)
	a, ok := l.attempts[key]
	if !ok {
		a = &attempt{lim: rate.NewLimiter(rate.Every(limiterWindow/time.Duration(l.perMinute)), l.perMinute)}
		l.attempts[key] = a
	}
	a.last = now
	return a.lim.AllowN(now, 1)
}

// sweep drops keys unused for a full window. Their buckets are full again, so
// a fresh limiter behaves the same.
func (l *AttemptLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < limiterWindow {
		return
	}
	l.lastSweep = now
	for key, a := range l.attempts {
		if now.Sub(a.last) >= limiterWindow {
			delete(l.attempts, key)
		}
	}
}
