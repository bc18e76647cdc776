package resilience

import (
	"sync"
	"time"
)

// RateLimiter is a per-key sliding-window counter. Each key gets its own
// window of event timestamps; events older than the window are pruned on
// every check.
type RateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	buckets map[string][]time.Time
	now     func() time.Time

	lastSweep time.Time
}

// NewRateLimiter builds a limiter with the given window size.
func NewRateLimiter(window time.Duration) *RateLimiter {
	return &RateLimiter{
		window:  window,
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Allow records one event for key if the key is under limit within the
// window, and returns the decision either way.
func (r *RateLimiter) Allow(key string, limit int) Decision {
	if limit <= 0 {
		return Decision{Allowed: true}
	}
	now := r.now()
	cutoff := now.Add(-r.window)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(now, cutoff)

	events := r.buckets[key]
	kept := events[:0]
	for _, t := range events {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		retryAfter := kept[0].Add(r.window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		r.buckets[key] = kept
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retryAfter}
	}

	kept = append(kept, now)
	r.buckets[key] = kept
	return Decision{Allowed: true, Remaining: limit - len(kept)}
}

// sweepLocked drops fully expired buckets at most once per window to keep
// the map from growing with one-off keys.
func (r *RateLimiter) sweepLocked(now, cutoff time.Time) {
	if now.Sub(r.lastSweep) < r.window {
		return
	}
	r.lastSweep = now
	for key, events := range r.buckets {
		alive := false
		for _, t := range events {
			if t.After(cutoff) {
				alive = true
				break
			}
		}
		if !alive {
			delete(r.buckets, key)
		}
	}
}
