package spotify

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a sliding-window limiter: at most maxRequests calls start
// within any window.
type RateLimiter struct {
	mu          sync.Mutex
	starts      []time.Time
	maxRequests int
	window      time.Duration
	enabled     bool
}

// NewRateLimiter creates a limiter. A disabled limiter never blocks.
func NewRateLimiter(enabled bool, maxRequests int, windowSeconds float64) *RateLimiter {
	if maxRequests < 1 {
		maxRequests = 1
	}
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      time.Duration(windowSeconds * float64(time.Second)),
		enabled:     enabled,
	}
}

// Wait blocks until a call may start or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if !rl.enabled {
		return nil
	}
	for {
		wait := rl.reserve(time.Now())
		if wait <= 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve records a call at now and returns 0, or returns how long to wait.
func (rl *RateLimiter) reserve(now time.Time) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-rl.window)
	kept := rl.starts[:0]
	for _, t := range rl.starts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	rl.starts = kept

	if len(rl.starts) < rl.maxRequests {
		rl.starts = append(rl.starts, now)
		return 0
	}
	if wait := rl.window - now.Sub(rl.starts[0]); wait > 0 {
		return wait
	}
	return time.Millisecond
}

// RateLimitInfo describes a rate limit reported by Spotify.
type RateLimitInfo struct {
	Active            bool      `json:"active"`
	RetryAfterSeconds int       `json:"retry_after_seconds"`
	RetryAt           time.Time `json:"retry_at"`
	DetectedAt        time.Time `json:"detected_at"`
}

// RateLimitTracker remembers the last 429 until its Retry-After passes.
type RateLimitTracker struct {
	mu   sync.Mutex
	info *RateLimitInfo
	now  func() time.Time
}

// NewRateLimitTracker creates an empty tracker.
func NewRateLimitTracker() *RateLimitTracker {
	return &RateLimitTracker{now: time.Now}
}

// Update records a rate limit lasting retryAfterSeconds.
func (t *RateLimitTracker) Update(retryAfterSeconds int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.info = &RateLimitInfo{
		Active:            true,
		RetryAfterSeconds: retryAfterSeconds,
		RetryAt:           now.Add(time.Duration(retryAfterSeconds) * time.Second),
		DetectedAt:        now,
	}
}

// Info returns a copy of the active limit, or nil once it has expired.
func (t *RateLimitTracker) Info() *RateLimitInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.info == nil {
		return nil
	}
	if !t.now().Before(t.info.RetryAt) {
		t.info = nil
		return nil
	}
	info := *t.info
	return &info
}

// Clear drops any recorded limit.
func (t *RateLimitTracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.info = nil
}
