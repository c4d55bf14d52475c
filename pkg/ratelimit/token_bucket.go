package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitError reports bucket exhaustion and how long to wait for
// the next token.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %v", e.RetryAfter)
}

// TokenBucket gates outbound fetches. Capacity is the configured
// requests per window; tokens refill continuously at capacity/window,
// computed lazily from the wall clock on each call rather than by a
// background timer.
type TokenBucket struct {
	mu       sync.Mutex
	capacity float64
	tokens   float64
	window   time.Duration
	last     time.Time
	now      func() time.Time
}

// NewTokenBucket builds a bucket for requestsPerHour over a one-hour
// window. Non-positive rates fall back to a conservative default.
func NewTokenBucket(requestsPerHour int) *TokenBucket {
	if requestsPerHour <= 0 {
		requestsPerHour = 60
	}
	return NewTokenBucketWindow(requestsPerHour, time.Hour)
}

func NewTokenBucketWindow(capacity int, window time.Duration) *TokenBucket {
	now := time.Now
	return &TokenBucket{
		capacity: float64(capacity),
		tokens:   float64(capacity),
		window:   window,
		last:     now(),
		now:      now,
	}
}

// Check consumes one token or fails with a RateLimitError carrying the
// wait until the next token accrues.
func (tb *TokenBucket) Check() error {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens >= 1 {
		tb.tokens--
		return nil
	}

	perToken := float64(tb.window) / tb.capacity
	wait := time.Duration((1 - tb.tokens) * perToken)
	return &RateLimitError{RetryAfter: wait}
}

// refill credits tokens for the time elapsed since the last check.
// Caller holds the mutex.
func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.last)
	if elapsed <= 0 {
		return
	}
	tb.last = now

	tb.tokens += tb.capacity * float64(elapsed) / float64(tb.window)
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
}

// Stats reports the bucket state for the status surface.
func (tb *TokenBucket) Stats() Stats {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return Stats{
		Capacity:  int(tb.capacity),
		Available: tb.tokens,
		Window:    tb.window,
	}
}

type Stats struct {
	Capacity  int           `json:"capacity"`
	Available float64       `json:"available"`
	Window    time.Duration `json:"window"`
}
