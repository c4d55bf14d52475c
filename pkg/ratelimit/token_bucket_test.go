package ratelimit

import (
	"errors"
	"testing"
	"time"
)

func TestTokenBucket_Conservation(t *testing.T) {
	base := time.Now()
	tb := NewTokenBucketWindow(10, time.Hour)
	tb.now = func() time.Time { return base }
	tb.last = base

	// capacity calls succeed instantly
	for i := 0; i < 10; i++ {
		if err := tb.Check(); err != nil {
			t.Fatalf("call %d unexpectedly limited: %v", i+1, err)
		}
	}

	// the capacity+1-th fails with a RateLimitError carrying retry-after
	err := tb.Check()
	var rle *RateLimitError
	if !errors.As(err, &rle) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rle.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", rle.RetryAfter)
	}

	// after a full window the bucket is back at capacity
	tb.now = func() time.Time { return base.Add(time.Hour) }
	for i := 0; i < 10; i++ {
		if err := tb.Check(); err != nil {
			t.Fatalf("call %d after refill unexpectedly limited: %v", i+1, err)
		}
	}
}

func TestTokenBucket_ContinuousRefill(t *testing.T) {
	base := time.Now()
	tb := NewTokenBucketWindow(60, time.Hour) // one token per minute
	tb.now = func() time.Time { return base }
	tb.last = base

	for i := 0; i < 60; i++ {
		if err := tb.Check(); err != nil {
			t.Fatalf("drain call %d failed: %v", i+1, err)
		}
	}
	if err := tb.Check(); err == nil {
		t.Fatal("expected limit after drain")
	}

	// one minute accrues exactly one token
	tb.now = func() time.Time { return base.Add(time.Minute) }
	if err := tb.Check(); err != nil {
		t.Fatalf("expected one token after a minute: %v", err)
	}
	if err := tb.Check(); err == nil {
		t.Fatal("second call in the same minute should be limited")
	}
}

func TestTokenBucket_RefillNeverExceedsCapacity(t *testing.T) {
	base := time.Now()
	tb := NewTokenBucketWindow(5, time.Hour)
	tb.now = func() time.Time { return base.Add(100 * time.Hour) }

	stats := tb.Stats()
	if stats.Available > float64(stats.Capacity) {
		t.Errorf("available %v exceeds capacity %d", stats.Available, stats.Capacity)
	}
}

func TestTokenBucket_DefaultRate(t *testing.T) {
	tb := NewTokenBucket(0)
	if tb.capacity != 60 {
		t.Errorf("default capacity = %v, want 60", tb.capacity)
	}
}
