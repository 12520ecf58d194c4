package webhooks

import (
	"context"
	"testing"
	"time"
)

func TestBackoff_BaseDoublesUntilCap(t *testing.T) {
	b := Backoff{Initial: 100 * time.Millisecond, Max: time.Second}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, expected := range want {
		if got := b.Base(i + 1); got != expected {
			t.Fatalf("retry %d: expected %s, got %s", i+1, expected, got)
		}
	}
}

func TestBackoff_EqualJitterBounds(t *testing.T) {
	low := Backoff{Initial: time.Second, Max: time.Minute, Jitter: func(int64) int64 { return 0 }}
	high := Backoff{Initial: time.Second, Max: time.Minute, Jitter: func(limit int64) int64 { return limit * 10 }}
	for retry := 1; retry <= 5; retry++ {
		base := low.Base(retry)
		if got := low.Delay(retry); got != base/2 {
			t.Fatalf("retry %d: expected lower bound %s, got %s", retry, base/2, got)
		}
		if got := high.Delay(retry); got >= base || got < base/2 {
			t.Fatalf("retry %d: expected delay in [%s, %s), got %s", retry, base/2, base, got)
		}
	}
}

func TestBackoff_StrictlyIncreasingWithRandomJitter(t *testing.T) {
	b := Backoff{Initial: 10 * time.Millisecond, Max: time.Hour}
	for run := 0; run < 50; run++ {
		previous := time.Duration(0)
		for retry := 1; retry <= 8; retry++ {
			delay := b.Delay(retry)
			if delay <= previous {
				t.Fatalf("run %d retry %d: %s not greater than %s", run, retry, delay, previous)
			}
			previous = delay
		}
	}
}

func TestSleepContext_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	started := time.Now()
	if err := SleepContext(ctx, time.Minute); err == nil {
		t.Fatalf("expected cancellation error")
	}
	if time.Since(started) > time.Second {
		t.Fatalf("sleep did not return promptly")
	}
}
