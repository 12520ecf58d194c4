package webhooks

import (
	"context"
	"math/rand/v2"
	"time"
)

// Backoff computes equal-jitter exponential delays. For retry n (1-based)
// the base is min(Initial*2^(n-1), Max) and the delay is base/2 plus a
// jitter in [0, base/2), so successive delays strictly increase until the
// cap.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	// Jitter returns a value in [0, limit). Nil uses math/rand/v2.
	Jitter func(limit int64) int64
}

func (b Backoff) Base(retry int) time.Duration {
	initial := b.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := b.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < retry; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

func (b Backoff) Delay(retry int) time.Duration {
	base := b.Base(retry)
	half := base / 2
	if half <= 0 {
		return base
	}
	jitter := b.Jitter
	if jitter == nil {
		jitter = rand.Int64N
	}
	limit := int64(base - half)
	extra := jitter(limit)
	if extra < 0 {
		extra = 0
	}
	if extra >= limit {
		extra = limit - 1
	}
	return half + time.Duration(extra)
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
