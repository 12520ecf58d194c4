package dispatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/webhooks"
)

func TestWorker_RecoversFromPanickingDelivery(t *testing.T) {
	feed := newMemoryFeed()
	logger := newCaptureLogger()
	var calls atomic.Int32
	registry := newTestRegistry(t, feed, deliverFunc(func(context.Context, context.Context, string, core.Message) webhooks.Result {
		if calls.Add(1) == 1 {
			panic("callback exploded")
		}
		return delivered()
	}), WithLogger(logger))
	message := feed.append("t1", "boom")
	if err := registry.Start(context.Background(), "t1", "https://hooks.example.com"); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, "delivery after panic", func() bool { return feed.deliveredCount(message.ID) == 1 })
	if !logger.has("error", "dispatch iteration panicked") {
		t.Fatalf("expected panic to be logged")
	}
	if !registry.IsRunning("t1") {
		t.Fatalf("expected worker to keep running after panic")
	}
}

func TestWorker_RetriesAfterStoreErrors(t *testing.T) {
	feed := newMemoryFeed()
	feed.cursorErrs = 3
	logger := newCaptureLogger()
	registry := newTestRegistry(t, feed, deliverFunc(func(context.Context, context.Context, string, core.Message) webhooks.Result {
		return delivered()
	}), WithLogger(logger))
	message := feed.append("t1", "eventually")
	if err := registry.Start(context.Background(), "t1", "https://hooks.example.com"); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, "delivery after store recovery", func() bool { return feed.deliveredCount(message.ID) == 1 })
	if !logger.has("warn", "dispatch store operation failed") {
		t.Fatalf("expected store failure warning")
	}
}

func TestWorker_SkipsMessagesBehindCursor(t *testing.T) {
	feed := newMemoryFeed()
	old := feed.append("t1", "already handled")
	fresh := feed.append("t1", "new")
	if err := feed.Advance(context.Background(), "t1", old.Seq); err != nil {
		t.Fatalf("advance: %v", err)
	}
	seen := make(chan string, 4)
	registry := newTestRegistry(t, feed, deliverFunc(func(_ context.Context, _ context.Context, _ string, message core.Message) webhooks.Result {
		seen <- message.ID
		return delivered()
	}))
	if err := registry.Start(context.Background(), "t1", "https://hooks.example.com"); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, "fresh delivery", func() bool { return feed.deliveredCount(fresh.ID) == 1 })
	registry.Stop(context.Background(), "t1")
	close(seen)
	for id := range seen {
		if id == old.ID {
			t.Fatalf("message behind cursor was redelivered")
		}
	}
}

func TestWorker_SkipsTerminalMessagesAheadOfCursor(t *testing.T) {
	feed := newMemoryFeed()
	done := feed.append("t1", "marked but not advanced")
	next := feed.append("t1", "pending")
	if err := feed.MarkDelivered(context.Background(), done.ID, 1); err != nil {
		t.Fatalf("mark: %v", err)
	}
	registry := newTestRegistry(t, feed, deliverFunc(func(context.Context, context.Context, string, core.Message) webhooks.Result {
		return delivered()
	}))
	if err := registry.Start(context.Background(), "t1", "https://hooks.example.com"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "pending delivery", func() bool { return feed.deliveredCount(next.ID) == 1 })
	if feed.deliveredCount(done.ID) != 1 {
		t.Fatalf("terminal message delivered twice")
	}
}

func TestWorker_WakeShortCircuitsPoll(t *testing.T) {
	feed := newMemoryFeed()
	cfg := testConfig()
	cfg.PollInterval = time.Hour
	registry := newTestRegistry(t, feed, deliverFunc(func(context.Context, context.Context, string, core.Message) webhooks.Result {
		return delivered()
	}), WithConfig(cfg))
	if err := registry.Start(context.Background(), "t1", "https://hooks.example.com"); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Let the worker observe an empty feed and park on the poll timer.
	time.Sleep(20 * time.Millisecond)

	message := feed.append("t1", "wake up")
	registry.Wake("t1")
	waitFor(t, "woken delivery", func() bool { return feed.deliveredCount(message.ID) == 1 })
}

func TestWorker_StatusCounters(t *testing.T) {
	feed := newMemoryFeed()
	registry := newTestRegistry(t, feed, deliverFunc(func(_ context.Context, _ context.Context, _ string, message core.Message) webhooks.Result {
		if message.Content == "reject" {
			return webhooks.Result{
				Outcome:     webhooks.OutcomeFailed,
				LastOutcome: webhooks.OutcomeRejected,
				Attempts:    1,
				StatusCode:  410,
			}
		}
		return delivered()
	}))
	feed.append("t1", "ok")
	feed.append("t1", "reject")
	if err := registry.Start(context.Background(), "t1", "https://hooks.example.com"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "cursor at 2", func() bool { return feed.cursor("t1") == 2 })

	status := registry.worker("t1").Status()
	if status.Delivered != 1 || status.Failed != 1 {
		t.Fatalf("unexpected counters %+v", status)
	}
	if status.StartedAt.IsZero() || status.State != string(StateRunning) {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestWorker_StopBoundedByCallerContext(t *testing.T) {
	feed := newMemoryFeed()
	cfg := testConfig()
	cfg.ShutdownGrace = time.Hour
	started := make(chan struct{}, 1)
	registry := newTestRegistry(t, feed, deliverFunc(func(_ context.Context, hard context.Context, _ string, _ core.Message) webhooks.Result {
		select {
		case started <- struct{}{}:
		default:
		}
		<-hard.Done()
		return webhooks.Result{Outcome: webhooks.OutcomeAbandoned}
	}), WithConfig(cfg))
	feed.append("t1", "stuck")
	if err := registry.Start(context.Background(), "t1", "https://hooks.example.com"); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	stoppedAt := time.Now()
	registry.Stop(ctx, "t1")
	if time.Since(stoppedAt) > 2*time.Second {
		t.Fatalf("stop ignored caller deadline")
	}
	if feed.cursor("t1") != 0 {
		t.Fatalf("abandoned message must not advance the cursor")
	}
}
