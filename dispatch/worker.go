package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/webhooks"
)

type State string

const (
	StateCreated  State = "created"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// Deliverer runs the full attempt loop for one message. Implementations
// should return promptly once hard is cancelled; a worker that is still busy
// one grace period after that is detached and left to finish on its own.
type Deliverer interface {
	Deliver(loop context.Context, hard context.Context, callbackURL string, message core.Message) webhooks.Result
}

// StatusWriter records the terminal delivery status of a message.
type StatusWriter interface {
	MarkDelivered(ctx context.Context, id string, attempts int) error
	MarkFailed(ctx context.Context, id string, reason string, attempts int) error
}

type Worker struct {
	tenantID    string
	callbackURL string
	feed        core.InboundFeed
	statuses    StatusWriter
	deliverer   Deliverer
	poll        time.Duration
	grace       time.Duration
	log         *eventLogger

	loopCtx    context.Context
	loopCancel context.CancelFunc
	hardCtx    context.Context
	hardCancel context.CancelFunc
	wake       chan struct{}
	running    chan struct{}
	done       chan struct{}

	mu        sync.Mutex
	state     State
	startedAt time.Time
	delivered atomic.Int64
	failed    atomic.Int64

	onEnter func()
	onExit  func()
}

func (w *Worker) TenantID() string {
	return w.tenantID
}

func (w *Worker) CallbackURL() string {
	return w.callbackURL
}

func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) setState(state State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = state
}

func (w *Worker) Status() core.DispatchStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return core.DispatchStatus{
		TenantID:    w.tenantID,
		CallbackURL: w.callbackURL,
		State:       string(w.state),
		StartedAt:   w.startedAt,
		Delivered:   w.delivered.Load(),
		Failed:      w.failed.Load(),
	}
}

// start launches the loop and returns once it is running.
func (w *Worker) start() {
	go w.run()
	<-w.running
}

// stop cancels the loop and waits up to the grace period for an in-flight
// attempt to finish before hard-cancelling it. The wait after the hard
// cancel is bounded by another grace period.
func (w *Worker) stop(ctx context.Context) {
	w.mu.Lock()
	if w.state == StateRunning || w.state == StateCreated {
		w.state = StateStopping
	}
	w.mu.Unlock()
	w.loopCancel()

	timer := time.NewTimer(w.grace)
	defer timer.Stop()
	select {
	case <-w.done:
		w.hardCancel()
		return
	case <-timer.C:
	case <-ctx.Done():
	}
	w.log.warn(ctx, "dispatch worker exceeded shutdown grace, abandoning in-flight delivery", map[string]any{
		"tenant_id":    w.tenantID,
		"callback_url": w.callbackURL,
		"grace_ms":     w.grace.Milliseconds(),
	})
	w.hardCancel()

	timer.Reset(w.grace)
	select {
	case <-w.done:
	case <-timer.C:
		w.log.warn(ctx, "dispatch worker ignored hard cancel, detaching", map[string]any{
			"tenant_id":    w.tenantID,
			"callback_url": w.callbackURL,
		})
	}
}

func (w *Worker) notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Worker) run() {
	if w.onEnter != nil {
		w.onEnter()
	}
	defer func() {
		w.setState(StateStopped)
		if w.onExit != nil {
			w.onExit()
		}
		close(w.done)
	}()

	w.mu.Lock()
	w.state = StateRunning
	w.startedAt = time.Now().UTC()
	w.mu.Unlock()
	close(w.running)

	for w.loopCtx.Err() == nil {
		if w.step() {
			continue
		}
		w.idle()
	}
}

func (w *Worker) idle() {
	timer := time.NewTimer(w.poll)
	defer timer.Stop()
	select {
	case <-w.loopCtx.Done():
	case <-w.wake:
	case <-timer.C:
	}
}

// step handles at most one message. It reports whether the loop should try
// the next message immediately.
func (w *Worker) step() (progressed bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			w.log.error(w.loopCtx, "dispatch iteration panicked", map[string]any{
				"tenant_id": w.tenantID,
				"panic":     fmt.Sprint(recovered),
			})
			progressed = false
		}
	}()

	ctx := w.loopCtx
	cursor, err := w.feed.Cursor(ctx, w.tenantID)
	if err != nil {
		w.storeError(ctx, "read cursor", err)
		return false
	}
	message, ok, err := w.feed.NextUndelivered(ctx, w.tenantID, cursor)
	if err != nil {
		w.storeError(ctx, "read feed", err)
		return false
	}
	if !ok {
		return false
	}

	startedAt := time.Now()
	result := w.deliverer.Deliver(w.loopCtx, w.hardCtx, w.callbackURL, message)
	fields := map[string]any{
		"tenant_id":   w.tenantID,
		"message_id":  message.ID,
		"seq":         message.Seq,
		"attempts":    result.Attempts,
		"outcome":     string(result.Outcome),
		"duration_ms": time.Since(startedAt).Milliseconds(),
	}
	if result.StatusCode > 0 {
		fields["status_code"] = result.StatusCode
	}
	w.log.observe(ctx, result, fields)

	// Terminal writes use the hard context so a delivery that completed
	// during the grace period is still recorded.
	switch result.Outcome {
	case webhooks.OutcomeDelivered:
		if err := w.statuses.MarkDelivered(w.hardCtx, message.ID, result.Attempts); err != nil {
			w.storeError(ctx, "mark delivered", err)
			return false
		}
		w.delivered.Add(1)
	case webhooks.OutcomeFailed:
		if err := w.statuses.MarkFailed(w.hardCtx, message.ID, webhooks.FailureReason(result), result.Attempts); err != nil {
			w.storeError(ctx, "mark failed", err)
			return false
		}
		w.failed.Add(1)
	default:
		return false
	}
	if err := w.feed.Advance(w.hardCtx, w.tenantID, message.Seq); err != nil {
		w.storeError(ctx, "advance cursor", err)
		return false
	}
	return true
}

func (w *Worker) storeError(ctx context.Context, op string, err error) {
	if w.loopCtx.Err() != nil {
		return
	}
	w.log.warn(ctx, "dispatch store operation failed", map[string]any{
		"tenant_id": w.tenantID,
		"operation": op,
		"error":     err.Error(),
	})
}
