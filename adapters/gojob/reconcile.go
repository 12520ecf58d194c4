package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-relay/core"
)

const (
	JobIDReconcile      = "relay.dispatch.reconcile"
	ScriptPathReconcile = "relay/dispatch/reconcile"

	defaultReconcileRetryDelay = 5 * time.Second
)

// Reconciler is the slice of the relay service the reconcile job drives.
type Reconciler interface {
	Reconcile(ctx context.Context) (core.ReconcileResult, error)
}

// NewReconcileMessage builds a reconcile job. Jobs that share key collapse
// under the queue's dedup policy.
func NewReconcileMessage(key string) *core.JobExecutionMessage {
	key = strings.TrimSpace(key)
	if key == "" {
		key = JobIDReconcile
	}
	return &core.JobExecutionMessage{
		JobID:          JobIDReconcile,
		ScriptPath:     ScriptPathReconcile,
		Parameters:     map[string]any{},
		IdempotencyKey: key,
		DedupPolicy:    "drop",
	}
}

// ScheduleReconcile enqueues a reconcile job.
func ScheduleReconcile(ctx context.Context, enqueuer core.JobEnqueuer, key string) error {
	if enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is required")
	}
	return enqueuer.Enqueue(ctx, NewReconcileMessage(key))
}

// ReconcileProcessor pulls reconcile jobs and runs them against the service.
// A failed pass is nacked with a bounded retry; jobs for other ids are
// dead-lettered.
type ReconcileProcessor struct {
	dequeuer   core.JobDequeuer
	reconciler Reconciler
	hook       core.JobWorkerHook
	retryDelay time.Duration
	logger     core.Logger
	now        func() time.Time

	mu       sync.Mutex
	attempts map[string]int
}

type ReconcileOption func(*ReconcileProcessor)

func WithReconcileHook(hook core.JobWorkerHook) ReconcileOption {
	return func(p *ReconcileProcessor) {
		p.hook = hook
	}
}

func WithReconcileRetryDelay(delay time.Duration) ReconcileOption {
	return func(p *ReconcileProcessor) {
		if delay > 0 {
			p.retryDelay = delay
		}
	}
}

func WithReconcileLogger(logger core.Logger) ReconcileOption {
	return func(p *ReconcileProcessor) {
		p.logger = glog.Ensure(logger)
	}
}

func NewReconcileProcessor(dequeuer core.JobDequeuer, reconciler Reconciler, opts ...ReconcileOption) (*ReconcileProcessor, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	if reconciler == nil {
		return nil, fmt.Errorf("gojob: reconciler is required")
	}
	p := &ReconcileProcessor{
		dequeuer:   dequeuer,
		reconciler: reconciler,
		retryDelay: defaultReconcileRetryDelay,
		logger:     glog.Nop(),
		now:        func() time.Time { return time.Now().UTC() },
		attempts:   map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// ProcessNext handles one delivery. The returned result is the reconcile
// outcome when the job ran successfully.
func (p *ReconcileProcessor) ProcessNext(ctx context.Context) (core.ReconcileResult, error) {
	delivery, err := p.dequeuer.Dequeue(ctx)
	if err != nil {
		return core.ReconcileResult{}, err
	}
	message := delivery.Message()
	if message == nil || message.JobID != JobIDReconcile {
		jobID := ""
		if message != nil {
			jobID = message.JobID
		}
		if err := delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: "unsupported job " + jobID}); err != nil {
			return core.ReconcileResult{}, err
		}
		return core.ReconcileResult{}, fmt.Errorf("gojob: unsupported job %q", jobID)
	}

	key := message.IdempotencyKey
	attempt := p.nextAttempt(key)
	event := core.JobWorkerEvent{Message: message, Attempt: attempt, StartedAt: p.now()}
	p.onStart(ctx, event)

	result, runErr := p.reconciler.Reconcile(ctx)
	event.Duration = p.now().Sub(event.StartedAt)
	if runErr != nil {
		event.Err = runErr
		event.Delay = p.retryDelay
		p.logger.Warn("reconcile job failed", "job_id", message.JobID, "attempt", attempt, "error", runErr.Error())
		p.onRetry(ctx, event)
		nack := core.JobNackOptions{Delay: p.retryDelay, Requeue: true, Reason: runErr.Error()}
		if adapter, ok := delivery.(*DeliveryAdapter); ok {
			err = adapter.NackForAttempt(ctx, nack, attempt)
		} else {
			err = delivery.Nack(ctx, nack)
		}
		if err != nil {
			return core.ReconcileResult{}, err
		}
		return core.ReconcileResult{}, runErr
	}

	p.resetAttempts(key)
	p.logger.Info("reconcile job completed",
		"job_id", message.JobID,
		"started", len(result.Started),
		"stopped", len(result.Stopped),
		"failed", len(result.Failed),
	)
	p.onSuccess(ctx, event)
	if err := delivery.Ack(ctx); err != nil {
		return result, err
	}
	return result, nil
}

func (p *ReconcileProcessor) nextAttempt(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts[key]++
	return p.attempts[key]
}

func (p *ReconcileProcessor) resetAttempts(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.attempts, key)
}

func (p *ReconcileProcessor) onStart(ctx context.Context, event core.JobWorkerEvent) {
	if p.hook != nil {
		p.hook.OnStart(ctx, event)
	}
}

func (p *ReconcileProcessor) onSuccess(ctx context.Context, event core.JobWorkerEvent) {
	if p.hook != nil {
		p.hook.OnSuccess(ctx, event)
	}
}

func (p *ReconcileProcessor) onRetry(ctx context.Context, event core.JobWorkerEvent) {
	if p.hook != nil {
		p.hook.OnRetry(ctx, event)
	}
}
