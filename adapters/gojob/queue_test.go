package gojob

import (
	"context"
	"errors"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"

	"github.com/goliatone/go-relay/core"
)

func TestExecutionMessageRoundTripTrimsAndCopies(t *testing.T) {
	params := map[string]any{"tenant_id": "tenant-1"}
	in := &core.JobExecutionMessage{
		JobID:          " " + JobIDReconcile + " ",
		ScriptPath:     ScriptPathReconcile,
		Parameters:     params,
		IdempotencyKey: " reconcile-1 ",
		DedupPolicy:    "drop",
	}

	mapped := ToExecutionMessage(in)
	if mapped.JobID != JobIDReconcile || mapped.IdempotencyKey != "reconcile-1" {
		t.Fatalf("expected trimmed job fields, got %#v", mapped)
	}
	if mapped.DedupPolicy != job.DeduplicationPolicy("drop") {
		t.Fatalf("expected drop dedup policy, got %q", mapped.DedupPolicy)
	}
	params["tenant_id"] = "mutated"
	if mapped.Parameters["tenant_id"] != "tenant-1" {
		t.Fatalf("expected parameters to be copied")
	}

	back := FromExecutionMessage(mapped)
	if back.JobID != JobIDReconcile || back.DedupPolicy != "drop" {
		t.Fatalf("unexpected reverse mapping: %#v", back)
	}
	if ToExecutionMessage(nil) != nil || FromExecutionMessage(nil) != nil {
		t.Fatalf("expected nil messages to map to nil")
	}
}

func TestRetryPolicyNormalizeAttempt(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, MaxDelay: time.Minute, DeadLetterOnMax: true}

	early := policy.NormalizeAttempt(core.JobNackOptions{Delay: time.Hour, Reason: " boom "}, 1)
	if !early.Requeue || early.DeadLetter {
		t.Fatalf("expected requeue before max attempts, got %#v", early)
	}
	if early.Delay != time.Minute {
		t.Fatalf("expected delay clamped to one minute, got %s", early.Delay)
	}
	if early.Reason != "boom" {
		t.Fatalf("expected trimmed reason, got %q", early.Reason)
	}

	last := policy.NormalizeAttempt(core.JobNackOptions{Requeue: true}, 3)
	if last.Requeue || !last.DeadLetter {
		t.Fatalf("expected dead letter at max attempts, got %#v", last)
	}

	negative := RetryPolicy{}.NormalizeAttempt(core.JobNackOptions{Delay: -time.Second}, 0)
	if negative.Delay != 0 {
		t.Fatalf("expected negative delay to be clamped, got %s", negative.Delay)
	}
}

func TestEnqueuerAdapterForwardsMessage(t *testing.T) {
	stub := &stubQueueEnqueuer{}
	adapter := NewEnqueuerAdapter(stub)
	if err := ScheduleReconcile(context.Background(), adapter, ""); err != nil {
		t.Fatalf("schedule reconcile: %v", err)
	}
	if stub.last == nil || stub.last.JobID != JobIDReconcile {
		t.Fatalf("expected reconcile job to be enqueued, got %#v", stub.last)
	}
	if stub.last.IdempotencyKey != JobIDReconcile {
		t.Fatalf("expected default idempotency key, got %q", stub.last.IdempotencyKey)
	}
	if err := adapter.Enqueue(context.Background(), nil); err == nil {
		t.Fatalf("expected nil message to fail")
	}
	if err := NewEnqueuerAdapter(nil).Enqueue(context.Background(), NewReconcileMessage("k")); err == nil {
		t.Fatalf("expected unconfigured enqueuer to fail")
	}
}

func TestDeliveryAdapterNackAppliesPolicy(t *testing.T) {
	delivery := &stubQueueDelivery{msg: ToExecutionMessage(NewReconcileMessage("k"))}
	adapter := NewDeliveryAdapter(delivery, RetryPolicy{MaxAttempts: 2, DeadLetterOnMax: true})

	if got := adapter.Message(); got == nil || got.JobID != JobIDReconcile {
		t.Fatalf("unexpected message %#v", got)
	}
	if err := adapter.NackForAttempt(context.Background(), core.JobNackOptions{Requeue: true}, 2); err != nil {
		t.Fatalf("nack: %v", err)
	}
	if delivery.nack.Requeue || !delivery.nack.DeadLetter {
		t.Fatalf("expected dead letter nack, got %#v", delivery.nack)
	}
	if err := adapter.Ack(context.Background()); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if !delivery.acked {
		t.Fatalf("expected ack to be forwarded")
	}
}

func TestDequeuerAdapterWrapsDelivery(t *testing.T) {
	delivery := &stubQueueDelivery{msg: ToExecutionMessage(NewReconcileMessage("k"))}
	adapter := NewDequeuerAdapter(&stubQueueDequeuer{delivery: delivery}, RetryPolicy{})
	got, err := adapter.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if _, ok := got.(*DeliveryAdapter); !ok {
		t.Fatalf("expected delivery adapter, got %T", got)
	}

	failing := NewDequeuerAdapter(&stubQueueDequeuer{err: errors.New("closed")}, RetryPolicy{})
	if _, err := failing.Dequeue(context.Background()); err == nil {
		t.Fatalf("expected dequeue error")
	}
}

func TestWorkerHookAdapterMapsEvents(t *testing.T) {
	hook := &capturingHook{}
	adapter := NewWorkerHookAdapter(hook)
	msg := ToExecutionMessage(NewReconcileMessage("k"))
	adapter.OnStart(context.Background(), worker.Event{Message: msg, Attempt: 1})
	adapter.OnRetry(context.Background(), worker.Event{Delivery: &stubQueueDelivery{msg: msg}, Attempt: 2, Delay: time.Second})
	adapter.OnSuccess(context.Background(), worker.Event{Message: msg})
	adapter.OnFailure(context.Background(), worker.Event{Message: msg, Err: errors.New("boom")})

	if len(hook.events) != 4 {
		t.Fatalf("expected four events, got %d", len(hook.events))
	}
	if hook.events[1].Message == nil || hook.events[1].Message.JobID != JobIDReconcile {
		t.Fatalf("expected message from delivery, got %#v", hook.events[1])
	}
	if hook.events[1].Delay != time.Second || hook.events[1].Attempt != 2 {
		t.Fatalf("unexpected retry event %#v", hook.events[1])
	}

	NewWorkerHookAdapter(nil).OnStart(context.Background(), worker.Event{})
}

type stubQueueEnqueuer struct {
	last *job.ExecutionMessage
}

func (s *stubQueueEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	s.last = msg
	return nil
}

type stubQueueDequeuer struct {
	delivery queue.Delivery
	err      error
}

func (s *stubQueueDequeuer) Dequeue(context.Context) (queue.Delivery, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.delivery, nil
}

type stubQueueDelivery struct {
	msg    *job.ExecutionMessage
	acked  bool
	nacked bool
	nack   queue.NackOptions
}

func (s *stubQueueDelivery) Message() *job.ExecutionMessage { return s.msg }

func (s *stubQueueDelivery) Ack(context.Context) error {
	s.acked = true
	return nil
}

func (s *stubQueueDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	s.nacked = true
	s.nack = opts
	return nil
}

type capturingHook struct {
	events []core.JobWorkerEvent
	kinds  []string
}

func (h *capturingHook) record(kind string, event core.JobWorkerEvent) {
	h.kinds = append(h.kinds, kind)
	h.events = append(h.events, event)
}

func (h *capturingHook) OnStart(_ context.Context, event core.JobWorkerEvent) {
	h.record("start", event)
}

func (h *capturingHook) OnSuccess(_ context.Context, event core.JobWorkerEvent) {
	h.record("success", event)
}

func (h *capturingHook) OnFailure(_ context.Context, event core.JobWorkerEvent) {
	h.record("failure", event)
}

func (h *capturingHook) OnRetry(_ context.Context, event core.JobWorkerEvent) {
	h.record("retry", event)
}
