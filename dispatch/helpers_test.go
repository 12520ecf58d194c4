package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/webhooks"
)

type memoryFeed struct {
	mu         sync.Mutex
	messages   map[string][]core.Message
	cursors    map[string]int64
	delivered  map[string]int
	failed     map[string]string
	attempts   map[string]int
	cursorErrs int
}

func newMemoryFeed() *memoryFeed {
	return &memoryFeed{
		messages:  map[string][]core.Message{},
		cursors:   map[string]int64{},
		delivered: map[string]int{},
		failed:    map[string]string{},
		attempts:  map[string]int{},
	}
}

func (f *memoryFeed) append(tenantID string, content string) core.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	seq := int64(len(f.messages[tenantID]) + 1)
	message := core.Message{
		ID:        fmt.Sprintf("%s_msg_%d", tenantID, seq),
		TenantID:  tenantID,
		Seq:       seq,
		Direction: core.DirectionInbound,
		Status:    core.MessageStatusSent,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	f.messages[tenantID] = append(f.messages[tenantID], message)
	return message
}

func (f *memoryFeed) Cursor(_ context.Context, tenantID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cursorErrs > 0 {
		f.cursorErrs--
		return 0, fmt.Errorf("cursor store unavailable")
	}
	return f.cursors[tenantID], nil
}

func (f *memoryFeed) NextUndelivered(_ context.Context, tenantID string, cursor int64) (core.Message, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, message := range f.messages[tenantID] {
		if message.Seq > cursor && !message.Status.Terminal() {
			return message, true, nil
		}
	}
	return core.Message{}, false, nil
}

func (f *memoryFeed) Advance(_ context.Context, tenantID string, seq int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if seq > f.cursors[tenantID] {
		f.cursors[tenantID] = seq
	}
	return nil
}

func (f *memoryFeed) setStatus(id string, status core.MessageStatus) {
	for tenantID, messages := range f.messages {
		for i := range messages {
			if messages[i].ID == id {
				f.messages[tenantID][i].Status = status
			}
		}
	}
}

func (f *memoryFeed) MarkDelivered(_ context.Context, id string, attempts int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered[id]++
	f.attempts[id] = attempts
	f.setStatus(id, core.MessageStatusDelivered)
	return nil
}

func (f *memoryFeed) MarkFailed(_ context.Context, id string, reason string, attempts int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = reason
	f.attempts[id] = attempts
	f.setStatus(id, core.MessageStatusFailed)
	return nil
}

func (f *memoryFeed) deliveredCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delivered[id]
}

func (f *memoryFeed) failure(id string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reason, ok := f.failed[id]
	return reason, ok
}

func (f *memoryFeed) cursor(tenantID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursors[tenantID]
}

type deliverFunc func(loop context.Context, hard context.Context, callbackURL string, message core.Message) webhooks.Result

func (f deliverFunc) Deliver(loop context.Context, hard context.Context, callbackURL string, message core.Message) webhooks.Result {
	return f(loop, hard, callbackURL, message)
}

func delivered() webhooks.Result {
	return webhooks.Result{Outcome: webhooks.OutcomeDelivered, LastOutcome: webhooks.OutcomeDelivered, Attempts: 1, StatusCode: 200}
}

func testConfig() core.DispatchConfig {
	return core.DispatchConfig{
		AttemptTimeout: time.Second,
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		ShutdownGrace:  200 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
		UserAgent:      "relay-test",
	}
}

func newTestRegistry(t *testing.T, feed *memoryFeed, deliverer Deliverer, opts ...Option) *Registry {
	t.Helper()
	base := []Option{WithConfig(testConfig()), WithDeliverer(deliverer)}
	registry, err := NewRegistry(feed, feed, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	t.Cleanup(func() { registry.StopAll(context.Background()) })
	return registry
}

func waitFor(t *testing.T, description string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", description)
}

type capturedLog struct {
	level string
	msg   string
}

type captureLogger struct {
	mu      *sync.Mutex
	records *[]capturedLog
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records}
}

func (l *captureLogger) Trace(msg string, _ ...any) { l.record("trace", msg) }
func (l *captureLogger) Debug(msg string, _ ...any) { l.record("debug", msg) }
func (l *captureLogger) Info(msg string, _ ...any)  { l.record("info", msg) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.record("warn", msg) }
func (l *captureLogger) Error(msg string, _ ...any) { l.record("error", msg) }
func (l *captureLogger) Fatal(msg string, _ ...any) { l.record("fatal", msg) }

func (l *captureLogger) WithContext(context.Context) core.Logger {
	return l
}

func (l *captureLogger) record(level string, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg})
}

func (l *captureLogger) has(level string, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, record := range *l.records {
		if record.level == level && record.msg == msg {
			return true
		}
	}
	return false
}
