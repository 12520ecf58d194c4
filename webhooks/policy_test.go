package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-relay/core"
)

type scriptedTransport struct {
	mu       sync.Mutex
	statuses []int
	errs     []error
	requests []Request
}

func (t *scriptedTransport) Post(_ context.Context, req Request) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	index := len(t.requests)
	t.requests = append(t.requests, req)
	if index < len(t.errs) && t.errs[index] != nil {
		return 0, t.errs[index]
	}
	if index < len(t.statuses) {
		return t.statuses[index], nil
	}
	return t.statuses[len(t.statuses)-1], nil
}

func testMessage() core.Message {
	return core.Message{
		ID:                "msg_1",
		TenantID:          "tenant_1",
		Seq:               7,
		Direction:         core.DirectionInbound,
		Status:            core.MessageStatusSent,
		Content:           "hello",
		Timestamp:         time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		ChatID:            42,
		ProviderMessageID: 9001,
		PhoneNumber:       "+15550100",
		Username:          "ada",
	}
}

func recordingSleep(sleeps *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		if sleeps != nil {
			*sleeps = append(*sleeps, d)
		}
		return ctx.Err()
	}
}

func newTestPolicy(transport Transport, sleeps *[]time.Duration, opts ...PolicyOption) *Policy {
	cfg := core.DefaultConfig().Dispatch
	cfg.InitialBackoff = 100 * time.Millisecond
	cfg.MaxBackoff = 10 * time.Second
	base := []PolicyOption{
		WithTransport(transport),
		WithSleep(recordingSleep(sleeps)),
	}
	return NewPolicy(cfg, append(base, opts...)...)
}

func TestDeliver_RetriesServerErrorsThenSucceeds(t *testing.T) {
	transport := &scriptedTransport{statuses: []int{500, 502, 503, 200}}
	sleeps := []time.Duration{}
	policy := newTestPolicy(transport, &sleeps)

	result := policy.Deliver(context.Background(), context.Background(), "https://hooks.example.com", testMessage())
	if result.Outcome != OutcomeDelivered {
		t.Fatalf("expected delivered, got %q (%v)", result.Outcome, result.Err)
	}
	if result.Attempts != 4 || len(transport.requests) != 4 {
		t.Fatalf("expected exactly 4 attempts, got %d/%d", result.Attempts, len(transport.requests))
	}
	if len(result.Delays) != 3 || len(sleeps) != 3 {
		t.Fatalf("expected 3 backoff sleeps, got %v", result.Delays)
	}
	for i := 1; i < len(result.Delays); i++ {
		if result.Delays[i] <= result.Delays[i-1] {
			t.Fatalf("expected strictly increasing delays, got %v", result.Delays)
		}
	}
	for i, req := range transport.requests {
		if req.Headers[HeaderAttempt] != strconv.Itoa(i+1) {
			t.Fatalf("attempt header mismatch on %d: %q", i, req.Headers[HeaderAttempt])
		}
	}
}

func TestDeliver_ClientErrorIsPermanent(t *testing.T) {
	transport := &scriptedTransport{statuses: []int{404}}
	sleeps := []time.Duration{}
	policy := newTestPolicy(transport, &sleeps)

	result := policy.Deliver(context.Background(), context.Background(), "https://hooks.example.com", testMessage())
	if result.Outcome != OutcomeFailed || result.LastOutcome != OutcomeRejected {
		t.Fatalf("expected rejected failure, got %q/%q", result.Outcome, result.LastOutcome)
	}
	if result.Attempts != 1 || len(sleeps) != 0 {
		t.Fatalf("expected single attempt without sleeps, got %d attempts %v", result.Attempts, sleeps)
	}
	var richErr *goerrors.Error
	if !goerrors.As(result.Err, &richErr) || richErr.TextCode != core.RelayErrorDeliveryRejected {
		t.Fatalf("expected rejected envelope, got %v", result.Err)
	}
	if FailureReason(result) != "rejected: http 404" {
		t.Fatalf("unexpected failure reason %q", FailureReason(result))
	}
}

func TestDeliver_RedirectIsPermanent(t *testing.T) {
	transport := &scriptedTransport{statuses: []int{301}}
	sleeps := []time.Duration{}
	result := newTestPolicy(transport, &sleeps).Deliver(context.Background(), context.Background(), "https://hooks.example.com", testMessage())
	if result.Outcome != OutcomeFailed || result.Attempts != 1 {
		t.Fatalf("expected one rejected attempt, got %+v", result)
	}
}

func TestDeliver_ExhaustsRetries(t *testing.T) {
	transport := &scriptedTransport{statuses: []int{503}}
	sleeps := []time.Duration{}
	result := newTestPolicy(transport, &sleeps).Deliver(context.Background(), context.Background(), "https://hooks.example.com", testMessage())
	if result.Outcome != OutcomeFailed || result.LastOutcome != OutcomeRetry {
		t.Fatalf("expected exhausted failure, got %q/%q", result.Outcome, result.LastOutcome)
	}
	if result.Attempts != core.DefaultMaxAttempts {
		t.Fatalf("expected %d attempts, got %d", core.DefaultMaxAttempts, result.Attempts)
	}
	var richErr *goerrors.Error
	if !goerrors.As(result.Err, &richErr) || richErr.TextCode != core.RelayErrorDeliveryTransient {
		t.Fatalf("expected transient envelope, got %v", result.Err)
	}
}

func TestDeliver_NetworkErrorsAreRetried(t *testing.T) {
	netErr := &netTimeoutError{}
	transport := &scriptedTransport{errs: []error{netErr, errors.New("connection reset")}, statuses: []int{0, 0, 204}}
	sleeps := []time.Duration{}
	result := newTestPolicy(transport, &sleeps).Deliver(context.Background(), context.Background(), "https://hooks.example.com", testMessage())
	if result.Outcome != OutcomeDelivered || result.Attempts != 3 {
		t.Fatalf("expected delivery on third attempt, got %+v", result)
	}
}

func TestDeliver_EncodeFailureIsPermanent(t *testing.T) {
	transport := &scriptedTransport{statuses: []int{200}}
	sleeps := []time.Duration{}
	policy := newTestPolicy(transport, &sleeps, WithEncoder(func(Envelope) ([]byte, error) {
		return nil, errors.New("unsupported value")
	}))
	result := policy.Deliver(context.Background(), context.Background(), "https://hooks.example.com", testMessage())
	if result.Outcome != OutcomeFailed || result.Attempts != 1 || len(transport.requests) != 0 {
		t.Fatalf("expected encode failure without a request, got %+v", result)
	}
}

func TestDeliver_LoopCancelledDuringBackoffAbandons(t *testing.T) {
	transport := &scriptedTransport{statuses: []int{500}}
	loop, cancel := context.WithCancel(context.Background())
	policy := newTestPolicy(transport, nil, WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))
	result := policy.Deliver(loop, context.Background(), "https://hooks.example.com", testMessage())
	if result.Outcome != OutcomeAbandoned {
		t.Fatalf("expected abandoned, got %q", result.Outcome)
	}
	if result.Attempts != 1 {
		t.Fatalf("expected one attempt before abandonment, got %d", result.Attempts)
	}
}

func TestDeliver_InFlightResponseAfterLoopCancelIsRecorded(t *testing.T) {
	loop, cancel := context.WithCancel(context.Background())
	transport := transportFunc(func(context.Context, Request) (int, error) {
		cancel()
		return http.StatusOK, nil
	})
	result := newTestPolicy(transport, nil).Deliver(loop, context.Background(), "https://hooks.example.com", testMessage())
	if result.Outcome != OutcomeDelivered {
		t.Fatalf("expected in-flight success to be recorded, got %q", result.Outcome)
	}
}

func TestDeliver_HardCancelAbandons(t *testing.T) {
	hard, cancel := context.WithCancel(context.Background())
	transport := transportFunc(func(ctx context.Context, _ Request) (int, error) {
		cancel()
		<-ctx.Done()
		return 0, ctx.Err()
	})
	result := newTestPolicy(transport, nil).Deliver(context.Background(), hard, "https://hooks.example.com", testMessage())
	if result.Outcome != OutcomeAbandoned {
		t.Fatalf("expected abandoned, got %q", result.Outcome)
	}
}

func TestDeliver_OverHTTP(t *testing.T) {
	var calls atomic.Int32
	var captured Envelope
	var signature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, _ := io.ReadAll(r.Body)
		signature = r.Header.Get(HeaderSignature)
		if err := VerifySignature("s3cret", body, signature); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Content-Type") != "application/json" || r.Header.Get(HeaderTenantID) != "tenant_1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.Unmarshal(body, &captured)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	cfg := core.DefaultConfig().Dispatch
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	cfg.SigningSecret = "s3cret"
	policy := NewPolicy(cfg, WithTransport(NewHTTPTransport(server.Client())))

	result := policy.Deliver(context.Background(), context.Background(), server.URL, testMessage())
	if result.Outcome != OutcomeDelivered || result.StatusCode != http.StatusAccepted {
		t.Fatalf("expected delivered 202, got %+v", result)
	}
	if captured.Attempt != 2 || captured.ChatID != 42 || captured.Sender.Username != "ada" {
		t.Fatalf("unexpected envelope %+v", captured)
	}
	if captured.DeliveryID != DeliveryID(testMessage()) {
		t.Fatalf("expected stable delivery id")
	}
}

func TestDeliver_AttemptTimeoutIsRetried(t *testing.T) {
	block := make(chan struct{})
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-block:
			case <-r.Context().Done():
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(block)

	cfg := core.DefaultConfig().Dispatch
	cfg.AttemptTimeout = 50 * time.Millisecond
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	policy := NewPolicy(cfg, WithTransport(NewHTTPTransport(nil)))

	result := policy.Deliver(context.Background(), context.Background(), server.URL, testMessage())
	if result.Outcome != OutcomeDelivered || result.Attempts != 2 {
		t.Fatalf("expected timeout then success, got %+v", result)
	}
}

func TestHTTPTransport_DoesNotFollowRedirects(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()
	redirect := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusTemporaryRedirect)
	}))
	defer redirect.Close()

	status, err := NewHTTPTransport(nil).Post(context.Background(), Request{URL: redirect.URL, Body: []byte("{}")})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if status != http.StatusTemporaryRedirect {
		t.Fatalf("expected redirect status surfaced, got %d", status)
	}
}

type transportFunc func(ctx context.Context, req Request) (int, error)

func (f transportFunc) Post(ctx context.Context, req Request) (int, error) {
	return f(ctx, req)
}

type netTimeoutError struct{}

func (*netTimeoutError) Error() string   { return "i/o timeout" }
func (*netTimeoutError) Timeout() bool   { return true }
func (*netTimeoutError) Temporary() bool { return true }
