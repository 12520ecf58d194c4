package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

type memoryTenantStore struct {
	mu   sync.Mutex
	next int
	byID map[string]Tenant
}

func newMemoryTenantStore() *memoryTenantStore {
	return &memoryTenantStore{byID: map[string]Tenant{}}
}

func (s *memoryTenantStore) Create(_ context.Context, in CreateTenantInput) (Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	now := time.Date(2026, 1, 1, 0, 0, s.next, 0, time.UTC)
	tenant := Tenant{
		ID:          fmt.Sprintf("tenant_%d", s.next),
		Name:        in.Name,
		CallbackURL: in.CallbackURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.byID[tenant.ID] = tenant
	return tenant, nil
}

func (s *memoryTenantStore) Get(_ context.Context, id string) (Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenant, ok := s.byID[id]
	if !ok {
		return Tenant{}, ErrTenantNotFound
	}
	return tenant, nil
}

func (s *memoryTenantStore) List(context.Context) ([]Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Tenant, 0, len(s.byID))
	for _, tenant := range s.byID {
		out = append(out, tenant)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryTenantStore) UpdateCallback(_ context.Context, id string, callbackURL string) (Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenant, ok := s.byID[id]
	if !ok {
		return Tenant{}, ErrTenantNotFound
	}
	tenant.CallbackURL = callbackURL
	s.byID[id] = tenant
	return tenant, nil
}

type memoryAuthStore struct {
	mu      sync.Mutex
	records map[string]TenantAuth
	upserts int
}

func newMemoryAuthStore() *memoryAuthStore {
	return &memoryAuthStore{records: map[string]TenantAuth{}}
}

func (s *memoryAuthStore) Get(_ context.Context, tenantID string) (TenantAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	auth, ok := s.records[tenantID]
	if !ok {
		return TenantAuth{}, ErrTenantAuthNotFound
	}
	return auth, nil
}

func (s *memoryAuthStore) Upsert(_ context.Context, auth TenantAuth) (TenantAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	s.records[auth.TenantID] = auth
	return auth, nil
}

func (s *memoryAuthStore) ListAuthorized(context.Context) ([]TenantAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []TenantAuth{}
	for _, auth := range s.records {
		if auth.Authorized {
			out = append(out, auth)
		}
	}
	return out, nil
}

type memoryMessageStore struct {
	mu       sync.Mutex
	messages []Message
	seq      map[string]int64
}

func newMemoryMessageStore() *memoryMessageStore {
	return &memoryMessageStore{seq: map[string]int64{}}
}

func (s *memoryMessageStore) Append(_ context.Context, in AppendMessageInput) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[in.TenantID]++
	message := Message{
		ID:        fmt.Sprintf("msg_%d", len(s.messages)+1),
		TenantID:  in.TenantID,
		Seq:       s.seq[in.TenantID],
		Direction: in.Direction,
		Status:    in.Status,
		Content:   in.Content,
		Timestamp: in.Timestamp,
		ChatID:    in.ChatID,
	}
	s.messages = append(s.messages, message)
	return message, nil
}

func (s *memoryMessageStore) Get(_ context.Context, id string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, message := range s.messages {
		if message.ID == id {
			return message, nil
		}
	}
	return Message{}, ErrMessageNotFound
}

func (s *memoryMessageStore) NextAfter(_ context.Context, tenantID string, direction Direction, afterSeq int64) (Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, message := range s.messages {
		if message.TenantID == tenantID && message.Direction == direction && message.Seq > afterSeq {
			return message, true, nil
		}
	}
	return Message{}, false, nil
}

func (s *memoryMessageStore) List(_ context.Context, tenantID string, afterSeq int64, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Message{}
	for _, message := range s.messages {
		if message.TenantID == tenantID && message.Seq > afterSeq {
			out = append(out, message)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *memoryMessageStore) MarkDelivered(context.Context, string, int) error { return nil }

func (s *memoryMessageStore) MarkFailed(context.Context, string, string, int) error { return nil }

type memoryCursorStore struct {
	mu      sync.Mutex
	cursors map[string]FeedCursor
}

func newMemoryCursorStore() *memoryCursorStore {
	return &memoryCursorStore{cursors: map[string]FeedCursor{}}
}

func (s *memoryCursorStore) Get(_ context.Context, tenantID string) (FeedCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cursor, ok := s.cursors[tenantID]
	if !ok {
		return FeedCursor{TenantID: tenantID}, nil
	}
	return cursor, nil
}

func (s *memoryCursorStore) Advance(_ context.Context, tenantID string, seq int64) (FeedCursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cursor := s.cursors[tenantID]
	cursor.TenantID = tenantID
	if seq > cursor.LastSeq {
		cursor.LastSeq = seq
	}
	s.cursors[tenantID] = cursor
	return cursor, nil
}

type testStores struct {
	tenants  *memoryTenantStore
	auth     *memoryAuthStore
	messages *memoryMessageStore
	cursors  *memoryCursorStore
}

func newTestStores() testStores {
	return testStores{
		tenants:  newMemoryTenantStore(),
		auth:     newMemoryAuthStore(),
		messages: newMemoryMessageStore(),
		cursors:  newMemoryCursorStore(),
	}
}

func (s testStores) TenantStore() TenantStore         { return s.tenants }
func (s testStores) TenantAuthStore() TenantAuthStore { return s.auth }
func (s testStores) MessageStore() MessageStore       { return s.messages }
func (s testStores) CursorStore() CursorStore         { return s.cursors }

type registryCall struct {
	op       string
	tenantID string
	url      string
}

type fakeRegistry struct {
	mu       sync.Mutex
	running  map[string]string
	calls    []registryCall
	startErr error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{running: map[string]string{}}
}

func (r *fakeRegistry) Start(_ context.Context, tenantID string, callbackURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, registryCall{op: "start", tenantID: tenantID, url: callbackURL})
	if r.startErr != nil {
		return r.startErr
	}
	r.running[tenantID] = callbackURL
	return nil
}

func (r *fakeRegistry) Stop(_ context.Context, tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, registryCall{op: "stop", tenantID: tenantID})
	delete(r.running, tenantID)
}

func (r *fakeRegistry) IsRunning(tenantID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.running[tenantID]
	return ok
}

func (r *fakeRegistry) Wake(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, registryCall{op: "wake", tenantID: tenantID})
}

func (r *fakeRegistry) StopAll(ctx context.Context) {
	for _, status := range r.Snapshot() {
		r.Stop(ctx, status.TenantID)
	}
}

func (r *fakeRegistry) Snapshot() []DispatchStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DispatchStatus, 0, len(r.running))
	for tenantID, url := range r.running {
		out = append(out, DispatchStatus{TenantID: tenantID, CallbackURL: url, State: "running"})
	}
	return out
}

func (r *fakeRegistry) opsFor(tenantID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := []string{}
	for _, call := range r.calls {
		if call.tenantID == tenantID {
			ops = append(ops, call.op)
		}
	}
	return ops
}

type fakeAuthenticator struct {
	challenge AuthChallenge
	verdict   AuthVerdict
	verifyErr error
	verified  []VerifyCodeRequest
}

func (a *fakeAuthenticator) RequestCode(context.Context, string, string) (AuthChallenge, error) {
	return a.challenge, nil
}

func (a *fakeAuthenticator) VerifyCode(_ context.Context, req VerifyCodeRequest) (AuthVerdict, error) {
	a.verified = append(a.verified, req)
	if a.verifyErr != nil {
		return AuthVerdict{}, a.verifyErr
	}
	return a.verdict, nil
}

type storeReceiver struct {
	messages MessageStore
	seen     map[string]Message
}

func (r *storeReceiver) Receive(ctx context.Context, req ReceiveInboundRequest) (ReceiveInboundResult, error) {
	if strings.TrimSpace(req.TenantID) == "" {
		return ReceiveInboundResult{}, fmt.Errorf("tenant id is required")
	}
	key := fmt.Sprintf("%s:%d:%d", req.TenantID, req.ChatID, req.ProviderMessageID)
	if existing, ok := r.seen[key]; ok {
		return ReceiveInboundResult{Message: existing, Duplicate: true}, nil
	}
	message, err := r.messages.Append(ctx, AppendMessageInput{
		TenantID:  req.TenantID,
		Direction: DirectionInbound,
		Status:    MessageStatusSent,
		Content:   req.Content,
		Timestamp: req.Timestamp,
		ChatID:    req.ChatID,
	})
	if err != nil {
		return ReceiveInboundResult{}, err
	}
	r.seen[key] = message
	return ReceiveInboundResult{Message: message}, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	seqs  []int64
	err   error
	calls int
}

func (n *recordingNotifier) NotifyAppended(_ context.Context, _ string, seq int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	n.seqs = append(n.seqs, seq)
	return n.err
}

type serviceFixture struct {
	svc      *Service
	stores   testStores
	registry *fakeRegistry
	auth     *fakeAuthenticator
	now      time.Time
}

func newServiceFixture(t testing.TB, opts ...Option) *serviceFixture {
	t.Helper()
	fixture := &serviceFixture{
		stores:   newTestStores(),
		registry: newFakeRegistry(),
		auth: &fakeAuthenticator{
			challenge: AuthChallenge{CodeHash: "hash_1"},
			verdict:   AuthVerdict{Authorized: true},
		},
		now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	base := []Option{
		WithStoreProvider(fixture.stores),
		WithDispatchRegistry(fixture.registry),
		WithAuthenticator(fixture.auth),
		WithInboundReceiver(&storeReceiver{messages: fixture.stores.messages, seen: map[string]Message{}}),
		WithClock(func() time.Time { return fixture.now }),
	}
	svc, err := NewService(DefaultConfig(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	fixture.svc = svc
	return fixture
}

func (f *serviceFixture) authorizedTenant(t testing.TB, callbackURL string) Tenant {
	t.Helper()
	ctx := context.Background()
	tenant, err := f.svc.CreateTenant(ctx, CreateTenantRequest{Name: "acme", CallbackURL: callbackURL})
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	if _, err := f.svc.SetAuthorization(ctx, SetAuthorizationRequest{TenantID: tenant.ID, Authorized: true}); err != nil {
		t.Fatalf("authorize tenant: %v", err)
	}
	return tenant
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

// slowAuthStore delays reads to widen the window between a lifecycle
// decision and its registry call.
type slowAuthStore struct {
	*memoryAuthStore
	delay time.Duration
}

func (s slowAuthStore) Get(ctx context.Context, tenantID string) (TenantAuth, error) {
	time.Sleep(s.delay)
	return s.memoryAuthStore.Get(ctx, tenantID)
}

func (r *fakeRegistry) runningURL(tenantID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	url, ok := r.running[tenantID]
	return url, ok
}
