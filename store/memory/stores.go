package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-relay/core"
)

type clock func() time.Time

func (c clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

type TenantStore struct {
	mu      sync.RWMutex
	tenants map[string]core.Tenant
	Now     func() time.Time
}

func NewTenantStore() *TenantStore {
	return &TenantStore{tenants: map[string]core.Tenant{}}
}

func (s *TenantStore) Create(_ context.Context, in core.CreateTenantInput) (core.Tenant, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return core.Tenant{}, fmt.Errorf("memory: tenant name is required")
	}
	callbackURL := strings.TrimSpace(in.CallbackURL)
	if callbackURL != "" {
		normalized, err := core.ValidateCallbackURL(callbackURL)
		if err != nil {
			return core.Tenant{}, err
		}
		callbackURL = normalized
	}
	now := clock(s.Now).now()
	tenant := core.Tenant{
		ID:          uuid.NewString(),
		Name:        name,
		CallbackURL: callbackURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.mu.Lock()
	s.tenants[tenant.ID] = tenant
	s.mu.Unlock()
	return tenant, nil
}

func (s *TenantStore) Get(_ context.Context, id string) (core.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tenant, ok := s.tenants[strings.TrimSpace(id)]
	if !ok {
		return core.Tenant{}, core.ErrTenantNotFound
	}
	return tenant, nil
}

// List returns tenants newest first.
func (s *TenantStore) List(context.Context) ([]core.Tenant, error) {
	s.mu.RLock()
	out := make([]core.Tenant, 0, len(s.tenants))
	for _, tenant := range s.tenants {
		out = append(out, tenant)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *TenantStore) UpdateCallback(_ context.Context, id string, callbackURL string) (core.Tenant, error) {
	callbackURL = strings.TrimSpace(callbackURL)
	if callbackURL != "" {
		normalized, err := core.ValidateCallbackURL(callbackURL)
		if err != nil {
			return core.Tenant{}, err
		}
		callbackURL = normalized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tenant, ok := s.tenants[strings.TrimSpace(id)]
	if !ok {
		return core.Tenant{}, core.ErrTenantNotFound
	}
	tenant.CallbackURL = callbackURL
	tenant.UpdatedAt = clock(s.Now).now()
	s.tenants[tenant.ID] = tenant
	return tenant, nil
}

type TenantAuthStore struct {
	mu    sync.RWMutex
	auths map[string]core.TenantAuth
	Now   func() time.Time
}

func NewTenantAuthStore() *TenantAuthStore {
	return &TenantAuthStore{auths: map[string]core.TenantAuth{}}
}

func (s *TenantAuthStore) Get(_ context.Context, tenantID string) (core.TenantAuth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	auth, ok := s.auths[strings.TrimSpace(tenantID)]
	if !ok {
		return core.TenantAuth{}, core.ErrTenantAuthNotFound
	}
	return auth, nil
}

func (s *TenantAuthStore) Upsert(_ context.Context, auth core.TenantAuth) (core.TenantAuth, error) {
	auth.TenantID = strings.TrimSpace(auth.TenantID)
	if auth.TenantID == "" {
		return core.TenantAuth{}, fmt.Errorf("memory: tenant id is required")
	}
	auth.UpdatedAt = clock(s.Now).now()
	s.mu.Lock()
	s.auths[auth.TenantID] = auth
	s.mu.Unlock()
	return auth, nil
}

func (s *TenantAuthStore) ListAuthorized(context.Context) ([]core.TenantAuth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.TenantAuth{}
	for _, auth := range s.auths {
		if auth.Authorized {
			out = append(out, auth)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

// MessageStore keeps each tenant's messages in Seq order.
type MessageStore struct {
	mu       sync.RWMutex
	byTenant map[string][]core.Message
	index    map[string]messageRef
	Now      func() time.Time
}

type messageRef struct {
	tenantID string
	pos      int
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		byTenant: map[string][]core.Message{},
		index:    map[string]messageRef{},
	}
}

func (s *MessageStore) Append(_ context.Context, in core.AppendMessageInput) (core.Message, error) {
	status := in.Status
	if status == "" {
		status = core.MessageStatusSent
	}
	now := clock(s.Now).now()
	timestamp := in.Timestamp
	if timestamp.IsZero() {
		timestamp = now
	}
	message := core.Message{
		ID:                uuid.NewString(),
		TenantID:          strings.TrimSpace(in.TenantID),
		Direction:         in.Direction,
		Status:            status,
		Content:           in.Content,
		Timestamp:         timestamp.UTC(),
		UpdatedAt:         now,
		ChatID:            in.ChatID,
		ProviderMessageID: in.ProviderMessageID,
		PhoneNumber:       in.PhoneNumber,
		Username:          in.Username,
	}
	if err := message.Validate(); err != nil {
		return core.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	messages := s.byTenant[message.TenantID]
	message.Seq = int64(len(messages) + 1)
	s.index[message.ID] = messageRef{tenantID: message.TenantID, pos: len(messages)}
	s.byTenant[message.TenantID] = append(messages, message)
	return message, nil
}

func (s *MessageStore) Get(_ context.Context, id string) (core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.index[strings.TrimSpace(id)]
	if !ok {
		return core.Message{}, core.ErrMessageNotFound
	}
	return s.byTenant[ref.tenantID][ref.pos], nil
}

func (s *MessageStore) NextAfter(_ context.Context, tenantID string, direction core.Direction, afterSeq int64) (core.Message, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	messages := s.byTenant[tenantID]
	start := 0
	if afterSeq > 0 {
		start = int(afterSeq)
	}
	for i := start; i < len(messages); i++ {
		if messages[i].Direction == direction {
			return messages[i], true, nil
		}
	}
	return core.Message{}, false, nil
}

func (s *MessageStore) List(_ context.Context, tenantID string, afterSeq int64, limit int) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	messages := s.byTenant[tenantID]
	start := 0
	if afterSeq > 0 {
		start = int(afterSeq)
	}
	out := []core.Message{}
	for i := start; i < len(messages); i++ {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, messages[i])
	}
	return out, nil
}

func (s *MessageStore) MarkDelivered(_ context.Context, id string, attempts int) error {
	return s.update(id, func(message *core.Message, now time.Time) {
		message.Status = core.MessageStatusDelivered
		message.DeliveryAttempts = attempts
		message.DeliveryError = ""
		message.DeliveredAt = &now
	})
}

func (s *MessageStore) MarkFailed(_ context.Context, id string, reason string, attempts int) error {
	return s.update(id, func(message *core.Message, _ time.Time) {
		message.Status = core.MessageStatusFailed
		message.DeliveryAttempts = attempts
		message.DeliveryError = reason
	})
}

func (s *MessageStore) update(id string, apply func(*core.Message, time.Time)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.index[strings.TrimSpace(id)]
	if !ok {
		return core.ErrMessageNotFound
	}
	now := clock(s.Now).now()
	message := s.byTenant[ref.tenantID][ref.pos]
	apply(&message, now)
	message.UpdatedAt = now
	s.byTenant[ref.tenantID][ref.pos] = message
	return nil
}

type CursorStore struct {
	mu      sync.RWMutex
	cursors map[string]core.FeedCursor
	Now     func() time.Time
}

func NewCursorStore() *CursorStore {
	return &CursorStore{cursors: map[string]core.FeedCursor{}}
}

// Get returns a zero cursor for a tenant that never advanced.
func (s *CursorStore) Get(_ context.Context, tenantID string) (core.FeedCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cursor, ok := s.cursors[tenantID]
	if !ok {
		return core.FeedCursor{TenantID: tenantID}, nil
	}
	return cursor, nil
}

func (s *CursorStore) Advance(_ context.Context, tenantID string, seq int64) (core.FeedCursor, error) {
	if strings.TrimSpace(tenantID) == "" {
		return core.FeedCursor{}, fmt.Errorf("memory: tenant id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cursor := s.cursors[tenantID]
	cursor.TenantID = tenantID
	if seq > cursor.LastSeq {
		cursor.LastSeq = seq
		cursor.UpdatedAt = clock(s.Now).now()
	}
	s.cursors[tenantID] = cursor
	return cursor, nil
}

// StoreProvider bundles one instance of each store.
type StoreProvider struct {
	tenants  *TenantStore
	auths    *TenantAuthStore
	messages *MessageStore
	cursors  *CursorStore
}

func NewStoreProvider() *StoreProvider {
	return &StoreProvider{
		tenants:  NewTenantStore(),
		auths:    NewTenantAuthStore(),
		messages: NewMessageStore(),
		cursors:  NewCursorStore(),
	}
}

func (p *StoreProvider) TenantStore() core.TenantStore         { return p.tenants }
func (p *StoreProvider) TenantAuthStore() core.TenantAuthStore { return p.auths }
func (p *StoreProvider) MessageStore() core.MessageStore       { return p.messages }
func (p *StoreProvider) CursorStore() core.CursorStore         { return p.cursors }

var (
	_ core.TenantStore     = (*TenantStore)(nil)
	_ core.TenantAuthStore = (*TenantAuthStore)(nil)
	_ core.MessageStore    = (*MessageStore)(nil)
	_ core.CursorStore     = (*CursorStore)(nil)
	_ core.StoreProvider   = (*StoreProvider)(nil)
)
