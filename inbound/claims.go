package inbound

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultClaimTTL = 24 * time.Hour

// ClaimStore hands out at most one live claim per key. A completed key stays
// claimed for its TTL; a failed one can be claimed again from retryAt.
type ClaimStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (claimID string, accepted bool, err error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, retryAt time.Time) error
}

type claimStatus string

const (
	claimStatusProcessing claimStatus = "processing"
	claimStatusRetryReady claimStatus = "retry_ready"
	claimStatusComplete   claimStatus = "complete"
)

type claimEntry struct {
	Key       string
	Status    claimStatus
	ClaimID   string
	Attempts  int
	TTL       time.Duration
	ExpiresAt time.Time
	RetryAt   time.Time
}

type InMemoryClaimStore struct {
	mu      sync.Mutex
	entries map[string]claimEntry
	claims  map[string]string
	nextID  int
	Now     func() time.Time
}

func NewInMemoryClaimStore() *InMemoryClaimStore {
	return &InMemoryClaimStore{
		entries: map[string]claimEntry{},
		claims:  map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *InMemoryClaimStore) Claim(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	if s == nil {
		return "", false, inboundInternal("inbound: claim store is nil", nil)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, inboundBadInput("inbound: idempotency key is required", nil)
	}
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(now)
	entry, exists := s.entries[key]
	if exists {
		switch entry.Status {
		case claimStatusComplete, claimStatusProcessing:
			if now.Before(entry.ExpiresAt) {
				return "", false, nil
			}
		case claimStatusRetryReady:
			if !entry.RetryAt.IsZero() && now.Before(entry.RetryAt) {
				return "", false, nil
			}
		}
		if entry.ClaimID != "" {
			delete(s.claims, entry.ClaimID)
		}
	}

	claimID := s.nextClaimID()
	s.entries[key] = claimEntry{
		Key:       key,
		Status:    claimStatusProcessing,
		ClaimID:   claimID,
		Attempts:  entry.Attempts + 1,
		TTL:       ttl,
		ExpiresAt: now.Add(ttl),
	}
	s.claims[claimID] = key
	return claimID, true, nil
}

func (s *InMemoryClaimStore) Complete(_ context.Context, claimID string) error {
	if s == nil {
		return inboundInternal("inbound: claim store is nil", nil)
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return inboundBadInput("inbound: claim id is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.activeLocked(claimID)
	if !ok {
		return nil
	}
	entry.Status = claimStatusComplete
	entry.ExpiresAt = s.now().Add(entry.TTL)
	entry.RetryAt = time.Time{}
	s.entries[entry.Key] = entry
	delete(s.claims, claimID)
	return nil
}

func (s *InMemoryClaimStore) Fail(_ context.Context, claimID string, _ error, retryAt time.Time) error {
	if s == nil {
		return inboundInternal("inbound: claim store is nil", nil)
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return inboundBadInput("inbound: claim id is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.activeLocked(claimID)
	if !ok {
		return nil
	}
	if retryAt.IsZero() {
		retryAt = s.now()
	}
	entry.Status = claimStatusRetryReady
	entry.RetryAt = retryAt.UTC()
	entry.ExpiresAt = time.Time{}
	s.entries[entry.Key] = entry
	delete(s.claims, claimID)
	return nil
}

// activeLocked returns the processing entry owned by claimID. Stale claim
// ids are forgotten.
func (s *InMemoryClaimStore) activeLocked(claimID string) (claimEntry, bool) {
	key, ok := s.claims[claimID]
	if !ok {
		return claimEntry{}, false
	}
	entry, exists := s.entries[key]
	if !exists || entry.ClaimID != claimID || entry.Status != claimStatusProcessing {
		delete(s.claims, claimID)
		return claimEntry{}, false
	}
	return entry, true
}

func (s *InMemoryClaimStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *InMemoryClaimStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *InMemoryClaimStore) nextClaimID() string {
	s.nextID++
	return fmt.Sprintf("claim_%d", s.nextID)
}

func (s *InMemoryClaimStore) evictExpiredLocked(now time.Time) {
	for key, entry := range s.entries {
		if entry.Status != claimStatusComplete {
			continue
		}
		if !now.Before(entry.ExpiresAt) {
			delete(s.entries, key)
		}
	}
}
