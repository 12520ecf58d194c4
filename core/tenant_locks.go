package core

import "sync"

// tenantLocks serializes directory transitions per tenant so the stored
// auth and callback state and the registry's worker set move together.
// The zero value is ready to use.
type tenantLocks struct {
	mu    sync.Mutex
	locks map[string]*tenantLock
}

type tenantLock struct {
	mu   sync.Mutex
	refs int
}

func (t *tenantLocks) lock(tenantID string) func() {
	t.mu.Lock()
	if t.locks == nil {
		t.locks = map[string]*tenantLock{}
	}
	entry, ok := t.locks[tenantID]
	if !ok {
		entry = &tenantLock{}
		t.locks[tenantID] = entry
	}
	entry.refs++
	t.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		t.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(t.locks, tenantID)
		}
		t.mu.Unlock()
	}
}

func (t *tenantLocks) held() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
