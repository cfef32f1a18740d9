package session

import (
	"context"
	"sync"
)

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	current Session
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns the stored session.
func (m *MemoryStore) Get(ctx context.Context) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, nil
}

// Set replaces the stored session.
func (m *MemoryStore) Set(ctx context.Context, s Session) error {
	if !s.Valid() {
		return ErrInvalidSession
	}
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	return nil
}

// Clear resets the stored session to the logged out state.
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.current = Session{}
	m.mu.Unlock()
	return nil
}

var _ Store = (*MemoryStore)(nil)
