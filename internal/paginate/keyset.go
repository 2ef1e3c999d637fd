package paginate

import (
	"context"
	"sync"
)

// KeySet remembers which item keys were already handled during a run
type KeySet interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// MemorySet is a KeySet that lives for the duration of one run
type MemorySet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewMemorySet creates an empty in-memory key set
func NewMemorySet() *MemorySet {
	return &MemorySet{keys: make(map[string]struct{})}
}

// Seen reports whether key was marked
func (m *MemorySet) Seen(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[key]
	return ok, nil
}

// Mark records key
func (m *MemorySet) Mark(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = struct{}{}
	return nil
}

// Len returns the number of keys marked so far
func (m *MemorySet) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}
