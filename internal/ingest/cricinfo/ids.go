package cricinfo

import (
	"context"
	"strconv"
	"sync"
)

// IDs hands out match ids in first-seen order. A url keeps its id for as long
// as the store lives, so a resumed scrape continues the numbering.
type IDs interface {
	Assign(ctx context.Context, url string) (string, error)
}

// MemoryIDs numbers matches for the lifetime of one process
type MemoryIDs struct {
	mu   sync.Mutex
	ids  map[string]string
	next int
}

// NewMemoryIDs starts numbering at 1
func NewMemoryIDs() *MemoryIDs {
	return &MemoryIDs{ids: make(map[string]string), next: 1}
}

// Assign returns the id for url, allocating the next one on first sight
func (m *MemoryIDs) Assign(_ context.Context, url string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.ids[url]; ok {
		return id, nil
	}
	id := strconv.Itoa(m.next)
	m.ids[url] = id
	m.next++
	return id, nil
}
