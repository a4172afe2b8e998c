package settings

import (
	"context"
	"sync"
)

// MemoryStore keeps settings in process.  It is used when Redis is not
// reachable; values are lost on restart.
type MemoryStore struct {
	mu          sync.RWMutex
	all         All
	deactivated map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{all: Defaults(), deactivated: map[string]bool{}}
}

func (m *MemoryStore) Load(context.Context) (All, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.all, nil
}

func (m *MemoryStore) Save(_ context.Context, s All) error {
	m.mu.Lock()
	m.all = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) SetDeactivated(_ context.Context, userID string, off bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off {
		m.deactivated[userID] = true
	} else {
		delete(m.deactivated, userID)
	}
	return nil
}

func (m *MemoryStore) Deactivated(context.Context) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool, len(m.deactivated))
	for k := range m.deactivated {
		out[k] = true
	}
	return out, nil
}
