package checkpoint

import (
	"context"
	"sync"

	"docsage/internal/pipeline"
)

// MemoryStore keeps checkpoints in a map. Used by tests and as a fallback
// when no database is wired.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]pipeline.State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]pipeline.State)}
}

func (m *MemoryStore) Load(ctx context.Context, threadID string) (pipeline.State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[threadID]
	if !ok {
		return pipeline.State{}, false, nil
	}
	return s.Clone(), true, nil
}

func (m *MemoryStore) Save(ctx context.Context, threadID string, s pipeline.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[threadID] = s.Clone()
	return nil
}
