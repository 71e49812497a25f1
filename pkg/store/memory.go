package store

import (
	"context"
	"sync"

	"github.com/ritzau/thoughtgraph/pkg/model"
	"github.com/tidwall/btree"
)

// MemoryBackend keeps connections in process, ordered by creation time in a
// B-tree with hash indexes by id and by ordered pair.
type MemoryBackend struct {
	mu      sync.RWMutex
	ordered *btree.BTreeG[model.Connection]
	byID    map[string]model.Connection
	byPair  map[string]string
}

func connectionLess(a, b model.Connection) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		ordered: btree.NewBTreeG[model.Connection](connectionLess),
		byID:    make(map[string]model.Connection),
		byPair:  make(map[string]string),
	}
}

func (m *MemoryBackend) Name() string {
	return "memory"
}

func (m *MemoryBackend) Get(_ context.Context, id string) (model.Connection, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[id]
	return c, ok, nil
}

func (m *MemoryBackend) FindPair(_ context.Context, sourceID, targetID string) (model.Connection, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPair[model.PairKey(sourceID, targetID)]
	if !ok {
		return model.Connection{}, false, nil
	}
	c, ok := m.byID[id]
	return c, ok, nil
}

func (m *MemoryBackend) Put(_ context.Context, c model.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.byID[c.ID]; ok {
		m.ordered.Delete(old)
		oldKey := model.PairKey(old.SourceID, old.TargetID)
		if m.byPair[oldKey] == old.ID {
			delete(m.byPair, oldKey)
		}
	}
	m.byID[c.ID] = c
	m.byPair[model.PairKey(c.SourceID, c.TargetID)] = c.ID
	m.ordered.Set(c)
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.byID[id]
	if !ok {
		return nil
	}
	delete(m.byID, id)
	key := model.PairKey(old.SourceID, old.TargetID)
	if m.byPair[key] == id {
		delete(m.byPair, key)
	}
	m.ordered.Delete(old)
	return nil
}

func (m *MemoryBackend) List(_ context.Context) ([]model.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]model.Connection, 0, m.ordered.Len())
	m.ordered.Scan(func(c model.Connection) bool {
		result = append(result, c)
		return true
	})
	return result, nil
}

func (m *MemoryBackend) Close() error {
	return nil
}
