package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory. Used by tests and the
// "memory" store driver.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]map[string]Entry)}
}

func (m *MemoryStore) Get(ctx context.Context, namespace, key string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[namespace][key]
	return e, ok, nil
}

func (m *MemoryStore) Put(ctx context.Context, namespace string, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.entries[namespace]
	if !ok {
		ns = make(map[string]Entry)
		m.entries[namespace] = ns
	}
	ns[e.Key] = e
	return nil
}

func (m *MemoryStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, ns := range m.entries {
		for k, e := range ns {
			if expiredBefore(e, olderThan) {
				delete(ns, k)
				n++
			}
		}
	}
	return n, nil
}

// Len reports the number of entries in a namespace.
func (m *MemoryStore) Len(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries[namespace])
}

func (m *MemoryStore) Close() error { return nil }
