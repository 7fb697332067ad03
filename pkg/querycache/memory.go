package querycache

import "sync"

// Memory is an in-memory Cache with stale marking. It backs tests and the
// CLI; production callers are expected to adapt their own reactive cache.
type Memory struct {
	mu      sync.RWMutex
	entries []*memoryEntry
}

type memoryEntry struct {
	key   Key
	value any
	stale bool
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{}
}

// Compile-time interface check to ensure proper implementation.
var _ Cache = (*Memory)(nil)

// Invalidate implements Cache. Entries that do not exist are ignored.
func (m *Memory) Invalidate(prefix Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.key.HasPrefix(prefix) {
			e.stale = true
		}
	}
	return nil
}

// SetQueryData implements Cache. The slot is created if absent and marked
// fresh either way.
func (m *Memory) SetQueryData(key Key, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.key.Equal(key) {
			e.value = value
			e.stale = false
			return nil
		}
	}
	m.entries = append(m.entries, &memoryEntry{key: append(Key(nil), key...), value: value})
	return nil
}

// RemoveQueries implements Cache. Every slot under the key is dropped;
// removing a key that holds nothing is a no-op.
func (m *Memory) RemoveQueries(key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	for _, e := range m.entries {
		if !e.key.HasPrefix(key) {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return nil
}

// Get returns the cached value for an exact key and whether it exists.
func (m *Memory) Get(key Key) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.key.Equal(key) {
			return e.value, true
		}
	}
	return nil, false
}

// IsStale reports whether the slot for an exact key is marked stale.
// Missing slots are not stale; they are absent.
func (m *Memory) IsStale(key Key) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.key.Equal(key) {
			return e.stale
		}
	}
	return false
}

// Len returns the number of cached slots.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
