package session

import "sync"

var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage keeps values for the lifetime of the process.
type MemoryStorage struct {
	values map[string]string
	lock   sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryStorage) Set(key, value string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStorage) Delete(key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.values, key)
	return nil
}

// Len reports how many keys are stored.
func (m *MemoryStorage) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.values)
}
