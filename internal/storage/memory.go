package storage

import "sync"

// Memory is a process-local KV. Nothing survives the process.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ KV = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) GetItem(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) SetItem(key, val string) error {
	m.mu.Lock()
	m.data[key] = val
	m.mu.Unlock()
	return nil
}

func (m *Memory) RemoveItem(key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}
