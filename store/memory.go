package store

import (
	"sync"

	"github.com/beblucech/entry"
)

// Memory is an in-process Store. Values are copied on the way in and out.
type Memory struct {
	mu sync.Mutex
	kv map[string][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{kv: map[string][]byte{}}
}

var _ entry.Store = (*Memory)(nil)

func (m *Memory) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.kv[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.kv[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.kv, key)
	return nil
}
