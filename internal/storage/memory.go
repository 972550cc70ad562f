package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStorage keeps documents in process memory. Used when no storage
// account is configured and in tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// Ensure MemoryStorage implements StorageInterface
var _ StorageInterface = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte)}
}

func (m *MemoryStorage) Store(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[name] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStorage) Retrieve(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[name]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", name, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStorage) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name := range m.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStorage) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, name)
	return nil
}
