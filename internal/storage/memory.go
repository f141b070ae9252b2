package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory BlobStore used by tests and local runs.
type MemoryStore struct {
	mu         sync.RWMutex
	blobs      map[string][]byte
	configured bool
}

// NewMemoryStore creates a configured in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs:      make(map[string][]byte),
		configured: true,
	}
}

// NewUnconfiguredMemoryStore creates a store that reports unconfigured.
func NewUnconfiguredMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Configured reports whether the store accepts writes.
func (m *MemoryStore) Configured() bool {
	return m.configured
}

// Put stores a blob under mem://<key>.
func (m *MemoryStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if !m.configured {
		return "", fmt.Errorf("object storage not configured")
	}
	ref := "mem://" + key
	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	m.blobs[ref] = cp
	m.mu.Unlock()
	return ref, nil
}

// Get retrieves a blob by reference.
func (m *MemoryStore) Get(_ context.Context, ref string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[ref]
	if !ok {
		return nil, fmt.Errorf("blob not found: %s", ref)
	}
	return data, nil
}

// Len reports how many blobs are stored, for test assertions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
