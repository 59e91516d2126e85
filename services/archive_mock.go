package services

import (
	"context"
	"sync"
)

// MemoryArchive keeps archived payloads in memory; used in tests and when S3 is not configured
type MemoryArchive struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{files: make(map[string][]byte)}
}

func (m *MemoryArchive) Put(ctx context.Context, key string, body []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = append([]byte(nil), body...)
	return nil
}

// Get returns the archived payload for key
func (m *MemoryArchive) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.files[key]
	return b, ok
}
