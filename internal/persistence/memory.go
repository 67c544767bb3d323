package persistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/kozaktomas/facedb/internal/database"
)

// MemoryBlob keeps the encoded database in memory. Useful for tests and for
// sessions that only need export/import without touching disk.
type MemoryBlob struct {
	mu   sync.RWMutex
	data []byte
	set  bool
}

// NewMemoryBlob creates an empty in-memory blob.
func NewMemoryBlob() *MemoryBlob {
	return &MemoryBlob{}
}

// Describe identifies the blob in logs.
func (m *MemoryBlob) Describe() string {
	return "memory"
}

// Write stores a copy of data.
func (m *MemoryBlob) Write(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.set = true
	return nil
}

// Read returns a copy of the stored data.
func (m *MemoryBlob) Read(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return nil, fmt.Errorf("memory blob: %w", database.ErrNotFound)
	}
	return append([]byte(nil), m.data...), nil
}

// Bytes exposes the raw stored bytes, e.g. to corrupt them in tests.
func (m *MemoryBlob) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.data...)
}
