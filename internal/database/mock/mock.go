// Package mock provides mock implementations of persistence interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/kozaktomas/facedb/internal/database"
	"github.com/kozaktomas/facedb/internal/persistence"
)

// MockStore is an in-memory persistence.Store that keeps the last saved snapshot.
type MockStore struct {
	mu    sync.RWMutex
	saved *database.Snapshot

	saveCalls int
	loadCalls int

	// Error injection
	SaveError error
	LoadError error
}

// NewMockStore creates an empty mock store; Load returns database.ErrNotFound until Save is called.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// NewMockStoreWith creates a mock store that already holds snap.
func NewMockStoreWith(snap *database.Snapshot) *MockStore {
	return &MockStore{saved: snap}
}

// Save records the snapshot
func (m *MockStore) Save(ctx context.Context, snap *database.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.SaveError != nil {
		return m.SaveError
	}
	m.saved = snap
	return nil
}

// Load returns the last saved snapshot
func (m *MockStore) Load(ctx context.Context, dim int) (*database.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCalls++
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	if m.saved == nil {
		return nil, fmt.Errorf("%w: mock store is empty", database.ErrNotFound)
	}
	if dim > 0 && m.saved.Dim() != dim {
		return nil, fmt.Errorf("%w: stored dimension %d, expected %d", database.ErrDeserialization, m.saved.Dim(), dim)
	}
	return m.saved, nil
}

// Describe returns a fixed label
func (m *MockStore) Describe() string {
	return "mock"
}

// Saved returns the last successfully saved snapshot, or nil
func (m *MockStore) Saved() *database.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saved
}

// SaveCalls returns how many times Save was called
func (m *MockStore) SaveCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveCalls
}

// LoadCalls returns how many times Load was called
func (m *MockStore) LoadCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadCalls
}

var _ persistence.Store = (*MockStore)(nil)
