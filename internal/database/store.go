package database

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Store holds the encoding database of one recognition session.
//
// Mutations are serialized by a writer lock and publish a fresh Snapshot with an
// atomic pointer swap, so readers never block and always observe either the
// state before or after a mutation, never a partially replaced identity.
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
}

// NewStore creates an empty store for embeddings of the given dimension.
func NewStore(dim int, tolerance float64) (*Store, error) {
	snap, err := EmptySnapshot(dim, tolerance)
	if err != nil {
		return nil, err
	}
	s := &Store{}
	s.current.Store(snap)
	return s, nil
}

// Snapshot returns the current read-only view.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Dim returns the embedding dimension.
func (s *Store) Dim() int {
	return s.Snapshot().Dim()
}

// Tolerance returns the current accept threshold.
func (s *Store) Tolerance() float64 {
	return s.Snapshot().Tolerance()
}

// Len returns the number of enrolled identities.
func (s *Store) Len() int {
	return s.Snapshot().Len()
}

// Enroll registers name with the given embeddings. An existing identity is fully
// replaced (retrain semantics) and keeps its enrollment position. The first
// embedding becomes the primary. Returns false when the identity already holds
// identical data and nothing changed.
func (s *Store) Enroll(name string, embeddings []Vector) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	rec, err := prepareRecord(cur.Dim(), name, embeddings)
	if err != nil {
		return false, fmt.Errorf("enroll: %w", err)
	}

	if i, ok := cur.index[rec.Name]; ok && cur.records[i].Equal(rec) {
		return false, nil
	}

	s.current.Store(cur.withRecord(rec))
	return true, nil
}

// EnrollAll enrolls several identities in one swap: either every record is
// applied or, when any of them is invalid, none is. Later records with the same
// name win. Returns how many identities actually changed.
func (s *Store) EnrollAll(records []IdentityRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	next := cur
	changed := 0
	for _, r := range records {
		rec, err := prepareRecord(cur.Dim(), r.Name, r.Embeddings)
		if err != nil {
			return 0, fmt.Errorf("enroll: %w", err)
		}
		if i, ok := next.index[rec.Name]; ok && next.records[i].Equal(rec) {
			continue
		}
		next = next.withRecord(rec)
		changed++
	}

	if changed > 0 {
		s.current.Store(next)
	}
	return changed, nil
}

// Remove deletes the named identity.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	key := NormalizeName(name)
	if _, ok := cur.index[key]; !ok {
		return fmt.Errorf("remove %q: %w", key, ErrNotFound)
	}
	s.current.Store(cur.withoutRecord(key))
	return nil
}

// Get returns a copy of the named identity.
func (s *Store) Get(name string) (IdentityRecord, error) {
	rec, ok := s.Snapshot().Get(name)
	if !ok {
		return IdentityRecord{}, fmt.Errorf("get %q: %w", NormalizeName(name), ErrNotFound)
	}
	return rec, nil
}

// ListNames returns identity names in enrollment order.
func (s *Store) ListNames() []string {
	return s.Snapshot().Names()
}

// SetTolerance changes the accept threshold.
func (s *Store) SetTolerance(tolerance float64) error {
	if err := validateTolerance(tolerance); err != nil {
		return fmt.Errorf("set tolerance: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(s.current.Load().withTolerance(tolerance))
	return nil
}

// Replace swaps in a whole snapshot, typically one hydrated from persistence.
// The snapshot must use the store's embedding dimension.
func (s *Store) Replace(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dim := s.current.Load().Dim(); snap.Dim() != dim {
		return fmt.Errorf("%w: snapshot dimension %d does not match store dimension %d",
			ErrInvalidInput, snap.Dim(), dim)
	}
	s.current.Store(snap)
	return nil
}
