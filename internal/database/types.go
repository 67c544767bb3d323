package database

import (
	"fmt"
	"math"
)

// IdentityRecord is one enrolled identity with its embeddings in insertion order.
// Only the first embedding (the primary) is scanned during matching; the rest are
// kept for provenance.
type IdentityRecord struct {
	Name       string
	Embeddings []Vector
}

// Primary returns the embedding used for matching.
func (r IdentityRecord) Primary() Vector {
	if len(r.Embeddings) == 0 {
		return nil
	}
	return r.Embeddings[0]
}

// Clone returns a deep copy of the record.
func (r IdentityRecord) Clone() IdentityRecord {
	embeddings := make([]Vector, len(r.Embeddings))
	for i, e := range r.Embeddings {
		embeddings[i] = e.Clone()
	}
	return IdentityRecord{Name: r.Name, Embeddings: embeddings}
}

// Equal reports whether both records carry the same name and bit-identical embeddings.
func (r IdentityRecord) Equal(other IdentityRecord) bool {
	if r.Name != other.Name || len(r.Embeddings) != len(other.Embeddings) {
		return false
	}
	for i := range r.Embeddings {
		if !r.Embeddings[i].Equal(other.Embeddings[i]) {
			return false
		}
	}
	return true
}

// Snapshot is an immutable view of the encoding database: records in enrollment
// order, the embedding dimension and the match tolerance. Snapshots are never
// modified after construction; the store publishes a new one on every mutation.
type Snapshot struct {
	dim       int
	tolerance float64
	records   []IdentityRecord
	index     map[string]int
}

// NewSnapshot validates and assembles a snapshot. Names are normalized, must be
// unique, and every record needs at least one embedding of dimension dim.
// The records are deep-copied.
func NewSnapshot(dim int, tolerance float64, records []IdentityRecord) (*Snapshot, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive, got %d", ErrInvalidInput, dim)
	}
	if err := validateTolerance(tolerance); err != nil {
		return nil, err
	}

	s := &Snapshot{
		dim:       dim,
		tolerance: tolerance,
		records:   make([]IdentityRecord, 0, len(records)),
		index:     make(map[string]int, len(records)),
	}
	for _, rec := range records {
		clean, err := prepareRecord(dim, rec.Name, rec.Embeddings)
		if err != nil {
			return nil, err
		}
		if _, dup := s.index[clean.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate identity %q", ErrInvalidInput, clean.Name)
		}
		s.index[clean.Name] = len(s.records)
		s.records = append(s.records, clean)
	}
	return s, nil
}

// EmptySnapshot returns a snapshot with no identities.
func EmptySnapshot(dim int, tolerance float64) (*Snapshot, error) {
	return NewSnapshot(dim, tolerance, nil)
}

// Dim returns the embedding dimension of the database.
func (s *Snapshot) Dim() int { return s.dim }

// Tolerance returns the accept threshold.
func (s *Snapshot) Tolerance() float64 { return s.tolerance }

// Len returns the number of identities.
func (s *Snapshot) Len() int { return len(s.records) }

// Names returns identity names in enrollment order.
func (s *Snapshot) Names() []string {
	names := make([]string, len(s.records))
	for i, r := range s.records {
		names[i] = r.Name
	}
	return names
}

// Get returns a copy of the named record.
func (s *Snapshot) Get(name string) (IdentityRecord, bool) {
	i, ok := s.index[NormalizeName(name)]
	if !ok {
		return IdentityRecord{}, false
	}
	return s.records[i].Clone(), true
}

// Records returns a deep copy of all records in enrollment order.
func (s *Snapshot) Records() []IdentityRecord {
	out := make([]IdentityRecord, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Range calls fn for every record in enrollment order until fn returns false.
// The record passed to fn is shared with the snapshot and must not be modified.
func (s *Snapshot) Range(fn func(i int, rec IdentityRecord) bool) {
	for i, r := range s.records {
		if !fn(i, r) {
			return
		}
	}
}

// EmbeddingCount returns the total number of stored embeddings across identities.
func (s *Snapshot) EmbeddingCount() int {
	n := 0
	for _, r := range s.records {
		n += len(r.Embeddings)
	}
	return n
}

// withRecord returns a copy with rec inserted or, when the name exists, replaced
// in place so the identity keeps its enrollment position.
func (s *Snapshot) withRecord(rec IdentityRecord) *Snapshot {
	next := s.shallowCopy(len(s.records) + 1)
	if i, ok := next.index[rec.Name]; ok {
		next.records[i] = rec
		return next
	}
	next.index[rec.Name] = len(next.records)
	next.records = append(next.records, rec)
	return next
}

// withoutRecord returns a copy without the named record.
func (s *Snapshot) withoutRecord(name string) *Snapshot {
	next := &Snapshot{
		dim:       s.dim,
		tolerance: s.tolerance,
		records:   make([]IdentityRecord, 0, len(s.records)),
		index:     make(map[string]int, len(s.records)),
	}
	for _, r := range s.records {
		if r.Name == name {
			continue
		}
		next.index[r.Name] = len(next.records)
		next.records = append(next.records, r)
	}
	return next
}

// withTolerance returns a copy with a different accept threshold.
func (s *Snapshot) withTolerance(tolerance float64) *Snapshot {
	next := s.shallowCopy(len(s.records))
	next.tolerance = tolerance
	return next
}

// shallowCopy copies the record slice and index; records themselves are shared
// because they are never mutated once published.
func (s *Snapshot) shallowCopy(capacity int) *Snapshot {
	next := &Snapshot{
		dim:       s.dim,
		tolerance: s.tolerance,
		records:   make([]IdentityRecord, len(s.records), capacity),
		index:     make(map[string]int, capacity),
	}
	copy(next.records, s.records)
	for k, v := range s.index {
		next.index[k] = v
	}
	return next
}

// prepareRecord validates name and embeddings and returns a private deep copy.
func prepareRecord(dim int, name string, embeddings []Vector) (IdentityRecord, error) {
	clean, err := ValidateName(name)
	if err != nil {
		return IdentityRecord{}, err
	}
	if len(embeddings) == 0 {
		return IdentityRecord{}, fmt.Errorf("%w: identity %q has no embeddings", ErrInvalidInput, clean)
	}
	rec := IdentityRecord{Name: clean, Embeddings: make([]Vector, len(embeddings))}
	for i, e := range embeddings {
		if err := e.ValidateDim(dim); err != nil {
			return IdentityRecord{}, fmt.Errorf("identity %q embedding %d: %w", clean, i, err)
		}
		rec.Embeddings[i] = e.Clone()
	}
	return rec, nil
}

func validateTolerance(tolerance float64) error {
	if math.IsNaN(tolerance) || math.IsInf(tolerance, 0) || tolerance <= 0 {
		return fmt.Errorf("%w: tolerance must be a positive finite number, got %v", ErrInvalidInput, tolerance)
	}
	return nil
}
