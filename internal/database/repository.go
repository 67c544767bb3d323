package database

// IdentityReader provides read-only access to enrolled identities.
type IdentityReader interface {
	// Get returns the named identity or ErrNotFound
	Get(name string) (IdentityRecord, error)
	// ListNames returns identity names in enrollment order
	ListNames() []string
	// Snapshot returns a consistent read-only view for matching
	Snapshot() *Snapshot
	// Dim returns the embedding dimension every identity must match
	Dim() int
	Tolerance() float64
	Len() int
}

// IdentityWriter provides write access to enrolled identities.
type IdentityWriter interface {
	IdentityReader

	// Enroll registers or fully replaces an identity; false means nothing changed
	Enroll(name string, embeddings []Vector) (bool, error)

	// EnrollAll applies several enrollments atomically
	EnrollAll(records []IdentityRecord) (int, error)

	// Remove deletes an identity or returns ErrNotFound
	Remove(name string) error

	// SetTolerance changes the accept threshold
	SetTolerance(tolerance float64) error

	// Replace swaps in a snapshot hydrated from persistence
	Replace(snap *Snapshot) error
}

var _ IdentityWriter = (*Store)(nil)
