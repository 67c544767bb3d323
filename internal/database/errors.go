package database

import "errors"

// Error kinds surfaced by the store, the matcher and the persistence backends.
// Callers classify failures with errors.Is; every layer wraps with %w.
var (
	// ErrInvalidInput covers empty names, empty embedding sets and dimension mismatches.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned for unknown identities and missing persisted databases.
	ErrNotFound = errors.New("not found")
	// ErrDeserialization marks a persisted database that is truncated or structurally invalid.
	ErrDeserialization = errors.New("deserialization error")
	// ErrIO marks a failure reading or writing the persistence medium.
	ErrIO = errors.New("io error")
)
