package persistence

import (
	"context"
	"fmt"

	"github.com/kozaktomas/facedb/internal/database"
)

// Store persists whole encoding databases.
type Store interface {
	// Save writes the full snapshot, replacing any previous one
	Save(ctx context.Context, snap *database.Snapshot) error
	// Load restores a snapshot. Missing data yields database.ErrNotFound,
	// corrupt data database.ErrDeserialization.
	Load(ctx context.Context, dim int) (*database.Snapshot, error)
	// Describe returns a human readable location for logs
	Describe() string
}

// Blob is a byte-level medium holding one encoded database.
type Blob interface {
	Write(ctx context.Context, data []byte) error
	// Read returns database.ErrNotFound when nothing was written yet
	Read(ctx context.Context) ([]byte, error)
	Describe() string
}

// Compression selects how blobs are compressed before they are written.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

// BlobStore encodes snapshots with the binary codec and keeps them in a Blob.
type BlobStore struct {
	blob        Blob
	compression Compression
}

// NewBlobStore creates a store on top of blob. Loading detects compression on
// its own, so the setting only affects writes.
func NewBlobStore(blob Blob, compression Compression) *BlobStore {
	if compression == "" {
		compression = CompressionNone
	}
	return &BlobStore{blob: blob, compression: compression}
}

// Save encodes and writes the snapshot.
func (s *BlobStore) Save(ctx context.Context, snap *database.Snapshot) error {
	data, err := Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding database: %w", err)
	}
	if s.compression == CompressionZstd {
		if data, err = compress(data); err != nil {
			return fmt.Errorf("%w: %w", database.ErrIO, err)
		}
	}
	if err := s.blob.Write(ctx, data); err != nil {
		return fmt.Errorf("saving database to %s: %w", s.blob.Describe(), err)
	}
	return nil
}

// Load reads and decodes the snapshot.
func (s *BlobStore) Load(ctx context.Context, dim int) (*database.Snapshot, error) {
	data, err := s.blob.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading database from %s: %w", s.blob.Describe(), err)
	}
	if isCompressed(data) {
		if data, err = decompress(data); err != nil {
			return nil, fmt.Errorf("loading database from %s: %w", s.blob.Describe(), err)
		}
	}
	snap, err := Unmarshal(data, dim)
	if err != nil {
		return nil, fmt.Errorf("loading database from %s: %w", s.blob.Describe(), err)
	}
	return snap, nil
}

// Describe returns the underlying blob location.
func (s *BlobStore) Describe() string {
	if s.compression == CompressionZstd {
		return s.blob.Describe() + " (zstd)"
	}
	return s.blob.Describe()
}

var _ Store = (*BlobStore)(nil)
