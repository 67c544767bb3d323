package persistence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kozaktomas/facedb/internal/database"
)

// FileBlob keeps the database in a single local file.
type FileBlob struct {
	path string
}

// NewFileBlob creates a file blob at path.
func NewFileBlob(path string) *FileBlob {
	return &FileBlob{path: path}
}

// Describe returns the file location.
func (f *FileBlob) Describe() string {
	return f.path
}

// Write replaces the file atomically: data goes to a temp file in the same
// directory which is synced and renamed over the target.
func (f *FileBlob) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("%w: creating directory %s: %v", database.ErrIO, dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", database.ErrIO, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("%w: writing %s: %v", database.ErrIO, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: syncing %s: %v", database.ErrIO, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %v", database.ErrIO, tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("%w: renaming to %s: %v", database.ErrIO, f.path, err)
	}
	tmpName = ""

	// Best-effort: fsync the directory so the rename is durable.
	if d, err := os.Open(dir); err == nil { //nolint:gosec // dir derives from configured path
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// Read returns the file contents.
func (f *FileBlob) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(f.path) //nolint:gosec // path is from trusted config
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", f.path, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", database.ErrIO, f.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", database.ErrIO, f.path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", database.ErrIO, f.path)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", database.ErrIO, f.path, err)
	}
	return data, nil
}

// NewFileStore returns a Store persisting into a local file.
func NewFileStore(path string, compression Compression) *BlobStore {
	return NewBlobStore(NewFileBlob(path), compression)
}
