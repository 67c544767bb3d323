package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/facedb/internal/database"
	"go.uber.org/zap"
)

// EmbeddingFileExt is the extension of embedding files written by the extractor.
const EmbeddingFileExt = ".json"

// embeddingDocument is the object form of an embedding file.
type embeddingDocument struct {
	Embedding []float32 `json:"embedding"`
}

// ParseEmbedding decodes an embedding file. Both {"embedding": [...]} and a
// bare JSON array are accepted.
func ParseEmbedding(data []byte, dim int) (database.Vector, error) {
	data = bytes.TrimSpace(data)
	var values []float32
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("%w: %v", database.ErrInvalidInput, err)
		}
	} else {
		var doc embeddingDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", database.ErrInvalidInput, err)
		}
		values = doc.Embedding
	}

	v := database.Vector(values)
	if err := v.ValidateDim(dim); err != nil {
		return nil, err
	}
	return v, nil
}

// ReadEmbeddingFile reads and parses a single embedding file.
func ReadEmbeddingFile(path string, dim int) (database.Vector, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted flag
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", database.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %w", database.ErrIO, err)
	}
	v, err := ParseEmbedding(data, dim)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// SkippedFile is an embedding file that could not be used.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// PersonReport describes what was imported for one person directory.
type PersonReport struct {
	Name       string        `json:"name"`
	Embeddings int           `json:"embeddings"`
	Skipped    []SkippedFile `json:"skipped,omitempty"`
	// Reason is set when the whole person was skipped
	Reason string `json:"reason,omitempty"`
}

// Imported reports whether the person ended up in the database.
func (p PersonReport) Imported() bool {
	return p.Reason == ""
}

// KnownFacesReport summarizes a directory import.
type KnownFacesReport struct {
	People  []PersonReport `json:"people"`
	Changed int            `json:"changed"`
}

// ImportedCount returns how many people were imported.
func (r *KnownFacesReport) ImportedCount() int {
	n := 0
	for _, p := range r.People {
		if p.Imported() {
			n++
		}
	}
	return n
}

// KnownFacesOptions controls LoadKnownFaces.
type KnownFacesOptions struct {
	// Merge keeps identities that are not present in the directory. Without it
	// the directory becomes the whole database.
	Merge bool
	// Progress is called after every person directory with the number done and the total.
	Progress func(done, total int)
}

// ScanKnownFaces reads a directory with one subdirectory per person, each
// holding embedding files. Files are taken in lexical order, so the first one
// becomes the primary embedding. Unreadable files are skipped and reported;
// people left without any embedding are reported and not returned.
func ScanKnownFaces(dir string, dim int, progress func(done, total int)) ([]database.IdentityRecord, []PersonReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: directory %s", database.ErrNotFound, dir)
		}
		return nil, nil, fmt.Errorf("%w: %w", database.ErrIO, err)
	}

	var people []fs.DirEntry
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			people = append(people, e)
		}
	}

	var records []database.IdentityRecord
	reports := make([]PersonReport, 0, len(people))
	seen := make(map[string]bool, len(people))

	for i, person := range people {
		report := scanPerson(filepath.Join(dir, person.Name()), person.Name(), dim)
		if report.Imported() {
			if seen[report.Name] {
				report.Reason = "duplicate name after normalization"
			}
			seen[report.Name] = true
		}
		if report.Imported() {
			records = append(records, report.record)
		}
		reports = append(reports, report.PersonReport)
		if progress != nil {
			progress(i+1, len(people))
		}
	}
	return records, reports, nil
}

type scannedPerson struct {
	PersonReport
	record database.IdentityRecord
}

func scanPerson(dir, dirName string, dim int) scannedPerson {
	name, err := database.ValidateName(dirName)
	if err != nil {
		return scannedPerson{PersonReport: PersonReport{Name: dirName, Reason: err.Error()}}
	}
	out := scannedPerson{PersonReport: PersonReport{Name: name}}

	files, err := os.ReadDir(dir)
	if err != nil {
		out.Reason = err.Error()
		return out
	}

	var embeddings []database.Vector
	for _, f := range files {
		if f.IsDir() || !strings.EqualFold(filepath.Ext(f.Name()), EmbeddingFileExt) {
			continue
		}
		path := filepath.Join(dir, f.Name())
		v, err := ReadEmbeddingFile(path, dim)
		if err != nil {
			out.Skipped = append(out.Skipped, SkippedFile{Path: path, Reason: err.Error()})
			continue
		}
		embeddings = append(embeddings, v)
	}

	if len(embeddings) == 0 {
		out.Reason = "no valid embeddings"
		return out
	}
	out.Embeddings = len(embeddings)
	out.record = database.IdentityRecord{Name: name, Embeddings: embeddings}
	return out
}

// LoadKnownFaces imports a known-faces directory into the session. The import
// is applied in a single swap, so readers see either the old or the new database.
func (s *Session) LoadKnownFaces(ctx context.Context, dir string, opts KnownFacesOptions) (*KnownFacesReport, error) {
	records, people, err := ScanKnownFaces(dir, s.store.Dim(), opts.Progress)
	if err != nil {
		return nil, err
	}
	for _, p := range people {
		for _, f := range p.Skipped {
			s.logger.Warn("skipping embedding file", zap.String("path", f.Path), zap.String("reason", f.Reason))
		}
		if !p.Imported() {
			s.logger.Warn("skipping person", zap.String("name", p.Name), zap.String("reason", p.Reason))
		}
	}

	report := &KnownFacesReport{People: people}
	if opts.Merge {
		report.Changed, err = s.store.EnrollAll(records)
		if err != nil {
			return nil, err
		}
	} else {
		snap, err := database.NewSnapshot(s.store.Dim(), s.store.Tolerance(), records)
		if err != nil {
			return nil, err
		}
		if err := s.store.Replace(snap); err != nil {
			return nil, err
		}
		report.Changed = len(records)
	}

	s.logger.Info("known faces loaded",
		zap.String("path", dir),
		zap.Int("people", report.ImportedCount()),
		zap.Int("changed", report.Changed))

	if opts.Merge && report.Changed == 0 {
		return report, nil
	}
	return report, s.autoPersist(ctx)
}
