package recognizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kozaktomas/facedb/internal/database"
	"github.com/kozaktomas/facedb/internal/facematch"
)

// facesDocument is the detector output for one image: every face with its box and embedding.
type facesDocument struct {
	Image string `json:"image,omitempty"`
	Faces []struct {
		Location  facematch.Location `json:"location"`
		Embedding []float32          `json:"embedding"`
	} `json:"faces"`
}

// ParseFaces decodes a faces document and validates each face.
func ParseFaces(data []byte, dim int) ([]facematch.Face, error) {
	var doc facesDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", database.ErrInvalidInput, err)
	}

	faces := make([]facematch.Face, len(doc.Faces))
	for i, f := range doc.Faces {
		if err := f.Location.Validate(); err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
		v := database.Vector(f.Embedding)
		if err := v.ValidateDim(dim); err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
		faces[i] = facematch.Face{Index: i, Location: f.Location, Embedding: v}
	}
	return faces, nil
}

// ReadFacesFile reads and parses a faces document.
func ReadFacesFile(path string, dim int) ([]facematch.Face, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted flag
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", database.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %w", database.ErrIO, err)
	}
	faces, err := ParseFaces(data, dim)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return faces, nil
}
