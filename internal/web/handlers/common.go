package handlers

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/kozaktomas/facedb/internal/database"
	"go.uber.org/zap"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// maxRequestBody caps JSON request bodies; a 128-d face batch is far below it.
const maxRequestBody = 8 << 20

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps the database error kinds to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, database.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrDeserialization):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondStoreError sends an error response classified by statusForError.
// Server-side failures are logged and reported without internal detail.
func respondStoreError(w http.ResponseWriter, logger *zap.Logger, action string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.Error(action+" failed", zap.Error(err))
		respondError(w, status, "failed to "+action)
		return
	}
	respondError(w, status, err.Error())
}

// decodeJSON decodes a size-limited request body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return false
	}
	return true
}

// finiteOrNil returns nil for infinite distances, which JSON cannot represent.
func finiteOrNil(f float64) *float64 {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return &f
}

// toVectors converts request embeddings into database vectors.
func toVectors(in [][]float32) []database.Vector {
	out := make([]database.Vector, len(in))
	for i, v := range in {
		out[i] = database.Vector(v)
	}
	return out
}
