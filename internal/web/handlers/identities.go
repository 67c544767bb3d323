package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facedb/internal/database"
	"github.com/kozaktomas/facedb/internal/recognizer"
	"go.uber.org/zap"
)

// IdentitiesHandler handles enrollment endpoints
type IdentitiesHandler struct {
	session *recognizer.Session
	logger  *zap.Logger
}

// NewIdentitiesHandler creates a new identities handler
func NewIdentitiesHandler(session *recognizer.Session, logger *zap.Logger) *IdentitiesHandler {
	return &IdentitiesHandler{session: session, logger: logger}
}

// IdentityListResponse represents the list of enrolled identities
type IdentityListResponse struct {
	Identities []recognizer.IdentitySummary `json:"identities"`
	Count      int                          `json:"count"`
}

// IdentityResponse represents a single identity with its embeddings
type IdentityResponse struct {
	Name       string      `json:"name"`
	Count      int         `json:"count"`
	Embeddings [][]float32 `json:"embeddings"`
}

// EnrollRequest represents an enrollment request; the first embedding is the primary
type EnrollRequest struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EnrollResponse represents the enrollment result
type EnrollResponse struct {
	Name    string `json:"name"`
	Count   int    `json:"count"`
	Changed bool   `json:"changed"`
}

// List returns all identities in enrollment order
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	list := h.session.List()
	respondJSON(w, http.StatusOK, IdentityListResponse{Identities: list, Count: len(list)})
}

// Get returns a single identity
func (h *IdentitiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.session.Get(chi.URLParam(r, "name"))
	if err != nil {
		respondStoreError(w, h.logger, "get identity", err)
		return
	}

	embeddings := make([][]float32, len(rec.Embeddings))
	for i, e := range rec.Embeddings {
		embeddings[i] = e
	}
	respondJSON(w, http.StatusOK, IdentityResponse{
		Name:       rec.Name,
		Count:      len(rec.Embeddings),
		Embeddings: embeddings,
	})
}

// Enroll registers or retrains the identity named in the URL
func (h *IdentitiesHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	name := database.NormalizeName(chi.URLParam(r, "name"))
	existed := false
	if _, err := h.session.Get(name); err == nil {
		existed = true
	}

	changed, err := h.session.Enroll(r.Context(), name, toVectors(req.Embeddings))
	if err != nil && changed {
		// auto-save failed; the enrollment itself is live
		h.logger.Error("saving after enroll failed", zap.String("name", sanitizeForLog(name)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "identity enrolled but saving the database failed")
		return
	}
	if err != nil {
		h.logger.Warn("enroll failed", zap.String("name", sanitizeForLog(name)), zap.Error(err))
		respondStoreError(w, h.logger, "enroll identity", err)
		return
	}

	status := http.StatusOK
	if !existed {
		status = http.StatusCreated
	}
	respondJSON(w, status, EnrollResponse{Name: name, Count: len(req.Embeddings), Changed: changed})
}

// Delete removes the identity named in the URL
func (h *IdentitiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Remove(r.Context(), chi.URLParam(r, "name")); err != nil {
		if errors.Is(err, database.ErrIO) {
			h.logger.Error("saving after remove failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "identity removed but saving the database failed")
			return
		}
		respondStoreError(w, h.logger, "remove identity", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
