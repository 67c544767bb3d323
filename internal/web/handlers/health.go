package handlers

import (
	"net/http"

	"github.com/kozaktomas/facedb/internal/recognizer"
)

// HealthHandler reports liveness and a summary of the loaded database
type HealthHandler struct {
	session *recognizer.Session
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(session *recognizer.Session, version string) *HealthHandler {
	return &HealthHandler{session: session, version: version}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string  `json:"status"`
	Service    string  `json:"service"`
	Version    string  `json:"version"`
	Session    string  `json:"session"`
	Identities int     `json:"identities"`
	Tolerance  float64 `json:"tolerance"`
	Dimension  int     `json:"dimension"`
}

// Get handles the health check endpoint.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Service:    "facedb",
		Version:    h.version,
		Session:    h.session.ID.String(),
		Identities: snap.Len(),
		Tolerance:  snap.Tolerance(),
		Dimension:  snap.Dim(),
	})
}
