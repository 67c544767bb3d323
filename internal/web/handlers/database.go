package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/kozaktomas/facedb/internal/recognizer"
	"go.uber.org/zap"
)

// DatabaseHandler handles persistence endpoints
type DatabaseHandler struct {
	session *recognizer.Session
	logger  *zap.Logger
}

// NewDatabaseHandler creates a new database handler
func NewDatabaseHandler(session *recognizer.Session, logger *zap.Logger) *DatabaseHandler {
	return &DatabaseHandler{session: session, logger: logger}
}

// DatabaseResponse describes the database after a save or reload
type DatabaseResponse struct {
	Backend    string     `json:"backend"`
	Identities int        `json:"identities"`
	Embeddings int        `json:"embeddings"`
	Tolerance  float64    `json:"tolerance"`
	Dimension  int        `json:"dimension"`
	Loaded     *bool      `json:"loaded,omitempty"`
	LastSaved  *time.Time `json:"last_saved,omitempty"`
	// Corrupt is the decoding error of the persisted database; saves need force while it is set
	Corrupt string `json:"corrupt,omitempty"`
}

func (h *DatabaseHandler) describe() DatabaseResponse {
	snap := h.session.Snapshot()
	resp := DatabaseResponse{
		Backend:    h.session.Backend(),
		Identities: snap.Len(),
		Embeddings: snap.EmbeddingCount(),
		Tolerance:  snap.Tolerance(),
		Dimension:  snap.Dim(),
	}
	if t := h.session.LastSaved(); !t.IsZero() {
		resp.LastSaved = &t
	}
	if err := h.session.Corrupt(); err != nil {
		resp.Corrupt = err.Error()
	}
	return resp
}

// Info describes the loaded database
func (h *DatabaseHandler) Info(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.describe())
}

// Save persists the current database. While the persisted database is
// corrupt it answers 409 unless the request carries ?force=true.
func (h *DatabaseHandler) Save(w http.ResponseWriter, r *http.Request) {
	save := h.session.Save
	if r.URL.Query().Get("force") == "true" {
		save = h.session.Overwrite
	}
	if err := save(r.Context()); err != nil {
		if errors.Is(err, recognizer.ErrSaveBlocked) {
			respondError(w, http.StatusConflict, "persisted database is corrupt, save with force=true to overwrite it")
			return
		}
		respondStoreError(w, h.logger, "save database", err)
		return
	}
	respondJSON(w, http.StatusOK, h.describe())
}

// Reload replaces the in-memory database with the persisted one. A corrupt
// database is reported and the current state is kept.
func (h *DatabaseHandler) Reload(w http.ResponseWriter, r *http.Request) {
	loaded, err := h.session.Load(r.Context())
	if err != nil {
		respondStoreError(w, h.logger, "reload database", err)
		return
	}
	resp := h.describe()
	resp.Loaded = &loaded
	respondJSON(w, http.StatusOK, resp)
}
