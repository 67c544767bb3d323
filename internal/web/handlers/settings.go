package handlers

import (
	"errors"
	"net/http"

	"github.com/kozaktomas/facedb/internal/database"
	"github.com/kozaktomas/facedb/internal/recognizer"
	"go.uber.org/zap"
)

// SettingsHandler handles matcher settings
type SettingsHandler struct {
	session *recognizer.Session
	logger  *zap.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(session *recognizer.Session, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{session: session, logger: logger}
}

// ToleranceBody is used for both the request and the response
type ToleranceBody struct {
	Tolerance float64 `json:"tolerance"`
}

// GetTolerance returns the current accept threshold
func (h *SettingsHandler) GetTolerance(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ToleranceBody{Tolerance: h.session.Tolerance()})
}

// SetTolerance changes the accept threshold
func (h *SettingsHandler) SetTolerance(w http.ResponseWriter, r *http.Request) {
	var req ToleranceBody
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.session.SetTolerance(r.Context(), req.Tolerance); err != nil {
		if errors.Is(err, database.ErrIO) {
			// auto-save failed; the new tolerance is live
			h.logger.Error("saving after tolerance change failed", zap.Float64("tolerance", req.Tolerance), zap.Error(err))
			respondError(w, http.StatusInternalServerError, "tolerance changed but saving the database failed")
			return
		}
		respondStoreError(w, h.logger, "set tolerance", err)
		return
	}
	respondJSON(w, http.StatusOK, ToleranceBody{Tolerance: h.session.Tolerance()})
}
