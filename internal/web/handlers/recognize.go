package handlers

import (
	"net/http"

	"github.com/kozaktomas/facedb/internal/database"
	"github.com/kozaktomas/facedb/internal/facematch"
	"github.com/kozaktomas/facedb/internal/recognizer"
	"go.uber.org/zap"
)

// RecognizeHandler handles recognition requests
type RecognizeHandler struct {
	session *recognizer.Session
	logger  *zap.Logger
}

// NewRecognizeHandler creates a new recognize handler
func NewRecognizeHandler(session *recognizer.Session, logger *zap.Logger) *RecognizeHandler {
	return &RecognizeHandler{session: session, logger: logger}
}

// FaceInput is one detected face: its bounding box and extracted embedding
type FaceInput struct {
	Location  facematch.Location `json:"location"`
	Embedding []float32          `json:"embedding"`
}

// RecognizeRequest represents a recognition request
type RecognizeRequest struct {
	Faces             []FaceInput `json:"faces"`
	IncludeCandidates bool        `json:"include_candidates"`
	// Tolerance overrides the stored tolerance for this request only
	Tolerance *float64 `json:"tolerance,omitempty"`
	// ImageWidth and ImageHeight, when both set, add relative boxes to the response
	ImageWidth  int `json:"image_width,omitempty"`
	ImageHeight int `json:"image_height,omitempty"`
}

// FaceResponse is the verdict for one face. Distance is null when nothing is enrolled.
type FaceResponse struct {
	Index      int                   `json:"index"`
	Location   facematch.Location    `json:"location"`
	Relative   []float64             `json:"relative,omitempty"` // [x, y, w, h] in 0-1
	Embedding  []float32             `json:"embedding"`
	Name       string                `json:"name"`
	Recognized bool                  `json:"recognized"`
	Confidence float64               `json:"confidence"`
	Distance   *float64              `json:"distance"`
	Candidates []facematch.Candidate `json:"candidates,omitempty"`
}

// RecognizeResponse represents the recognition result
type RecognizeResponse struct {
	ID         string         `json:"id"`
	Tolerance  float64        `json:"tolerance"`
	Identities int            `json:"identities"`
	Total      int            `json:"total"`
	Recognized int            `json:"recognized"`
	Faces      []FaceResponse `json:"faces"`
}

// Recognize matches every submitted face against the enrolled identities
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	var req RecognizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	faces := make([]facematch.Face, len(req.Faces))
	for i, f := range req.Faces {
		faces[i] = facematch.Face{Index: i, Location: f.Location, Embedding: database.Vector(f.Embedding)}
	}

	var rec *recognizer.Recognition
	var err error
	if req.Tolerance != nil {
		rec, err = h.session.RecognizeWithTolerance(faces, *req.Tolerance)
	} else {
		rec, err = h.session.Recognize(faces)
	}
	if err != nil {
		respondStoreError(w, h.logger, "recognize faces", err)
		return
	}

	resp := RecognizeResponse{
		ID:         rec.ID.String(),
		Tolerance:  rec.Tolerance,
		Identities: rec.Identities,
		Total:      len(rec.Faces),
		Recognized: rec.RecognizedCount(),
		Faces:      make([]FaceResponse, len(rec.Faces)),
	}
	for i, f := range rec.Faces {
		fr := FaceResponse{
			Index:      f.Index,
			Location:   f.Location,
			Relative:   f.Location.Relative(req.ImageWidth, req.ImageHeight),
			Embedding:  f.Embedding,
			Name:       f.Name(),
			Recognized: f.Recognized(),
			Confidence: f.Confidence(),
			Distance:   finiteOrNil(f.Verdict.MinDistance()),
		}
		if req.IncludeCandidates {
			fr.Candidates = f.Candidates
		}
		resp.Faces[i] = fr
	}

	respondJSON(w, http.StatusOK, resp)
}
