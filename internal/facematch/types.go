// Package facematch decides which enrolled identity, if any, a detected face belongs to.
// Matching is an exact linear scan over the primary embeddings of a store snapshot.
package facematch

import (
	"github.com/kozaktomas/facedb/internal/database"
)

// UnknownName is reported for faces that match no enrolled identity.
const UnknownName = "unknown"

// Face is one detected face as supplied by the external detector and extractor.
type Face struct {
	Index     int
	Location  Location
	Embedding database.Vector
}

// Candidate is the distance from a query to one identity's primary embedding.
type Candidate struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

// Verdict is the outcome of matching a single query embedding.
// It is either Recognized or Unrecognized.
type Verdict interface {
	// Distance to the closest primary embedding; +Inf when the store is empty
	MinDistance() float64
	verdict()
}

// Recognized means the closest identity is within tolerance.
type Recognized struct {
	Name       string
	Confidence float64
	Distance   float64
}

// Unrecognized means no identity is within tolerance.
type Unrecognized struct {
	Distance float64
}

func (r Recognized) MinDistance() float64   { return r.Distance }
func (u Unrecognized) MinDistance() float64 { return u.Distance }
func (Recognized) verdict()                 {}
func (Unrecognized) verdict()               {}

// FaceResult is the per-face outcome of a recognition call.
type FaceResult struct {
	Index      int
	Location   Location
	Verdict    Verdict
	Embedding  database.Vector
	Candidates []Candidate
}

// Name returns the recognized identity or UnknownName.
func (r FaceResult) Name() string {
	if rec, ok := r.Verdict.(Recognized); ok {
		return rec.Name
	}
	return UnknownName
}

// Recognized reports whether the face matched an identity.
func (r FaceResult) Recognized() bool {
	_, ok := r.Verdict.(Recognized)
	return ok
}

// Confidence returns the display confidence, 0 for unrecognized faces.
func (r FaceResult) Confidence() float64 {
	if rec, ok := r.Verdict.(Recognized); ok {
		return rec.Confidence
	}
	return 0
}
