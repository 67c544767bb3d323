package handlers

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/kozaktomas/facedb/internal/database"
	"github.com/kozaktomas/facedb/internal/database/mock"
	"github.com/kozaktomas/facedb/internal/facematch"
	"go.uber.org/zap"
)

var testBox = facematch.Location{Top: 10, Right: 110, Bottom: 110, Left: 10}

func TestRecognizeHandler_Recognize(t *testing.T) {
	session := testSession(t, mock.NewMockStore(), false)
	enroll(t, session, "alice", database.Vector{0, 0, 0})
	enroll(t, session, "bob", database.Vector{0, 5, 0})
	handler := NewRecognizeHandler(session, zap.NewNop())

	body := RecognizeRequest{
		Faces: []FaceInput{
			{Location: testBox, Embedding: []float32{0.45, 0, 0}},
			{Location: testBox, Embedding: []float32{0.62, 0, 0}},
		},
		IncludeCandidates: true,
	}
	recorder := httptest.NewRecorder()
	handler.Recognize(recorder, jsonRequest(t, "POST", "/api/v1/recognize", body))

	assertStatusCode(t, recorder, http.StatusOK)
	var result RecognizeResponse
	parseJSONResponse(t, recorder, &result)

	if result.ID == "" {
		t.Error("expected a recognition ID")
	}
	if result.Total != 2 || result.Recognized != 1 || result.Identities != 2 {
		t.Errorf("unexpected counts: %+v", result)
	}

	first := result.Faces[0]
	if first.Name != "alice" || !first.Recognized {
		t.Errorf("expected alice, got %+v", first)
	}
	if first.Confidence < 0.549 || first.Confidence > 0.551 {
		t.Errorf("expected confidence 0.55, got %v", first.Confidence)
	}
	if len(first.Candidates) != 2 || first.Candidates[0].Name != "alice" {
		t.Errorf("unexpected candidates: %+v", first.Candidates)
	}
	if first.Location != testBox {
		t.Errorf("location not passed through: %+v", first.Location)
	}
	if !reflect.DeepEqual(first.Embedding, []float32{0.45, 0, 0}) {
		t.Errorf("embedding not passed through: %v", first.Embedding)
	}
	if first.Relative != nil {
		t.Errorf("relative box needs the image size, got %v", first.Relative)
	}

	second := result.Faces[1]
	if second.Name != facematch.UnknownName || second.Recognized || second.Confidence != 0 {
		t.Errorf("expected unknown, got %+v", second)
	}
	if second.Index != 1 {
		t.Errorf("expected index 1, got %d", second.Index)
	}
}

func TestRecognizeHandler_EmptyDatabase(t *testing.T) {
	handler := NewRecognizeHandler(testSession(t, mock.NewMockStore(), false), zap.NewNop())

	body := RecognizeRequest{Faces: []FaceInput{{Location: testBox, Embedding: []float32{1, 2, 3}}}}
	recorder := httptest.NewRecorder()
	handler.Recognize(recorder, jsonRequest(t, "POST", "/api/v1/recognize", body))

	assertStatusCode(t, recorder, http.StatusOK)
	var result RecognizeResponse
	parseJSONResponse(t, recorder, &result)
	if result.Faces[0].Distance != nil {
		t.Errorf("expected null distance for empty database, got %v", *result.Faces[0].Distance)
	}
	if result.Faces[0].Name != facematch.UnknownName {
		t.Errorf("expected unknown, got %s", result.Faces[0].Name)
	}
	if result.Faces[0].Candidates != nil {
		t.Error("candidates should be omitted unless requested")
	}
}

func TestRecognizeHandler_InvalidFaces(t *testing.T) {
	tests := []struct {
		name string
		face FaceInput
	}{
		{"wrong dimension", FaceInput{Location: testBox, Embedding: []float32{1, 2}}},
		{"degenerate box", FaceInput{Location: facematch.Location{Top: 10, Right: 10, Bottom: 10, Left: 10}, Embedding: []float32{1, 2, 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewRecognizeHandler(testSession(t, mock.NewMockStore(), false), zap.NewNop())

			body := RecognizeRequest{Faces: []FaceInput{tt.face}}
			recorder := httptest.NewRecorder()
			handler.Recognize(recorder, jsonRequest(t, "POST", "/api/v1/recognize", body))

			assertStatusCode(t, recorder, http.StatusBadRequest)
		})
	}
}

func TestRecognizeHandler_NoFaces(t *testing.T) {
	handler := NewRecognizeHandler(testSession(t, mock.NewMockStore(), false), zap.NewNop())

	recorder := httptest.NewRecorder()
	handler.Recognize(recorder, jsonRequest(t, "POST", "/api/v1/recognize", RecognizeRequest{}))

	assertStatusCode(t, recorder, http.StatusOK)
	var result RecognizeResponse
	parseJSONResponse(t, recorder, &result)
	if result.Total != 0 || len(result.Faces) != 0 {
		t.Errorf("expected no faces, got %+v", result)
	}
}

func TestRecognizeHandler_ToleranceOverride(t *testing.T) {
	session := testSession(t, mock.NewMockStore(), false)
	enroll(t, session, "alice", database.Vector{0, 0, 0})
	handler := NewRecognizeHandler(session, zap.NewNop())

	loose := 0.7
	body := RecognizeRequest{
		Faces:     []FaceInput{{Location: testBox, Embedding: []float32{0.62, 0, 0}}},
		Tolerance: &loose,
	}
	recorder := httptest.NewRecorder()
	handler.Recognize(recorder, jsonRequest(t, "POST", "/api/v1/recognize", body))

	assertStatusCode(t, recorder, http.StatusOK)
	var result RecognizeResponse
	parseJSONResponse(t, recorder, &result)
	if result.Faces[0].Name != "alice" || result.Tolerance != 0.7 {
		t.Errorf("expected alice at tolerance 0.7, got %+v (tolerance %v)", result.Faces[0], result.Tolerance)
	}
	if session.Tolerance() != 0.6 {
		t.Errorf("stored tolerance changed to %v", session.Tolerance())
	}

	bad := -1.0
	body.Tolerance = &bad
	recorder = httptest.NewRecorder()
	handler.Recognize(recorder, jsonRequest(t, "POST", "/api/v1/recognize", body))
	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestRecognizeHandler_RelativeBoxes(t *testing.T) {
	session := testSession(t, mock.NewMockStore(), false)
	enroll(t, session, "alice", database.Vector{0, 0, 0})
	handler := NewRecognizeHandler(session, zap.NewNop())

	body := RecognizeRequest{
		Faces:       []FaceInput{{Location: testBox, Embedding: []float32{0, 0, 0}}},
		ImageWidth:  200,
		ImageHeight: 400,
	}
	recorder := httptest.NewRecorder()
	handler.Recognize(recorder, jsonRequest(t, "POST", "/api/v1/recognize", body))

	assertStatusCode(t, recorder, http.StatusOK)
	var result RecognizeResponse
	parseJSONResponse(t, recorder, &result)

	want := []float64{0.05, 0.025, 0.5, 0.25}
	if !reflect.DeepEqual(result.Faces[0].Relative, want) {
		t.Errorf("Relative = %v, want %v", result.Faces[0].Relative, want)
	}
	if !reflect.DeepEqual(result.Faces[0].Embedding, []float32{0, 0, 0}) {
		t.Errorf("Embedding = %v", result.Faces[0].Embedding)
	}
}
