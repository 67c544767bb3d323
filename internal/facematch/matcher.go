package facematch

import (
	"fmt"
	"math"

	"github.com/kozaktomas/facedb/internal/database"
)

// Confidence converts a distance into the display confidence 1 - distance,
// clamped to [0, 1]. It is a heuristic, not a probability.
func Confidence(distance float64) float64 {
	if math.IsNaN(distance) || math.IsInf(distance, 0) {
		return 0
	}
	return min(max(1-distance, 0), 1)
}

// Distances computes the distance from query to every identity's primary embedding,
// in enrollment order.
func Distances(snap *database.Snapshot, query database.Vector) []Candidate {
	candidates := make([]Candidate, 0, snap.Len())
	snap.Range(func(_ int, rec database.IdentityRecord) bool {
		candidates = append(candidates, Candidate{
			Name:     rec.Name,
			Distance: database.EuclideanDistance(query, rec.Primary()),
		})
		return true
	})
	return candidates
}

// Decide picks the closest candidate and applies the tolerance. Ties go to the
// candidate that comes first, i.e. the identity enrolled earliest.
func Decide(candidates []Candidate, tolerance float64) Verdict {
	best := -1
	bestDistance := math.Inf(1)
	for i, c := range candidates {
		if c.Distance < bestDistance {
			best = i
			bestDistance = c.Distance
		}
	}

	if best < 0 || !(bestDistance < tolerance) {
		return Unrecognized{Distance: bestDistance}
	}
	return Recognized{
		Name:       candidates[best].Name,
		Confidence: Confidence(bestDistance),
		Distance:   bestDistance,
	}
}

// Match finds the best identity for a single query embedding.
func Match(snap *database.Snapshot, query database.Vector) (Verdict, error) {
	v, _, err := match(snap, query)
	return v, err
}

func match(snap *database.Snapshot, query database.Vector) (Verdict, []Candidate, error) {
	if err := query.ValidateDim(snap.Dim()); err != nil {
		return nil, nil, fmt.Errorf("match: %w", err)
	}
	if snap.Len() == 0 {
		return Unrecognized{Distance: math.Inf(1)}, nil, nil
	}
	candidates := Distances(snap, query)
	return Decide(candidates, snap.Tolerance()), candidates, nil
}

// MatchFaces matches every face independently against the same snapshot. Several
// faces may resolve to the same identity; no one-to-one assignment is attempted.
// Any invalid face rejects the whole call.
func MatchFaces(snap *database.Snapshot, faces []Face) ([]FaceResult, error) {
	results := make([]FaceResult, 0, len(faces))
	for i, f := range faces {
		if err := f.Location.Validate(); err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
		v, candidates, err := match(snap, f.Embedding)
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
		results = append(results, FaceResult{
			Index:      f.Index,
			Location:   f.Location,
			Verdict:    v,
			Embedding:  f.Embedding.Clone(),
			Candidates: candidates,
		})
	}
	return results, nil
}
