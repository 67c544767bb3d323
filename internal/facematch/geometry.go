package facematch

import (
	"fmt"

	"github.com/kozaktomas/facedb/internal/database"
)

// Location is a face bounding box in pixel coordinates as reported by the detector,
// in (top, right, bottom, left) order.
type Location struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Validate rejects boxes with negative coordinates or non-positive extent.
func (l Location) Validate() error {
	if l.Top < 0 || l.Left < 0 {
		return fmt.Errorf("%w: bounding box has negative coordinates", database.ErrInvalidInput)
	}
	if l.Right <= l.Left || l.Bottom <= l.Top {
		return fmt.Errorf("%w: bounding box (%d, %d, %d, %d) has no area",
			database.ErrInvalidInput, l.Top, l.Right, l.Bottom, l.Left)
	}
	return nil
}

// Width returns the horizontal extent in pixels.
func (l Location) Width() int { return l.Right - l.Left }

// Height returns the vertical extent in pixels.
func (l Location) Height() int { return l.Bottom - l.Top }

// Relative converts the box to relative [x, y, w, h] coordinates (0-1) for an
// image of the given size. Returns nil when the size is unknown.
func (l Location) Relative(width, height int) []float64 {
	if width <= 0 || height <= 0 {
		return nil
	}
	return []float64{
		float64(l.Left) / float64(width),
		float64(l.Top) / float64(height),
		float64(l.Width()) / float64(width),
		float64(l.Height()) / float64(height),
	}
}
