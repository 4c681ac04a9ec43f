// Package circle locates the circular sample holder in a photograph.
//
// The primary path thresholds the blue-yellow opponent channel and fits a
// minimum enclosing circle around the largest external contour. Images whose
// contour analysis yields nothing usable fall back to a gradient Hough
// transform on the grayscale image.
package circle

import (
	"fmt"
	"math"
)

// MinRadius is the smallest radius a located circle may have.
const MinRadius = 5

// Circle is a located sample region in pixel coordinates.
type Circle struct {
	X int `json:"x"`
	Y int `json:"y"`
	R int `json:"r"`
}

func (c Circle) String() string {
	return fmt.Sprintf("circle(x=%d, y=%d, r=%d)", c.X, c.Y, c.R)
}

// Clip rounds a fitted circle and shrinks its radius so the circle fits in a
// width x height image. It reports false when the clipped radius would drop
// below MinRadius or the centre is outside the image.
func Clip(x, y, r float64, width, height int) (Circle, bool) {
	cx := int(math.RoundToEven(x))
	cy := int(math.RoundToEven(y))
	cr := int(math.RoundToEven(r))
	if cx < 0 || cy < 0 || cx >= width || cy >= height {
		return Circle{}, false
	}
	cr = min(cr, cx, cy, width-cx-1, height-cy-1)
	cr = max(MinRadius, cr)
	if cr > min(cx, cy, width-cx-1, height-cy-1) {
		return Circle{}, false
	}
	return Circle{X: cx, Y: cy, R: cr}, true
}

// Fits reports whether the circle satisfies the clipping invariant for a
// width x height image.
func (c Circle) Fits(width, height int) bool {
	return c.R >= MinRadius && c.R <= min(c.X, c.Y, width-c.X-1, height-c.Y-1)
}
