package circle

import "github.com/MeKo-Tech/teavision/internal/utils"

// Contour is the outer boundary of one connected component.
type Contour struct {
	Points []utils.Point
	Area   float64
}

// externalContours returns the outer boundary of every 8-connected component
// of m. Components nested inside holes of other components are returned as
// well; they never exceed their parent's area.
func externalContours(m *utils.Mask) []Contour {
	comps, labels := connectedComponents(m)
	contours := make([]Contour, 0, len(comps))
	for _, st := range comps {
		pts := traceContourMoore(labels, m.Width, m.Height, st)
		contours = append(contours, Contour{Points: pts, Area: utils.PolygonArea(pts)})
	}
	return contours
}

// largestContour returns the contour with maximum area. The first one wins
// ties.
func largestContour(contours []Contour) (Contour, bool) {
	if len(contours) == 0 {
		return Contour{}, false
	}
	best := contours[0]
	for _, c := range contours[1:] {
		if c.Area > best.Area {
			best = c
		}
	}
	return best, true
}

// traceContourMoore extracts a boundary polygon for the labelled component
// using Moore-neighbour tracing. Tracing stops when the walk is back at the
// start pixel and about to repeat its first move. Returned points are
// pixel-centre coordinates with collinear runs collapsed.
func traceContourMoore(labels []int32, w, h int, st compStats) []utils.Point {
	isLabel := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && labels[y*w+x] == st.label
	}

	// the first pixel in raster order is always on the outer boundary
	sx, sy := -1, -1
	for x := st.minX; x <= st.maxX && sx < 0; x++ {
		if isLabel(x, st.minY) {
			sx, sy = x, st.minY
		}
	}
	if sx < 0 {
		return nil
	}

	pts := make([]utils.Point, 0, 64)
	addPoint := func(x, y int) {
		p := utils.Point{X: float64(x), Y: float64(y)}
		n := len(pts)
		if n > 0 && pts[n-1] == p {
			return
		}
		if n >= 2 {
			a, b := pts[n-2], pts[n-1]
			if (b.X-a.X)*(p.Y-b.Y)-(b.Y-a.Y)*(p.X-b.X) == 0 {
				pts = pts[:n-1]
			}
		}
		pts = append(pts, p)
	}
	addPoint(sx, sy)

	cx, cy := sx, sy
	bx, by := sx-1, sy
	p1x, p1y := -1, -1
	maxSteps := 4*(st.count+8) + 8

	for step := range maxSteps {
		nx, ny, nbx, nby, found := findNextBoundaryPixel(isLabel, cx, cy, bx, by)
		if !found {
			break
		}
		// back at the start and about to repeat the first move
		if step > 0 && cx == sx && cy == sy && nx == p1x && ny == p1y {
			break
		}
		if step == 0 {
			p1x, p1y = nx, ny
		}
		cx, cy, bx, by = nx, ny, nbx, nby
		addPoint(cx, cy)
	}

	if len(pts) >= 2 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	return pts
}

// 8-neighbourhood clockwise order (y down): E, SE, S, SW, W, NW, N, NE.
var (
	ndx = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	ndy = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

func dirIndex(dx, dy int) int {
	for i := range 8 {
		if ndx[i] == dx && ndy[i] == dy {
			return i
		}
	}
	return 0
}

// findNextBoundaryPixel scans the Moore neighbourhood of (cx, cy) clockwise,
// starting just after the backtrack pixel (bx, by).
func findNextBoundaryPixel(isLabel func(x, y int) bool, cx, cy, bx, by int) (int, int, int, int, bool) {
	start := (dirIndex(bx-cx, by-cy) + 1) % 8
	for k := range 8 {
		i := (start + k) % 8
		tx, ty := cx+ndx[i], cy+ndy[i]
		if isLabel(tx, ty) {
			return tx, ty, bx, by, true
		}
		bx, by = tx, ty
	}
	return 0, 0, bx, by, false
}
