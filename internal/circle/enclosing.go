package circle

import (
	"math"
	"math/rand/v2"

	"github.com/MeKo-Tech/teavision/internal/utils"
)

// enclosing is a circle in float coordinates.
type enclosing struct {
	X, Y, R float64
}

const enclosingEps = 1e-7

func (c enclosing) contains(p utils.Point) bool {
	return math.Hypot(p.X-c.X, p.Y-c.Y) <= c.R+enclosingEps
}

// minEnclosingCircle returns the smallest circle containing every point
// (Welzl's algorithm, iterative form). The point order is shuffled with a
// fixed seed so the result is reproducible.
func minEnclosingCircle(pts []utils.Point) enclosing {
	hull := utils.ConvexHull(pts)
	switch len(hull) {
	case 0:
		return enclosing{}
	case 1:
		return enclosing{X: hull[0].X, Y: hull[0].Y}
	}

	rng := rand.New(rand.NewPCG(0x7ea, 0xc1c1e))
	rng.Shuffle(len(hull), func(i, j int) { hull[i], hull[j] = hull[j], hull[i] })

	c := enclosing{X: hull[0].X, Y: hull[0].Y}
	for i := 1; i < len(hull); i++ {
		if c.contains(hull[i]) {
			continue
		}
		c = enclosing{X: hull[i].X, Y: hull[i].Y}
		for j := range i {
			if c.contains(hull[j]) {
				continue
			}
			c = circleFrom2(hull[i], hull[j])
			for k := range j {
				if !c.contains(hull[k]) {
					c = circleFrom3(hull[i], hull[j], hull[k])
				}
			}
		}
	}
	return c
}

func circleFrom2(a, b utils.Point) enclosing {
	return enclosing{
		X: (a.X + b.X) / 2,
		Y: (a.Y + b.Y) / 2,
		R: math.Hypot(a.X-b.X, a.Y-b.Y) / 2,
	}
}

// circleFrom3 returns the circumcircle of a, b, c, or the circle spanning
// the farthest pair when the points are collinear.
func circleFrom3(a, b, c utils.Point) enclosing {
	bx, by := b.X-a.X, b.Y-a.Y
	cx, cy := c.X-a.X, c.Y-a.Y
	d := 2 * (bx*cy - by*cx)
	if math.Abs(d) < 1e-12 {
		best := circleFrom2(a, b)
		for _, e := range []enclosing{circleFrom2(a, c), circleFrom2(b, c)} {
			if e.R > best.R {
				best = e
			}
		}
		return best
	}
	b2 := bx*bx + by*by
	c2 := cx*cx + cy*cy
	ux := (cy*b2 - by*c2) / d
	uy := (bx*c2 - cx*b2) / d
	return enclosing{X: ux + a.X, Y: uy + a.Y, R: math.Hypot(ux, uy)}
}
