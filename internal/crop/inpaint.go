package crop

import (
	"container/heap"
	"math"

	"github.com/MeKo-Tech/teavision/internal/utils"
)

// Inpainter fills the set pixels of mask from their surroundings.
type Inpainter interface {
	Inpaint(buf *utils.Buffer, mask *utils.Mask, radius int) (*utils.Buffer, error)
}

const (
	flagKnown uint8 = iota
	flagBand
	flagInside
)

// TeleaInpainter implements the fast marching inpainting method of Telea
// (2004). Pixels are filled in order of their distance from the hole
// boundary, each as a weighted mean of already known pixels within radius.
type TeleaInpainter struct{}

// Inpaint implements Inpainter.
func (TeleaInpainter) Inpaint(buf *utils.Buffer, mask *utils.Mask, radius int) (*utils.Buffer, error) {
	if err := buf.Validate(utils.BGR); err != nil {
		return nil, err
	}
	out := buf.Clone()
	w, h := buf.Width, buf.Height
	if mask.Width != w || mask.Height != h || mask.Count() == 0 {
		return out, nil
	}
	radius = max(radius, 1)

	flags := make([]uint8, w*h)
	dist := make([]float64, w*h)
	for i, v := range mask.Pix {
		if v != 0 {
			flags[i] = flagInside
			dist[i] = math.Inf(1)
		}
	}

	q := &bandQueue{}
	// The narrow band holds known pixels 4-adjacent to the hole.
	for y := range h {
		for x := range w {
			i := y*w + x
			if flags[i] != flagKnown {
				continue
			}
			if hasInsideNeighbour(flags, w, h, x, y) {
				flags[i] = flagBand
				heap.Push(q, bandItem{idx: i, t: 0})
			}
		}
	}

	f := &fmm{w: w, h: h, flags: flags, dist: dist, radius: radius, out: out}
	for q.Len() > 0 {
		it := heap.Pop(q).(bandItem)
		if it.t > dist[it.idx] {
			continue
		}
		flags[it.idx] = flagKnown
		x, y := it.idx%w, it.idx/w

		for _, d := range neighbours4 {
			nx, ny := x+d[0], y+d[1]
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			ni := ny*w + nx
			if flags[ni] != flagInside {
				continue
			}
			dist[ni] = f.arrival(nx, ny)
			flags[ni] = flagBand
			f.paint(nx, ny)
			heap.Push(q, bandItem{idx: ni, t: dist[ni]})
		}
	}
	return out, nil
}

var neighbours4 = [4][2]int{{0, -1}, {-1, 0}, {1, 0}, {0, 1}}

func hasInsideNeighbour(flags []uint8, w, h, x, y int) bool {
	for _, d := range neighbours4 {
		nx, ny := x+d[0], y+d[1]
		if nx >= 0 && ny >= 0 && nx < w && ny < h && flags[ny*w+nx] == flagInside {
			return true
		}
	}
	return false
}

type fmm struct {
	w, h   int
	flags  []uint8
	dist   []float64
	radius int
	out    *utils.Buffer
}

func (f *fmm) usable(x, y int) bool {
	return x >= 0 && y >= 0 && x < f.w && y < f.h && f.flags[y*f.w+x] != flagInside
}

func (f *fmm) known(x, y int) bool {
	return x >= 0 && y >= 0 && x < f.w && y < f.h && f.flags[y*f.w+x] == flagKnown
}

func (f *fmm) t(x, y int) float64 { return f.dist[y*f.w+x] }

// arrival solves the eikonal equation at (x, y) from its known neighbours.
func (f *fmm) arrival(x, y int) float64 {
	return min(
		f.solve(x, y-1, x-1, y),
		f.solve(x, y+1, x-1, y),
		f.solve(x, y-1, x+1, y),
		f.solve(x, y+1, x+1, y),
	)
}

func (f *fmm) solve(x1, y1, x2, y2 int) float64 {
	const unreached = 1e6
	k1, k2 := f.known(x1, y1), f.known(x2, y2)
	switch {
	case k1 && k2:
		t1, t2 := f.t(x1, y1), f.t(x2, y2)
		disc := 2 - (t1-t2)*(t1-t2)
		if disc < 0 {
			return 1 + min(t1, t2)
		}
		r := math.Sqrt(disc)
		s := (t1 + t2 - r) / 2
		if s >= t1 && s >= t2 {
			return s
		}
		s += r
		if s >= t1 && s >= t2 {
			return s
		}
		return 1 + min(t1, t2)
	case k1:
		return 1 + f.t(x1, y1)
	case k2:
		return 1 + f.t(x2, y2)
	}
	return unreached
}

func (f *fmm) gradient(x, y int) (gx, gy float64) {
	tc := f.t(x, y)
	axis := func(ax, ay, bx, by int) float64 {
		ua, ub := f.usable(ax, ay), f.usable(bx, by)
		switch {
		case ua && ub:
			return (f.t(bx, by) - f.t(ax, ay)) / 2
		case ub:
			return f.t(bx, by) - tc
		case ua:
			return tc - f.t(ax, ay)
		}
		return 0
	}
	return axis(x-1, y, x+1, y), axis(x, y-1, x, y+1)
}

// paint fills (x, y) with the weighted mean of usable pixels within radius.
func (f *fmm) paint(x, y int) {
	gx, gy := f.gradient(x, y)
	tc := f.t(x, y)
	r2 := f.radius * f.radius

	var sum [3]float64
	var total float64
	for dy := -f.radius; dy <= f.radius; dy++ {
		for dx := -f.radius; dx <= f.radius; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			d2 := dx*dx + dy*dy
			if d2 > r2 {
				continue
			}
			kx, ky := x+dx, y+dy
			if !f.usable(kx, ky) {
				continue
			}
			rx, ry := float64(-dx), float64(-dy)
			dst := 1 / (float64(d2) * math.Sqrt(float64(d2)))
			lev := 1 / (1 + math.Abs(f.t(kx, ky)-tc))
			dir := rx*gx + ry*gy
			if math.Abs(dir) <= 0.01 {
				dir = 1e-6
			}
			wgt := math.Abs(dst * lev * dir)

			px := f.out.At(kx, ky)
			for c := range 3 {
				sum[c] += wgt * float64(px[c])
			}
			total += wgt
		}
	}
	if total == 0 {
		return
	}
	dst := f.out.At(x, y)
	for c := range 3 {
		dst[c] = uint8(min(255, max(0, math.Round(sum[c]/total))))
	}
}

type bandItem struct {
	idx int
	t   float64
}

type bandQueue []bandItem

func (q bandQueue) Len() int { return len(q) }
func (q bandQueue) Less(i, j int) bool {
	if q[i].t != q[j].t {
		return q[i].t < q[j].t
	}
	return q[i].idx < q[j].idx
}
func (q bandQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *bandQueue) Push(x any)   { *q = append(*q, x.(bandItem)) }
func (q *bandQueue) Pop() any {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}
