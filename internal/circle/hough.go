package circle

import (
	"math"
	"slices"

	"github.com/MeKo-Tech/teavision/internal/mempool"
	"github.com/MeKo-Tech/teavision/internal/utils"
)

// HoughConfig holds the gradient Hough transform parameters.
type HoughConfig struct {
	// DP is the inverse accumulator resolution.
	DP float64
	// MinDist is the minimum distance between detected centres.
	MinDist float64
	// CannyHigh is the upper edge threshold; the lower one is half of it.
	CannyHigh float64
	// AccThreshold is the vote count a centre and its radius must exceed.
	AccThreshold int
	MinRadius    int
	// MaxRadius of zero or less means max(width, height).
	MaxRadius int
}

// DefaultHoughConfig returns the parameters used for a width x height image.
func DefaultHoughConfig(width, height int) HoughConfig {
	return HoughConfig{
		DP:           1.2,
		MinDist:      float64(min(width, height) / 4),
		CannyHigh:    80,
		AccThreshold: 40,
		MinRadius:    min(width, height) / 8,
		MaxRadius:    0,
	}
}

type edgePoint struct {
	x, y   int
	dx, dy float64
}

// houghCircles detects circles in a single-channel buffer. Results are in
// descending order of centre support.
func houghCircles(gray *utils.Buffer, cfg HoughConfig) []enclosing {
	w, h := gray.Width, gray.Height
	if w < 3 || h < 3 || cfg.DP < 1 {
		return nil
	}
	minR := max(cfg.MinRadius, 0)
	maxR := cfg.MaxRadius
	if maxR <= 0 {
		maxR = max(w, h)
	}
	if minR > maxR {
		return nil
	}

	n := w * h
	gx := mempool.GetFloat64(n)
	gy := mempool.GetFloat64(n)
	defer mempool.PutFloat64(gx)
	defer mempool.PutFloat64(gy)
	utils.SobelInto(gray, gx, gy)

	edges := canny(gx, gy, w, h, cfg.CannyHigh/2, cfg.CannyHigh)
	points := make([]edgePoint, 0, 1024)
	for i, e := range edges {
		if !e {
			continue
		}
		if gx[i] == 0 && gy[i] == 0 {
			continue
		}
		points = append(points, edgePoint{x: i % w, y: i / w, dx: gx[i], dy: gy[i]})
	}
	if len(points) == 0 {
		return nil
	}

	idp := 1 / cfg.DP
	aw := int(math.Ceil(float64(w)*idp)) + 2
	ah := int(math.Ceil(float64(h)*idp)) + 2
	acc := make([]int32, aw*ah)
	voteLine(acc, aw, ah, points, idp, minR, maxR)

	centers := accumulatorPeaks(acc, aw, ah, int32(cfg.AccThreshold))
	if len(centers) == 0 {
		return nil
	}

	var found []enclosing
	dist := make([]float64, 0, len(points))
	minR2 := float64(minR * minR)
	maxR2 := float64(maxR * maxR)
	minDist2 := cfg.MinDist * cfg.MinDist

	for _, ci := range centers {
		cx := (float64(ci%aw) + 0.5) * cfg.DP
		cy := (float64(ci/aw) + 0.5) * cfg.DP

		tooClose := false
		for _, f := range found {
			if (f.X-cx)*(f.X-cx)+(f.Y-cy)*(f.Y-cy) < minDist2 {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}

		dist = dist[:0]
		for _, p := range points {
			dx, dy := float64(p.x)-cx, float64(p.y)-cy
			d2 := dx*dx + dy*dy
			if d2 >= minR2 && d2 <= maxR2 {
				dist = append(dist, math.Sqrt(d2))
			}
		}
		if len(dist) == 0 {
			continue
		}
		r, count := bestRadius(dist, cfg.DP)
		if count > cfg.AccThreshold {
			found = append(found, enclosing{X: cx, Y: cy, R: r})
		}
	}
	return found
}

// voteLine casts a vote in every accumulator cell crossed by the gradient
// line of each edge point, on both sides, between minR and maxR.
func voteLine(acc []int32, aw, ah int, points []edgePoint, idp float64, minR, maxR int) {
	const shift = 10
	const one = 1 << shift
	for _, p := range points {
		mag := math.Hypot(p.dx, p.dy)
		sx := int(math.Round(p.dx * idp * one / mag))
		sy := int(math.Round(p.dy * idp * one / mag))
		x0 := int(math.Round(float64(p.x)*idp*one)) + one/2
		y0 := int(math.Round(float64(p.y)*idp*one)) + one/2
		rMin := float64(minR) * idp
		rMax := float64(maxR) * idp

		for _, sign := range [2]int{1, -1} {
			dx, dy := sx*sign, sy*sign
			x1 := x0 + int(rMin)*dx
			y1 := y0 + int(rMin)*dy
			for r := rMin; r <= rMax; r++ {
				ax, ay := x1>>shift, y1>>shift
				if ax < 0 || ay < 0 || ax >= aw || ay >= ah {
					break
				}
				acc[ay*aw+ax]++
				x1 += dx
				y1 += dy
			}
		}
	}
}

// accumulatorPeaks returns indices of cells above threshold that are local
// maxima in their 4-neighbourhood, ordered by votes descending.
func accumulatorPeaks(acc []int32, aw, ah int, threshold int32) []int {
	var peaks []int
	for y := 1; y < ah-1; y++ {
		for x := 1; x < aw-1; x++ {
			i := y*aw + x
			v := acc[i]
			if v > threshold && v > acc[i-1] && v >= acc[i+1] && v > acc[i-aw] && v >= acc[i+aw] {
				peaks = append(peaks, i)
			}
		}
	}
	slices.SortStableFunc(peaks, func(a, b int) int {
		return int(acc[b]) - int(acc[a])
	})
	return peaks
}

// bestRadius groups sorted distances into runs no wider than dr and returns
// the run with the highest support per unit radius.
func bestRadius(dist []float64, dr float64) (float64, int) {
	slices.Sort(dist)
	bestR, bestCount := 0.0, 0
	start := 0
	flush := func(end int) {
		count := end - start
		rCur := dist[(start+end-1)/2]
		if float64(count)*bestR >= float64(bestCount)*rCur || (bestR == 0 && count >= bestCount) {
			bestR, bestCount = rCur, count
		}
	}
	for j := 1; j < len(dist); j++ {
		if dist[j]-dist[start] > dr {
			flush(j)
			start = j
		}
	}
	flush(len(dist))
	return bestR, bestCount
}

// canny returns an edge map from precomputed Sobel derivatives using L1
// gradient magnitude, non-maximum suppression and hysteresis.
func canny(gx, gy []float64, w, h int, low, high float64) []bool {
	mag := mempool.GetFloat64(w * h)
	defer mempool.PutFloat64(mag)
	for i := range w * h {
		mag[i] = math.Abs(gx[i]) + math.Abs(gy[i])
	}

	const (
		none = iota
		weak
		strong
	)
	state := make([]uint8, w*h)
	tan22 := math.Tan(math.Pi / 8)

	var stack []int
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			if m <= low {
				continue
			}
			ax, ay := math.Abs(gx[i]), math.Abs(gy[i])
			var n1, n2 float64
			switch {
			case ay <= ax*tan22:
				n1, n2 = mag[i-1], mag[i+1]
			case ay >= ax/tan22:
				n1, n2 = mag[i-w], mag[i+w]
			case (gx[i] < 0) != (gy[i] < 0):
				n1, n2 = mag[i-w+1], mag[i+w-1]
			default:
				n1, n2 = mag[i-w-1], mag[i+w+1]
			}
			if m <= n1 || m < n2 {
				continue
			}
			if m > high {
				state[i] = strong
				stack = append(stack, i)
			} else {
				state[i] = weak
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if state[j] == weak {
					state[j] = strong
					stack = append(stack, j)
				}
			}
		}
	}

	edges := make([]bool, w*h)
	for i, s := range state {
		edges[i] = s == strong
	}
	return edges
}
