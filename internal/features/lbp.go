package features

import (
	"sync"

	"github.com/MeKo-Tech/teavision/internal/mempool"
	"github.com/MeKo-Tech/teavision/internal/utils"
)

// LBPBins is the number of local binary pattern histogram bins.
const LBPBins = 256

// LBPCodes computes the 8-neighbour code of every pixel. Neighbours are
// compared against the centre in the order NW, N, NE, E, SE, S, SW, W, packed
// from bit 7 down to bit 0. Border pixels keep code 0.
func LBPCodes(gray *utils.Buffer) []uint8 {
	codes := make([]uint8, gray.Width*gray.Height)
	lbpRows(gray, codes, 1, gray.Height-1)
	return codes
}

// LBPHistogram returns the normalised 256-bin histogram of LBP codes.
func LBPHistogram(gray *utils.Buffer) [LBPBins]float64 {
	return LBPHistogramParallel(gray, 1)
}

// LBPHistogramParallel splits the rows into at most workers ranges and sums
// the per-range histograms.
func LBPHistogramParallel(gray *utils.Buffer, workers int) [LBPBins]float64 {
	w, h := gray.Width, gray.Height
	codes := mempool.GetUint8(w * h)
	defer mempool.PutUint8(codes)

	// border rows and columns count as code 0
	for x := range w {
		codes[x] = 0
		codes[(h-1)*w+x] = 0
	}
	for y := range h {
		codes[y*w] = 0
		codes[y*w+w-1] = 0
	}

	interior := h - 2
	if workers < 1 {
		workers = 1
	}
	if interior < workers {
		workers = max(1, interior)
	}

	partials := make([][LBPBins]int, workers)
	var wg sync.WaitGroup
	for k := range workers {
		y0 := 1 + k*interior/workers
		y1 := 1 + (k+1)*interior/workers
		wg.Add(1)
		go func(k, y0, y1 int) {
			defer wg.Done()
			lbpRows(gray, codes, y0, y1)
			for i := y0 * w; i < y1*w; i++ {
				partials[k][codes[i]]++
			}
		}(k, y0, y1)
	}
	wg.Wait()

	var counts [LBPBins]int
	counted := 0
	for _, p := range partials {
		for i, c := range p {
			counts[i] += c
			counted += c
		}
	}
	// first and last rows are entirely border
	counts[0] += w*h - counted

	var hist [LBPBins]float64
	total := float64(w*h) + Epsilon
	for i, c := range counts {
		hist[i] = float64(c) / total
	}
	return hist
}

// lbpRows fills codes for interior rows [y0, y1).
func lbpRows(gray *utils.Buffer, codes []uint8, y0, y1 int) {
	w := gray.Width
	p := gray.Pix
	for y := max(1, y0); y < y1 && y < gray.Height-1; y++ {
		up, row, down := (y-1)*w, y*w, (y+1)*w
		for x := 1; x < w-1; x++ {
			c := p[row+x]
			var code uint8
			if p[up+x-1] > c {
				code |= 1 << 7
			}
			if p[up+x] > c {
				code |= 1 << 6
			}
			if p[up+x+1] > c {
				code |= 1 << 5
			}
			if p[row+x+1] > c {
				code |= 1 << 4
			}
			if p[down+x+1] > c {
				code |= 1 << 3
			}
			if p[down+x] > c {
				code |= 1 << 2
			}
			if p[down+x-1] > c {
				code |= 1 << 1
			}
			if p[row+x-1] > c {
				code |= 1
			}
			codes[row+x] = code
		}
	}
}
