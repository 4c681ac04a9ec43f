package circle

import (
	"math"

	"github.com/MeKo-Tech/teavision/internal/mempool"
	"github.com/MeKo-Tech/teavision/internal/utils"
)

// MorphologicalOp represents the type of morphological operation to perform.
type MorphologicalOp int

const (
	MorphNone MorphologicalOp = iota
	MorphDilate
	MorphErode
	MorphOpening // erode then dilate: removes small noise
	MorphClosing // dilate then erode: fills small holes
)

// KernelShape selects the structuring element.
type KernelShape int

const (
	KernelRect KernelShape = iota
	KernelEllipse
)

// MorphConfig holds configuration for morphological operations.
type MorphConfig struct {
	Operation  MorphologicalOp
	Shape      KernelShape
	KernelSize int // odd size of the square bounding box
	Iterations int // repetitions of each primitive
}

// Kernel is a structuring element stored as per-row spans [start, end).
type Kernel struct {
	Size  int
	spans [][2]int
}

// NewKernel builds a structuring element. The elliptical element matches the
// classic raster construction: row i covers |dx| <= round(c*sqrt(1-(dy/r)^2)).
func NewKernel(shape KernelShape, size int) Kernel {
	k := Kernel{Size: size, spans: make([][2]int, size)}
	r := size / 2
	c := size / 2
	for i := range size {
		if shape == KernelRect || r == 0 {
			k.spans[i] = [2]int{0, size}
			continue
		}
		dy := i - r
		dx := int(math.Round(float64(c) * math.Sqrt(float64(r*r-dy*dy)/float64(r*r))))
		k.spans[i] = [2]int{max(c-dx, 0), min(c+dx+1, size)}
	}
	return k
}

// Contains reports whether offset (x, y) within the kernel box is set.
func (k Kernel) Contains(x, y int) bool {
	s := k.spans[y]
	return x >= s[0] && x < s[1]
}

// ApplyMorphologicalOperation applies cfg to a binary mask. Opening and
// closing with n iterations apply the first primitive n times, then the
// second n times. Pixels outside the image never influence the result.
func ApplyMorphologicalOperation(m *utils.Mask, cfg MorphConfig) *utils.Mask {
	if cfg.Operation == MorphNone || cfg.KernelSize <= 0 || cfg.Iterations <= 0 {
		return m.Clone()
	}
	k := NewKernel(cfg.Shape, cfg.KernelSize)
	out := m.Clone()
	repeat := func(op func(*utils.Mask, Kernel) *utils.Mask) {
		for range cfg.Iterations {
			out = op(out, k)
		}
	}

	switch cfg.Operation {
	case MorphDilate:
		repeat(dilate)
	case MorphErode:
		repeat(erode)
	case MorphOpening:
		repeat(erode)
		repeat(dilate)
	case MorphClosing:
		repeat(dilate)
		repeat(erode)
	}
	return out
}

// dilate sets a pixel when any kernel neighbour is set.
func dilate(m *utils.Mask, k Kernel) *utils.Mask {
	return morph(m, k, true)
}

// erode keeps a pixel only when every in-bounds kernel neighbour is set.
func erode(m *utils.Mask, k Kernel) *utils.Mask {
	return morph(m, k, false)
}

// morph evaluates each kernel row span in O(1) from per-row prefix counts.
func morph(m *utils.Mask, k Kernel, isDilate bool) *utils.Mask {
	w, h := m.Width, m.Height
	stride := w + 1
	prefix := mempool.GetInt32Zeroed(stride * h)
	defer mempool.PutInt32(prefix)
	for y := range h {
		row := prefix[y*stride:]
		for x := range w {
			row[x+1] = row[x]
			if m.Pix[y*w+x] != 0 {
				row[x+1]++
			}
		}
	}

	out := utils.NewMask(w, h)
	half := k.Size / 2
	for y := range h {
		for x := range w {
			hit := !isDilate
			for ky := range k.Size {
				ny := y + ky - half
				if ny < 0 || ny >= h {
					continue
				}
				s := k.spans[ky]
				x0 := max(x+s[0]-half, 0)
				x1 := min(x+s[1]-half, w)
				if x0 >= x1 {
					continue
				}
				row := prefix[ny*stride:]
				set := int(row[x1] - row[x0])
				if isDilate && set > 0 {
					hit = true
					break
				}
				if !isDilate && set < x1-x0 {
					hit = false
					break
				}
			}
			if hit {
				out.Pix[y*w+x] = 255
			}
		}
	}
	return out
}
