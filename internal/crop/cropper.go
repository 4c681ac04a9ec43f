package crop

import (
	"fmt"
	"math/rand/v2"

	"github.com/MeKo-Tech/teavision/internal/circle"
	"github.com/MeKo-Tech/teavision/internal/utils"
)

// Crop geometry relative to the located radius.
const (
	OuterRatio = 0.80
	InnerRatio = 0.42
	RingWidth  = 15
)

// FallbackColor fills the centre disk when the sampling ring is empty (BGR).
var FallbackColor = [3]uint8{128, 90, 60}

// Cropper cuts the cleaned sample region out of a photograph.
type Cropper struct {
	remover *ReflectionRemover
	rng     *rand.Rand
}

// NewCropper creates a Cropper. rng drives the centre texture synthesis and
// must not be shared between goroutines; nil seeds a fresh source.
func NewCropper(remover *ReflectionRemover, rng *rand.Rand) *Cropper {
	if remover == nil {
		remover = NewReflectionRemover(nil)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Cropper{remover: remover, rng: rng}
}

// NewSeededCropper returns a Cropper whose output is reproducible for a seed.
func NewSeededCropper(remover *ReflectionRemover, seed uint64) *Cropper {
	return NewCropper(remover, rand.New(rand.NewPCG(seed, seed)))
}

// Masks holds the masks derived from a located circle.
type Masks struct {
	Outer *utils.Mask
	Inner *utils.Mask
	Ring  *utils.Mask
}

// BuildMasks derives the outer, inner and ring masks for c.
func BuildMasks(width, height int, c circle.Circle) Masks {
	outerR := int(OuterRatio * float64(c.R))
	innerR := int(InnerRatio * float64(c.R))

	outer := utils.NewMask(width, height)
	outer.FillCircle(c.X, c.Y, outerR)

	inner := utils.NewMask(width, height)
	inner.FillCircle(c.X, c.Y, innerR)

	ring := utils.NewMask(width, height)
	ring.FillCircle(c.X, c.Y, innerR+RingWidth)
	ring.Subtract(inner)
	ring.And(outer)

	return Masks{Outer: outer, Inner: inner, Ring: ring}
}

// Crop returns a BGRA image of the sample region. Pixels outside the outer
// disk are transparent. The result covers [x-r, x+r) x [y-r, y+r) clipped to
// the image.
func (cr *Cropper) Crop(buf *utils.Buffer, c circle.Circle) (*utils.Buffer, error) {
	if err := buf.Validate(utils.BGR); err != nil {
		return nil, err
	}
	if c.R <= 0 {
		return nil, &utils.InputValidationError{Operation: "crop", Err: fmt.Errorf("invalid radius %d", c.R)}
	}

	img := buf.Clone()
	m := BuildMasks(img.Width, img.Height, c)
	cr.fillCentre(img, m)

	cleaned, err := cr.remover.Remove(img, m.Outer)
	if err != nil {
		return nil, err
	}
	return cutout(cleaned, m.Outer, c), nil
}

// fillCentre replaces the inner disk with pixels drawn uniformly, with
// replacement, from the ring. Donors are read before any pixel is written.
func (cr *Cropper) fillCentre(img *utils.Buffer, m Masks) {
	var donors [][3]uint8
	for i, v := range m.Ring.Pix {
		if v != 0 {
			o := i * 3
			donors = append(donors, [3]uint8{img.Pix[o], img.Pix[o+1], img.Pix[o+2]})
		}
	}

	for i, v := range m.Inner.Pix {
		if v == 0 {
			continue
		}
		px := FallbackColor
		if len(donors) > 0 {
			px = donors[cr.rng.IntN(len(donors))]
		}
		copy(img.Pix[i*3:i*3+3], px[:])
	}
}

func cutout(img *utils.Buffer, alpha *utils.Mask, c circle.Circle) *utils.Buffer {
	x1, x2 := max(0, c.X-c.R), min(img.Width, c.X+c.R)
	y1, y2 := max(0, c.Y-c.R), min(img.Height, c.Y+c.R)
	out := utils.NewBuffer(max(0, x2-x1), max(0, y2-y1), utils.BGRA)
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			src := img.At(x, y)
			dst := out.At(x-x1, y-y1)
			dst[0], dst[1], dst[2] = src[0], src[1], src[2]
			dst[3] = alpha.Pix[y*img.Width+x]
		}
	}
	return out
}
