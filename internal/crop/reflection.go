package crop

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/teavision/internal/circle"
	"github.com/MeKo-Tech/teavision/internal/utils"
)

// Highlight thresholds in the 8-bit HSV convention.
const (
	HighlightMinValue      = 220
	HighlightMaxSaturation = 60
	HighlightKernel        = 7
	InpaintRadius          = 3
)

// ReflectionRemover inpaints specular highlights inside a region mask.
type ReflectionRemover struct {
	inpainter Inpainter
}

// NewReflectionRemover creates a remover. A nil inpainter selects
// TeleaInpainter.
func NewReflectionRemover(inp Inpainter) *ReflectionRemover {
	if inp == nil {
		inp = TeleaInpainter{}
	}
	return &ReflectionRemover{inpainter: inp}
}

// HighlightMask marks pixels that are bright, weakly saturated and inside
// region, cleaned with a rectangular opening followed by a closing.
func HighlightMask(buf *utils.Buffer, region *utils.Mask) *utils.Mask {
	hsv := buf.ToHSV()
	hl := utils.NewMask(buf.Width, buf.Height)
	for i := range hl.Pix {
		s, v := hsv.Pix[i*3+1], hsv.Pix[i*3+2]
		if v >= HighlightMinValue && s <= HighlightMaxSaturation && region.Pix[i] != 0 {
			hl.Pix[i] = 255
		}
	}
	hl = circle.ApplyMorphologicalOperation(hl, circle.MorphConfig{
		Operation: circle.MorphOpening, Shape: circle.KernelRect, KernelSize: HighlightKernel, Iterations: 1,
	})
	return circle.ApplyMorphologicalOperation(hl, circle.MorphConfig{
		Operation: circle.MorphClosing, Shape: circle.KernelRect, KernelSize: HighlightKernel, Iterations: 1,
	})
}

// Remove returns buf with highlights inside region inpainted. When no
// highlight survives the mask cleanup the input buffer itself is returned.
func (r *ReflectionRemover) Remove(buf *utils.Buffer, region *utils.Mask) (*utils.Buffer, error) {
	if err := buf.Validate(utils.BGR); err != nil {
		return nil, err
	}
	if region == nil {
		return nil, &utils.InputValidationError{Operation: "remove reflection", Err: errors.New("mask is nil")}
	}
	if region.Width != buf.Width || region.Height != buf.Height {
		return nil, &utils.InputValidationError{
			Operation: "remove reflection",
			Err:       fmt.Errorf("mask is %dx%d, image is %dx%d", region.Width, region.Height, buf.Width, buf.Height),
		}
	}

	hl := HighlightMask(buf, region)
	if hl.Count() == 0 {
		return buf, nil
	}
	out, err := r.inpainter.Inpaint(buf, hl, InpaintRadius)
	if err != nil {
		return nil, fmt.Errorf("inpaint highlights: %w", err)
	}
	return out, nil
}
