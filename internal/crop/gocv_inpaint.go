//go:build gocv

package crop

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/MeKo-Tech/teavision/internal/utils"
)

// NewInpainter returns the inpainter for a backend name.
func NewInpainter(backend string) (Inpainter, error) {
	switch backend {
	case "", "native":
		return TeleaInpainter{}, nil
	case "gocv":
		return GoCVInpainter{}, nil
	}
	return nil, fmt.Errorf("crop: unknown inpaint backend %s", backend)
}

// GoCVInpainter delegates to cv::inpaint with the Telea method.
type GoCVInpainter struct{}

// Inpaint implements Inpainter.
func (GoCVInpainter) Inpaint(buf *utils.Buffer, mask *utils.Mask, radius int) (*utils.Buffer, error) {
	if err := buf.Validate(utils.BGR); err != nil {
		return nil, err
	}
	src, err := gocv.NewMatFromBytes(buf.Height, buf.Width, gocv.MatTypeCV8UC3, buf.Pix)
	if err != nil {
		return nil, fmt.Errorf("image to mat: %w", err)
	}
	defer src.Close()
	m, err := gocv.NewMatFromBytes(mask.Height, mask.Width, gocv.MatTypeCV8UC1, mask.Pix)
	if err != nil {
		return nil, fmt.Errorf("mask to mat: %w", err)
	}
	defer m.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Inpaint(src, m, &dst, float32(radius), gocv.Telea)

	out := utils.NewBuffer(buf.Width, buf.Height, utils.BGR)
	copy(out.Pix, dst.ToBytes())
	return out, nil
}
