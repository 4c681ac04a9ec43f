//go:build !gocv

package crop

import "errors"

// ErrNoGoCV is returned when the OpenCV inpainter is requested from a binary
// built without the gocv tag.
var ErrNoGoCV = errors.New("crop: gocv inpainter not linked; build with -tags=gocv")

// NewInpainter returns the inpainter for a backend name.
func NewInpainter(backend string) (Inpainter, error) {
	switch backend {
	case "", "native":
		return TeleaInpainter{}, nil
	case "gocv":
		return nil, ErrNoGoCV
	}
	return nil, errors.New("crop: unknown inpaint backend " + backend)
}
