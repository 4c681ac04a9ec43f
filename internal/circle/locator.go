package circle

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/teavision/internal/utils"
)

// Backend names accepted by NewLocator.
const (
	BackendNative = "native"
	BackendGoCV   = "gocv"
)

// Locator finds the dominant circular sample region in a BGR image. The
// boolean result is false when no qualifying circle exists; that is a normal
// outcome, not an error.
type Locator interface {
	Locate(buf *utils.Buffer) (Circle, bool)
}

// Config tunes the contour path and the Hough fallback.
type Config struct {
	BlurKernel      int
	MorphKernel     int
	OpenIterations  int
	CloseIterations int
	// MinAreaFraction is the share of the image a contour must exceed.
	MinAreaFraction float64
	HoughBlurKernel int
	HoughBlurSigma  float64
}

// DefaultConfig returns the tuning used for reference photographs.
func DefaultConfig() Config {
	return Config{
		BlurKernel:      9,
		MorphKernel:     9,
		OpenIterations:  1,
		CloseIterations: 2,
		MinAreaFraction: 0.01,
		HoughBlurKernel: 9,
		HoughBlurSigma:  2,
	}
}

// NewLocator returns the locator for the named backend.
func NewLocator(backend string, cfg Config) (Locator, error) {
	switch backend {
	case "", BackendNative:
		return NewNativeLocator(cfg), nil
	case BackendGoCV:
		return newGoCVLocator(cfg)
	default:
		return nil, fmt.Errorf("unknown circle backend %q", backend)
	}
}

// NativeLocator is the pure Go locator.
type NativeLocator struct {
	cfg Config
}

// NewNativeLocator creates a NativeLocator.
func NewNativeLocator(cfg Config) *NativeLocator {
	return &NativeLocator{cfg: cfg}
}

// Locate implements Locator.
func (l *NativeLocator) Locate(buf *utils.Buffer) (Circle, bool) {
	if err := buf.Validate(utils.BGR); err != nil {
		return Circle{}, false
	}
	w, h := buf.Width, buf.Height

	if c, ok := l.locateContour(buf); ok {
		slog.Debug("circle located", "path", "contour", "circle", c.String())
		return c, true
	}
	if c, ok := l.locateHough(buf); ok {
		slog.Debug("circle located", "path", "hough", "circle", c.String())
		return c, true
	}
	slog.Debug("no circle found", "width", w, "height", h)
	return Circle{}, false
}

func (l *NativeLocator) locateContour(buf *utils.Buffer) (Circle, bool) {
	channel := utils.GaussianBlur(buf.LabB(), l.cfg.BlurKernel, 0)
	level, ok := otsuThreshold(channel)
	if !ok {
		// no blue-yellow contrast; lightness separates plain discs
		channel = utils.GaussianBlur(buf.LabL(), l.cfg.BlurKernel, 0)
		if level, ok = otsuThreshold(channel); !ok {
			return Circle{}, false
		}
	}

	mask := binarize(channel, level)
	mask = ApplyMorphologicalOperation(mask, MorphConfig{
		Operation:  MorphOpening,
		Shape:      KernelEllipse,
		KernelSize: l.cfg.MorphKernel,
		Iterations: l.cfg.OpenIterations,
	})
	mask = ApplyMorphologicalOperation(mask, MorphConfig{
		Operation:  MorphClosing,
		Shape:      KernelEllipse,
		KernelSize: l.cfg.MorphKernel,
		Iterations: l.cfg.CloseIterations,
	})

	best, ok := largestContour(externalContours(mask))
	if !ok || best.Area <= l.cfg.MinAreaFraction*float64(buf.Width*buf.Height) {
		return Circle{}, false
	}
	e := minEnclosingCircle(best.Points)
	return Clip(e.X, e.Y, e.R, buf.Width, buf.Height)
}

func (l *NativeLocator) locateHough(buf *utils.Buffer) (Circle, bool) {
	gray := utils.GaussianBlur(buf.ToGray(), l.cfg.HoughBlurKernel, l.cfg.HoughBlurSigma)
	circles := houghCircles(gray, DefaultHoughConfig(buf.Width, buf.Height))
	if len(circles) == 0 {
		return Circle{}, false
	}
	best := circles[0]
	for _, c := range circles[1:] {
		if c.R > best.R {
			best = c
		}
	}
	return Clip(best.X, best.Y, best.R, buf.Width, buf.Height)
}
