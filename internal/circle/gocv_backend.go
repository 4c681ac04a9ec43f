//go:build gocv

package circle

import (
	"fmt"
	"image"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/MeKo-Tech/teavision/internal/utils"
)

// GoCVLocator runs the same pipeline through OpenCV.
type GoCVLocator struct {
	cfg Config
}

func newGoCVLocator(cfg Config) (Locator, error) { return &GoCVLocator{cfg: cfg}, nil }

// Locate implements Locator.
func (l *GoCVLocator) Locate(buf *utils.Buffer) (Circle, bool) {
	if err := buf.Validate(utils.BGR); err != nil {
		return Circle{}, false
	}
	img, err := gocv.NewMatFromBytes(buf.Height, buf.Width, gocv.MatTypeCV8UC3, buf.Pix)
	if err != nil {
		slog.Warn("gocv mat conversion failed", "error", err)
		return Circle{}, false
	}
	defer img.Close()

	if c, ok := l.locateContour(img, buf.Width, buf.Height); ok {
		return c, true
	}
	return l.locateHough(img, buf.Width, buf.Height)
}

func (l *GoCVLocator) locateContour(img gocv.Mat, w, h int) (Circle, bool) {
	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(img, &lab, gocv.ColorBGRToLab)
	channels := gocv.Split(lab)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()

	ksize := image.Pt(l.cfg.BlurKernel, l.cfg.BlurKernel)
	mask := gocv.NewMat()
	defer mask.Close()
	found := false
	for _, idx := range []int{2, 0} {
		blurred := gocv.NewMat()
		gocv.GaussianBlur(channels[idx], &blurred, ksize, 0, 0, gocv.BorderDefault)
		minVal, maxVal, _, _ := gocv.MinMaxLoc(blurred)
		if minVal != maxVal {
			gocv.Threshold(blurred, &mask, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
			found = true
		}
		blurred.Close()
		if found {
			break
		}
	}
	if !found {
		return Circle{}, false
	}

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(l.cfg.MorphKernel, l.cfg.MorphKernel))
	defer kernel.Close()
	for range l.cfg.OpenIterations {
		gocv.Erode(mask, &mask, kernel)
	}
	for range l.cfg.OpenIterations {
		gocv.Dilate(mask, &mask, kernel)
	}
	for range l.cfg.CloseIterations {
		gocv.Dilate(mask, &mask, kernel)
	}
	for range l.cfg.CloseIterations {
		gocv.Erode(mask, &mask, kernel)
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	bestIdx, bestArea := -1, 0.0
	for i := range contours.Size() {
		if a := gocv.ContourArea(contours.At(i)); bestIdx < 0 || a > bestArea {
			bestIdx, bestArea = i, a
		}
	}
	if bestIdx < 0 || bestArea <= l.cfg.MinAreaFraction*float64(w*h) {
		return Circle{}, false
	}
	x, y, r := gocv.MinEnclosingCircle(contours.At(bestIdx))
	return Clip(float64(x), float64(y), float64(r), w, h)
}

func (l *GoCVLocator) locateHough(img gocv.Mat, w, h int) (Circle, bool) {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	k := image.Pt(l.cfg.HoughBlurKernel, l.cfg.HoughBlurKernel)
	gocv.GaussianBlur(gray, &gray, k, l.cfg.HoughBlurSigma, 0, gocv.BorderDefault)

	hc := DefaultHoughConfig(w, h)
	circles := gocv.NewMat()
	defer circles.Close()
	gocv.HoughCirclesWithParams(gray, &circles, gocv.HoughGradient, hc.DP, hc.MinDist,
		hc.CannyHigh, float64(hc.AccThreshold), hc.MinRadius, hc.MaxRadius)
	if circles.Empty() {
		return Circle{}, false
	}

	var best []float32
	for i := range circles.Cols() {
		v := circles.GetVecfAt(0, i)
		if best == nil || v[2] > best[2] {
			best = v
		}
	}
	if len(best) < 3 {
		return Circle{}, false
	}
	c, ok := Clip(float64(best[0]), float64(best[1]), float64(best[2]), w, h)
	if ok {
		slog.Debug("circle located", "path", "hough", "backend", BackendGoCV, "circle", fmt.Sprint(c))
	}
	return c, ok
}
