package utils

import "math"

// SobelInto writes the 3x3 horizontal and vertical derivatives of a
// single-channel buffer into gx and gy using reflect-101 borders
// (gfedcb|abcdefgh|gfedcba). Both slices must hold Width*Height values.
func SobelInto(gray *Buffer, gx, gy []float64) {
	w, h := gray.Width, gray.Height
	px := func(x, y int) float64 {
		return float64(gray.Pix[Reflect101(y, h)*w+Reflect101(x, w)])
	}

	for y := range h {
		for x := range w {
			tl, tc, tr := px(x-1, y-1), px(x, y-1), px(x+1, y-1)
			ml, mr := px(x-1, y), px(x+1, y)
			bl, bc, br := px(x-1, y+1), px(x, y+1), px(x+1, y+1)

			i := y*w + x
			gx[i] = (tr + 2*mr + br) - (tl + 2*ml + bl)
			gy[i] = (bl + 2*bc + br) - (tl + 2*tc + tr)
		}
	}
}

// Reflect101 maps an out-of-range index back into [0, n).
func Reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		} else {
			i = 2*n - 2 - i
		}
	}
	return i
}

// KernelSigma returns the sigma used for a Gaussian kernel of the given
// size when no explicit sigma is requested.
func KernelSigma(ksize int) float64 {
	return 0.3*(float64(ksize-1)*0.5-1) + 0.8
}

// GaussianKernel returns ksize normalised taps of a sampled Gaussian. A
// non-positive sigma is derived from ksize with KernelSigma.
func GaussianKernel(ksize int, sigma float64) []float64 {
	if sigma <= 0 {
		sigma = KernelSigma(ksize)
	}
	k := make([]float64, ksize)
	half := (ksize - 1) / 2
	var sum float64
	for i := range k {
		d := float64(i - half)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// GaussianBlur blurs a single-channel buffer with a separable ksize x ksize
// Gaussian and reflect-101 borders. ksize must be odd.
func GaussianBlur(gray *Buffer, ksize int, sigma float64) *Buffer {
	w, h := gray.Width, gray.Height
	k := GaussianKernel(ksize, sigma)
	half := len(k) / 2

	tmp := make([]float64, w*h)
	for y := range h {
		row := gray.Pix[y*w : (y+1)*w]
		for x := range w {
			var acc float64
			for i, kv := range k {
				acc += kv * float64(row[Reflect101(x+i-half, w)])
			}
			tmp[y*w+x] = acc
		}
	}

	out := NewBuffer(w, h, Gray)
	for y := range h {
		for x := range w {
			var acc float64
			for i, kv := range k {
				acc += kv * tmp[Reflect101(y+i-half, h)*w+x]
			}
			out.Pix[y*w+x] = uint8(min(255, max(0, math.Round(acc))))
		}
	}
	return out
}
