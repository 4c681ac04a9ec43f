package circle

import "github.com/MeKo-Tech/teavision/internal/utils"

// otsuThreshold returns the level maximising between-class variance of an
// 8-bit histogram. ok is false when fewer than two levels are populated.
func otsuThreshold(gray *utils.Buffer) (level uint8, ok bool) {
	var histogram [256]int
	for _, v := range gray.Pix {
		histogram[v]++
	}

	populated := 0
	for _, c := range histogram {
		if c > 0 {
			populated++
		}
	}
	if populated < 2 {
		return 0, false
	}

	total := len(gray.Pix)
	var totalMean float64
	for i, c := range histogram {
		totalMean += float64(i) * float64(c)
	}
	totalMean /= float64(total)

	var maxVariance, sumB float64
	best := 0
	wB := 0
	for t := range 256 {
		wB += histogram[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(histogram[t])

		pB := float64(wB) / float64(total)
		mB := sumB / float64(wB)
		mF := (totalMean*float64(total) - sumB) / float64(wF)
		variance := pB * (1 - pB) * (mB - mF) * (mB - mF)
		if variance > maxVariance {
			maxVariance = variance
			best = t
		}
	}
	return uint8(best), true
}

// binarize sets mask pixels strictly above level to 255.
func binarize(gray *utils.Buffer, level uint8) *utils.Mask {
	m := utils.NewMask(gray.Width, gray.Height)
	for i, v := range gray.Pix {
		if v > level {
			m.Pix[i] = 255
		}
	}
	return m
}
