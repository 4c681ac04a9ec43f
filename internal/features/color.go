package features

import "github.com/MeKo-Tech/teavision/internal/utils"

// ColorCount is the number of colour features.
const ColorCount = 6

// Color returns [R_mean, G_mean, B_mean, H_mean, S_mean, V_mean] of a BGR
// buffer. HSV uses the 8-bit convention with H in [0,179].
func Color(buf *utils.Buffer) [ColorCount]float64 {
	var sums [ColorCount]uint64
	for i := 0; i < len(buf.Pix); i += 3 {
		b, g, r := buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2]
		h, s, v := utils.HSVValue(b, g, r)
		sums[0] += uint64(r)
		sums[1] += uint64(g)
		sums[2] += uint64(b)
		sums[3] += uint64(h)
		sums[4] += uint64(s)
		sums[5] += uint64(v)
	}

	var out [ColorCount]float64
	n := float64(buf.Width * buf.Height)
	for i, s := range sums {
		out[i] = float64(s) / n
	}
	return out
}
