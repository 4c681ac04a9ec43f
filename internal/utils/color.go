package utils

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Fixed-point coefficients of the 8-bit BGR to luma conversion.
const (
	yuvShift = 14
	r2y      = 4899
	g2y      = 9617
	b2y      = 1868
)

const hsvShift = 12

var (
	sdivTable    [256]int
	hdivTable180 [256]int
	srgbLinear   [256]float64
)

func init() {
	for i := 1; i < 256; i++ {
		sdivTable[i] = int(math.Round(float64(255<<hsvShift) / float64(i)))
		hdivTable180[i] = int(math.Round(float64(180<<hsvShift) / (6 * float64(i))))
	}
	for i := range 256 {
		v := float64(i) / 255
		srgbLinear[i], _, _ = colorful.Color{R: v, G: v, B: v}.LinearRgb()
	}
}

// GrayValue converts one BGR pixel to 8-bit luma.
func GrayValue(b, g, r uint8) uint8 {
	return uint8((int(r)*r2y + int(g)*g2y + int(b)*b2y + (1 << (yuvShift - 1))) >> yuvShift)
}

// ToGray converts a BGR buffer to a single-channel buffer. Gray buffers are
// returned as a copy.
func (b *Buffer) ToGray() *Buffer {
	if b.Channels == Gray {
		return b.Clone()
	}
	out := NewBuffer(b.Width, b.Height, Gray)
	for i, j := 0, 0; j < len(out.Pix); i, j = i+b.Channels, j+1 {
		out.Pix[j] = GrayValue(b.Pix[i], b.Pix[i+1], b.Pix[i+2])
	}
	return out
}

// HSVValue converts one BGR pixel to 8-bit HSV with H in [0,179].
func HSVValue(b, g, r uint8) (h, s, v uint8) {
	bi, gi, ri := int(b), int(g), int(r)
	vmax := max(bi, gi, ri)
	vmin := min(bi, gi, ri)
	diff := vmax - vmin

	sv := (diff*sdivTable[vmax] + (1 << (hsvShift - 1))) >> hsvShift

	var hv int
	switch {
	case vmax == ri:
		hv = gi - bi
	case vmax == gi:
		hv = bi - ri + 2*diff
	default:
		hv = ri - gi + 4*diff
	}
	hv = (hv*hdivTable180[diff] + (1 << (hsvShift - 1))) >> hsvShift
	if hv < 0 {
		hv += 180
	}
	return uint8(hv), uint8(sv), uint8(vmax)
}

// ToHSV converts a BGR buffer to a 3-channel H, S, V buffer.
func (b *Buffer) ToHSV() *Buffer {
	out := NewBuffer(b.Width, b.Height, BGR)
	for i := 0; i < len(b.Pix); i += 3 {
		out.Pix[i], out.Pix[i+1], out.Pix[i+2] = HSVValue(b.Pix[i], b.Pix[i+1], b.Pix[i+2])
	}
	return out
}

// LabB returns the 8-bit b* channel (blue-yellow opponency, offset by 128)
// of the CIE L*a*b* conversion under D65.
func (b *Buffer) LabB() *Buffer {
	return b.labChannel(2)
}

// LabL returns the 8-bit lightness channel scaled to [0,255].
func (b *Buffer) LabL() *Buffer {
	return b.labChannel(0)
}

func (b *Buffer) labChannel(idx int) *Buffer {
	out := NewBuffer(b.Width, b.Height, Gray)
	cache := make(map[uint32]uint8)
	for i, j := 0, 0; j < len(out.Pix); i, j = i+3, j+1 {
		key := uint32(b.Pix[i])<<16 | uint32(b.Pix[i+1])<<8 | uint32(b.Pix[i+2])
		if v, ok := cache[key]; ok {
			out.Pix[j] = v
			continue
		}
		x, y, z := colorful.LinearRgbToXyz(srgbLinear[b.Pix[i+2]], srgbLinear[b.Pix[i+1]], srgbLinear[b.Pix[i]])
		l, la, lb := colorful.XyzToLab(x, y, z)
		var v float64
		switch idx {
		case 0:
			v = l * 255
		case 1:
			v = la*100 + 128
		default:
			v = lb*100 + 128
		}
		out.Pix[j] = clampUint8(v)
		cache[key] = out.Pix[j]
	}
	return out
}

func clampUint8(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
