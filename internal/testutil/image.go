package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// BGR is a colour in the byte order used by decoded buffers.
type BGR struct {
	B, G, R uint8
}

// Common colours.
var (
	Black    = BGR{0, 0, 0}
	White    = BGR{255, 255, 255}
	TeaBrown = BGR{60, 90, 128}
	Holder   = BGR{40, 150, 200}
	Slate    = BGR{150, 130, 110}
)

// SamplePhoto describes a synthetic photograph of a sample holder.
type SamplePhoto struct {
	Width, Height int
	Background    BGR
	Disk          BGR
	CX, CY, R     int
	// Highlights are bright spots painted inside the disk.
	Highlights []Spot
	// Noise adds uniform per-channel jitter of +-Noise to disk pixels.
	Noise int
	Seed  uint64
}

// Spot is a filled circle in a SamplePhoto.
type Spot struct {
	CX, CY, R int
	Color     BGR
}

// DiskPhoto returns a w x h photo of a single disk on a background.
func DiskPhoto(w, h, cx, cy, r int, disk, background BGR) SamplePhoto {
	return SamplePhoto{Width: w, Height: h, Background: background, Disk: disk, CX: cx, CY: cy, R: r}
}

// Pix renders the photo as packed BGR bytes.
func (p SamplePhoto) Pix() []uint8 {
	pix := make([]uint8, p.Width*p.Height*3)
	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x5eed))
	jitter := func(v uint8) uint8 {
		if p.Noise == 0 {
			return v
		}
		n := int(v) + rng.IntN(2*p.Noise+1) - p.Noise
		return uint8(min(255, max(0, n)))
	}

	for y := range p.Height {
		for x := range p.Width {
			c := p.Background
			inDisk := p.R > 0 && sq(x-p.CX)+sq(y-p.CY) <= sq(p.R)
			if inDisk {
				c = BGR{jitter(p.Disk.B), jitter(p.Disk.G), jitter(p.Disk.R)}
			}
			for _, s := range p.Highlights {
				if sq(x-s.CX)+sq(y-s.CY) <= sq(s.R) {
					c = s.Color
				}
			}
			i := (y*p.Width + x) * 3
			pix[i], pix[i+1], pix[i+2] = c.B, c.G, c.R
		}
	}
	return pix
}

// Image renders the photo as an NRGBA image.
func (p SamplePhoto) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, p.Width, p.Height))
	pix := p.Pix()
	for i := range p.Width * p.Height {
		img.Pix[i*4] = pix[i*3+2]
		img.Pix[i*4+1] = pix[i*3+1]
		img.Pix[i*4+2] = pix[i*3]
		img.Pix[i*4+3] = 255
	}
	return img
}

// PNG encodes the photo.
func (p SamplePhoto) PNG(t *testing.T) []byte {
	t.Helper()
	return EncodePNG(t, p.Image())
}

// SolidPNG returns an encoded w x h image of one colour.
func SolidPNG(t *testing.T, w, h int, c BGR) []byte {
	t.Helper()
	return DiskPhoto(w, h, 0, 0, 0, c, c).PNG(t)
}

// EncodePNG encodes img as PNG.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// DecodePNG decodes PNG bytes and returns the NRGBA pixels.
func DecodePNG(t *testing.T, data []byte) *image.NRGBA {
	t.Helper()

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, color.NRGBAModel.Convert(img.At(x, y)))
		}
	}
	return out
}

func sq(v int) int { return v * v }
