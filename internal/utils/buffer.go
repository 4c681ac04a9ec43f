package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// Channel counts supported by Buffer.
const (
	Gray = 1
	BGR  = 3
	BGRA = 4
)

// Buffer is a row-major grid of 8-bit samples. Colour buffers store channels
// in B, G, R (and A) order.
type Buffer struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// NewBuffer allocates a zeroed buffer.
func NewBuffer(width, height, channels int) *Buffer {
	return &Buffer{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]uint8, width*height*channels),
	}
}

// Validate checks the buffer invariants shared by all extractors and croppers.
func (b *Buffer) Validate(channels ...int) error {
	if b == nil {
		return &InputValidationError{Operation: "validate", Err: errors.New("buffer is nil")}
	}
	if b.Width < 1 || b.Height < 1 {
		return &InputValidationError{
			Operation: "validate",
			Err:       fmt.Errorf("empty buffer %dx%d", b.Width, b.Height),
		}
	}
	if len(b.Pix) != b.Width*b.Height*b.Channels {
		return &InputValidationError{
			Operation: "validate",
			Err:       fmt.Errorf("pixel data length %d does not match %dx%dx%d", len(b.Pix), b.Width, b.Height, b.Channels),
		}
	}
	if len(channels) == 0 {
		return nil
	}
	for _, c := range channels {
		if b.Channels == c {
			return nil
		}
	}
	return &InputValidationError{
		Operation: "validate",
		Err:       fmt.Errorf("unsupported channel count %d (want %v)", b.Channels, channels),
	}
}

// Offset returns the index of the first sample of pixel (x, y).
func (b *Buffer) Offset(x, y int) int {
	return (y*b.Width + x) * b.Channels
}

// At returns the samples of pixel (x, y). The returned slice aliases Pix.
func (b *Buffer) At(x, y int) []uint8 {
	o := b.Offset(x, y)
	return b.Pix[o : o+b.Channels]
}

// Set copies px into pixel (x, y).
func (b *Buffer) Set(x, y int, px []uint8) {
	copy(b.Pix[b.Offset(x, y):b.Offset(x, y)+b.Channels], px)
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{Width: b.Width, Height: b.Height, Channels: b.Channels, Pix: make([]uint8, len(b.Pix))}
	copy(c.Pix, b.Pix)
	return c
}

// Fill sets every pixel to px.
func (b *Buffer) Fill(px ...uint8) {
	for i := 0; i < len(b.Pix); i += b.Channels {
		copy(b.Pix[i:i+b.Channels], px)
	}
}

// FromImage converts any image to a 3-channel BGR buffer. Alpha is dropped
// without compositing so that stored colour values are kept as decoded.
func FromImage(img image.Image) *Buffer {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	buf := NewBuffer(w, h, BGR)

	switch src := img.(type) {
	case *image.NRGBA:
		for y := range h {
			row := src.Pix[y*src.Stride : y*src.Stride+w*4]
			for x := range w {
				o := (y*w + x) * 3
				buf.Pix[o] = row[x*4+2]
				buf.Pix[o+1] = row[x*4+1]
				buf.Pix[o+2] = row[x*4]
			}
		}
		return buf
	case *image.Gray:
		for y := range h {
			for x := range w {
				v := src.Pix[y*src.Stride+x]
				o := (y*w + x) * 3
				buf.Pix[o], buf.Pix[o+1], buf.Pix[o+2] = v, v, v
			}
		}
		return buf
	}

	for y := range h {
		for x := range w {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			o := (y*w + x) * 3
			buf.Pix[o] = c.B
			buf.Pix[o+1] = c.G
			buf.Pix[o+2] = c.R
		}
	}
	return buf
}

// ToNRGBA converts a BGR or BGRA buffer to an image.NRGBA. BGR buffers are
// fully opaque.
func (b *Buffer) ToNRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := range b.Height {
		for x := range b.Width {
			px := b.At(x, y)
			o := y*img.Stride + x*4
			switch b.Channels {
			case Gray:
				img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3] = px[0], px[0], px[0], 255
			case BGR:
				img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3] = px[2], px[1], px[0], 255
			default:
				img.Pix[o], img.Pix[o+1], img.Pix[o+2], img.Pix[o+3] = px[2], px[1], px[0], px[3]
			}
		}
	}
	return img
}

// Mask is a single-channel binary image: 0 or 255 per pixel.
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewMask allocates an all-zero mask.
func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// Count returns the number of set pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// FillCircle sets every pixel within radius r of (cx, cy) to 255.
func (m *Mask) FillCircle(cx, cy, r int) {
	if r < 0 {
		return
	}
	r2 := r * r
	for y := max(0, cy-r); y <= min(m.Height-1, cy+r); y++ {
		dy := y - cy
		for x := max(0, cx-r); x <= min(m.Width-1, cx+r); x++ {
			dx := x - cx
			if dx*dx+dy*dy <= r2 {
				m.Pix[y*m.Width+x] = 255
			}
		}
	}
}

// And clears every pixel not set in other.
func (m *Mask) And(other *Mask) {
	for i := range m.Pix {
		if other.Pix[i] == 0 {
			m.Pix[i] = 0
		}
	}
}

// Subtract clears every pixel set in other.
func (m *Mask) Subtract(other *Mask) {
	for i := range m.Pix {
		if other.Pix[i] != 0 {
			m.Pix[i] = 0
		}
	}
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	c := &Mask{Width: m.Width, Height: m.Height, Pix: make([]uint8, len(m.Pix))}
	copy(c.Pix, m.Pix)
	return c
}
