package utils

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferValidate(t *testing.T) {
	tests := []struct {
		name    string
		buf     *Buffer
		want    []int
		wantErr bool
	}{
		{"nil", nil, nil, true},
		{"empty", &Buffer{}, nil, true},
		{"bad length", &Buffer{Width: 2, Height: 2, Channels: 3, Pix: make([]uint8, 5)}, nil, true},
		{"bgr ok", NewBuffer(4, 3, BGR), []int{BGR}, false},
		{"wrong channels", NewBuffer(4, 3, Gray), []int{BGR}, true},
		{"any channels", NewBuffer(4, 3, BGRA), nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.buf.Validate(tt.want...)
			if tt.wantErr {
				require.Error(t, err)
				var ive *InputValidationError
				assert.True(t, errors.As(err, &ive))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFromImageChannelOrder(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	img.Set(1, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 0})

	buf := FromImage(img)
	require.Equal(t, BGR, buf.Channels)
	assert.Equal(t, []uint8{30, 20, 10}, buf.At(0, 0))
	// transparent pixels keep their colour
	assert.Equal(t, []uint8{50, 100, 200}, buf.At(1, 0))
}

func TestFromImageGenericPath(t *testing.T) {
	img := image.NewRGBA(image.Rect(5, 5, 7, 6))
	img.Set(5, 5, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	buf := FromImage(img)
	assert.Equal(t, 2, buf.Width)
	assert.Equal(t, 1, buf.Height)
	assert.Equal(t, []uint8{3, 2, 1}, buf.At(0, 0))
}

func TestToNRGBARoundTrip(t *testing.T) {
	buf := NewBuffer(3, 2, BGR)
	buf.Fill(60, 90, 128)
	img := buf.ToNRGBA()
	assert.Equal(t, color.NRGBA{R: 128, G: 90, B: 60, A: 255}, img.NRGBAAt(2, 1))
	assert.Equal(t, buf.Pix, FromImage(img).Pix)

	bgra := NewBuffer(1, 1, BGRA)
	bgra.Fill(1, 2, 3, 0)
	assert.Equal(t, color.NRGBA{R: 3, G: 2, B: 1, A: 0}, bgra.ToNRGBA().NRGBAAt(0, 0))
}

func TestMaskCircleOps(t *testing.T) {
	m := NewMask(21, 21)
	m.FillCircle(10, 10, 5)
	assert.Equal(t, uint8(255), m.Pix[10*21+10])
	assert.Equal(t, uint8(255), m.Pix[10*21+15])
	assert.Equal(t, uint8(0), m.Pix[10*21+16])
	full := m.Count()

	inner := NewMask(21, 21)
	inner.FillCircle(10, 10, 2)
	ring := m.Clone()
	ring.Subtract(inner)
	assert.Equal(t, full-inner.Count(), ring.Count())

	ring.And(inner)
	assert.Zero(t, ring.Count())
}

func TestMaskFillCircleClipsToBounds(t *testing.T) {
	m := NewMask(10, 10)
	assert.NotPanics(t, func() { m.FillCircle(0, 0, 30) })
	assert.Equal(t, 100, m.Count())
}

func TestReflect101(t *testing.T) {
	assert.Equal(t, 1, Reflect101(-1, 5))
	assert.Equal(t, 3, Reflect101(5, 5))
	assert.Equal(t, 2, Reflect101(2, 5))
	assert.Equal(t, 0, Reflect101(-1, 1))
	assert.Equal(t, 0, Reflect101(2, 2))
}

func TestKernelSigma(t *testing.T) {
	assert.InDelta(t, 1.7, KernelSigma(9), 1e-12)
	assert.InDelta(t, 1.1, KernelSigma(5), 1e-12)
}

func TestGaussianBlurPreservesConstant(t *testing.T) {
	g := NewBuffer(20, 15, Gray)
	g.Fill(90)
	out := GaussianBlur(g, 9, 0)
	assert.Equal(t, g.Pix, out.Pix)
}

func TestGaussianKernel(t *testing.T) {
	k := GaussianKernel(9, 0)
	require.Len(t, k, 9)

	var sum float64
	for i, v := range k {
		sum += v
		assert.InDelta(t, v, k[8-i], 1e-15)
	}
	assert.InDelta(t, 1, sum, 1e-12)
	assert.Greater(t, k[4], k[3])
}

func TestGaussianBlurSupportIsKsize(t *testing.T) {
	g := NewBuffer(21, 21, Gray)
	g.Pix[10*21+10] = 255
	out := GaussianBlur(g, 9, 3)

	for y := range 21 {
		for x := range 21 {
			inside := x >= 6 && x <= 14 && y >= 6 && y <= 14
			if !inside {
				assert.Zero(t, out.Pix[y*21+x], "(%d,%d)", x, y)
			}
		}
	}
	assert.NotZero(t, out.Pix[6*21+10])
	assert.Equal(t, out.Pix[10*21+6], out.Pix[10*21+14])
}
