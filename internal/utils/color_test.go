package utils

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestHSVValue(t *testing.T) {
	tests := []struct {
		name    string
		b, g, r uint8
		h, s, v uint8
	}{
		{"black", 0, 0, 0, 0, 0, 0},
		{"white", 255, 255, 255, 0, 0, 255},
		{"red", 0, 0, 255, 0, 255, 255},
		{"green", 0, 255, 0, 60, 255, 255},
		{"blue", 255, 0, 0, 120, 255, 255},
		{"tea brown", 60, 90, 128, 13, 135, 128},
		{"magenta", 255, 0, 255, 150, 255, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, s, v := HSVValue(tt.b, tt.g, tt.r)
			assert.Equal(t, tt.h, h, "hue")
			assert.Equal(t, tt.s, s, "saturation")
			assert.Equal(t, tt.v, v, "value")
		})
	}
}

func TestHSVValueRanges(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("hue stays below 180 and value is the max channel", prop.ForAll(
		func(b, g, r uint8) bool {
			h, _, v := HSVValue(b, g, r)
			return h < 180 && v == max(b, g, r)
		},
		gen.UInt8(), gen.UInt8(), gen.UInt8(),
	))
	properties.Property("grey pixels have zero hue and saturation", prop.ForAll(
		func(x uint8) bool {
			h, s, _ := HSVValue(x, x, x)
			return h == 0 && s == 0
		},
		gen.UInt8(),
	))
	properties.TestingRun(t)
}

func TestGrayValue(t *testing.T) {
	assert.Equal(t, uint8(0), GrayValue(0, 0, 0))
	assert.Equal(t, uint8(255), GrayValue(255, 255, 255))
	assert.Equal(t, uint8(76), GrayValue(0, 0, 255))
	assert.Equal(t, uint8(150), GrayValue(0, 255, 0))
	assert.Equal(t, uint8(29), GrayValue(255, 0, 0))
}

func TestToGrayAndHSVShapes(t *testing.T) {
	buf := NewBuffer(5, 4, BGR)
	buf.Fill(10, 20, 30)
	g := buf.ToGray()
	assert.Equal(t, Gray, g.Channels)
	assert.Len(t, g.Pix, 20)
	hsv := buf.ToHSV()
	assert.Equal(t, BGR, hsv.Channels)
	assert.Len(t, hsv.Pix, 60)
}

func TestLabChannels(t *testing.T) {
	buf := NewBuffer(4, 1, BGR)
	buf.Set(0, 0, []uint8{255, 255, 255})
	buf.Set(1, 0, []uint8{0, 0, 0})
	buf.Set(2, 0, []uint8{0, 255, 255}) // yellow
	buf.Set(3, 0, []uint8{255, 0, 0})   // blue

	b := buf.LabB()
	assert.InDelta(t, 128, int(b.Pix[0]), 1)
	assert.InDelta(t, 128, int(b.Pix[1]), 1)
	assert.Greater(t, b.Pix[2], uint8(200))
	assert.Less(t, b.Pix[3], uint8(50))

	l := buf.LabL()
	assert.InDelta(t, 255, int(l.Pix[0]), 1)
	assert.Equal(t, uint8(0), l.Pix[1])
}
