package crop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/teavision/internal/utils"
)

func TestTeleaFillsFromUniformSurroundings(t *testing.T) {
	buf := utils.NewBuffer(30, 30, utils.BGR)
	buf.Fill(10, 20, 30)
	mask := utils.NewMask(30, 30)
	mask.FillCircle(15, 15, 5)
	for i, v := range mask.Pix {
		if v != 0 {
			copy(buf.Pix[i*3:i*3+3], []uint8{255, 255, 255})
		}
	}

	out, err := TeleaInpainter{}.Inpaint(buf, mask, 3)
	require.NoError(t, err)
	for i := range 30 * 30 {
		assert.Equal(t, []uint8{10, 20, 30}, out.Pix[i*3:i*3+3], "pixel %d", i)
	}
}

func TestTeleaBlendsTwoSides(t *testing.T) {
	buf := utils.NewBuffer(21, 5, utils.BGR)
	for y := range 5 {
		for x := range 21 {
			v := uint8(0)
			if x > 10 {
				v = 200
			}
			buf.Set(x, y, []uint8{v, v, v})
		}
	}
	mask := utils.NewMask(21, 5)
	for y := range 5 {
		for x := 8; x <= 12; x++ {
			mask.Pix[y*21+x] = 255
		}
	}

	out, err := TeleaInpainter{}.Inpaint(buf, mask, 3)
	require.NoError(t, err)
	assert.Less(t, out.At(8, 2)[0], out.At(12, 2)[0])
	assert.Equal(t, uint8(0), out.At(2, 2)[0])
	assert.Equal(t, uint8(200), out.At(18, 2)[0])
}

func TestTeleaEmptyMaskCopies(t *testing.T) {
	buf := utils.NewBuffer(4, 4, utils.BGR)
	buf.Fill(1, 2, 3)

	out, err := TeleaInpainter{}.Inpaint(buf, utils.NewMask(4, 4), 3)
	require.NoError(t, err)
	assert.Equal(t, buf.Pix, out.Pix)
	assert.NotSame(t, buf, out)
}

func TestEikonalSolve(t *testing.T) {
	f := &fmm{w: 3, h: 3, flags: make([]uint8, 9), dist: make([]float64, 9), radius: 3}
	f.flags[4] = flagInside
	assert.InDelta(t, 0.7071, f.arrival(1, 1), 1e-3)

	f.flags = []uint8{flagInside, flagInside, flagInside, flagInside, flagInside, flagInside, flagKnown, flagInside, flagInside}
	assert.InDelta(t, 1.0, f.arrival(0, 1), 1e-9)
	assert.InDelta(t, 1e6, f.arrival(2, 0), 1)
}
