package circle

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/teavision/internal/testutil"
	"github.com/MeKo-Tech/teavision/internal/utils"
)

func photoBuffer(p testutil.SamplePhoto) *utils.Buffer {
	return &utils.Buffer{Width: p.Width, Height: p.Height, Channels: utils.BGR, Pix: p.Pix()}
}

func TestLocateWhiteDiskOnBlack(t *testing.T) {
	buf := photoBuffer(testutil.DiskPhoto(224, 224, 112, 112, 50, testutil.White, testutil.Black))
	l := NewNativeLocator(DefaultConfig())

	c, ok := l.locateContour(buf)
	require.True(t, ok, "contour path should find the disk")
	assert.InDelta(t, 112, c.X, 1)
	assert.InDelta(t, 112, c.Y, 1)
	assert.InDelta(t, 50, c.R, 3)

	got, ok := l.Locate(buf)
	require.True(t, ok)
	assert.Equal(t, c, got)
}

func TestLocateColouredHolder(t *testing.T) {
	buf := photoBuffer(testutil.DiskPhoto(300, 200, 160, 95, 70, testutil.Holder, testutil.Slate))

	c, ok := NewNativeLocator(DefaultConfig()).Locate(buf)
	require.True(t, ok)
	assert.InDelta(t, 160, c.X, 2)
	assert.InDelta(t, 95, c.Y, 2)
	assert.InDelta(t, 70, c.R, 4)
	assert.True(t, c.Fits(300, 200))
}

// A holder bluer than its background thresholds as background, so the
// largest contour is the frame and the circle is the clipped image centre.
func TestLocateBlueHolderSelectsFrame(t *testing.T) {
	blue := testutil.BGR{B: 200, G: 170, R: 40}
	buf := photoBuffer(testutil.DiskPhoto(300, 200, 160, 95, 70, blue, testutil.White))

	c, ok := NewNativeLocator(DefaultConfig()).Locate(buf)
	require.True(t, ok)
	assert.InDelta(t, 150, c.X, 1)
	assert.InDelta(t, 100, c.Y, 1)
	assert.InDelta(t, 99, c.R, 1)
	assert.True(t, c.Fits(300, 200))
}

func TestLocateClipsDiskAtEdge(t *testing.T) {
	buf := photoBuffer(testutil.DiskPhoto(200, 200, 40, 100, 60, testutil.White, testutil.Black))

	c, ok := NewNativeLocator(DefaultConfig()).Locate(buf)
	require.True(t, ok)
	assert.True(t, c.Fits(200, 200))
	assert.LessOrEqual(t, c.R, c.X)
}

func TestLocateUniformNotFound(t *testing.T) {
	p := testutil.DiskPhoto(160, 120, 0, 0, 0, testutil.TeaBrown, testutil.TeaBrown)

	_, ok := NewNativeLocator(DefaultConfig()).Locate(photoBuffer(p))
	assert.False(t, ok)
}

func TestLocateRejectsInvalidBuffer(t *testing.T) {
	_, ok := NewNativeLocator(DefaultConfig()).Locate(utils.NewBuffer(0, 0, utils.BGR))
	assert.False(t, ok)

	_, ok = NewNativeLocator(DefaultConfig()).Locate(utils.NewBuffer(10, 10, utils.Gray))
	assert.False(t, ok)
}

func TestLocateHoughRing(t *testing.T) {
	w, h := 240, 240
	buf := utils.NewBuffer(w, h, utils.BGR)
	for y := range h {
		for x := range w {
			d2 := (x-120)*(x-120) + (y-120)*(y-120)
			if d2 >= 58*58 && d2 <= 62*62 {
				buf.Set(x, y, []uint8{255, 255, 255})
			}
		}
	}
	l := NewNativeLocator(DefaultConfig())

	_, ok := l.locateContour(buf)
	require.False(t, ok, "a thin ring does not survive opening")

	c, ok := l.Locate(buf)
	require.True(t, ok)
	assert.InDelta(t, 120, c.X, 4)
	assert.InDelta(t, 120, c.Y, 4)
	assert.InDelta(t, 60, c.R, 6)
}

func TestHoughNoEdges(t *testing.T) {
	gray := utils.NewBuffer(64, 64, utils.Gray)
	gray.Fill(90)
	assert.Empty(t, houghCircles(gray, DefaultHoughConfig(64, 64)))
}

func TestLocateIsIdempotent(t *testing.T) {
	properties := gopter.NewProperties(nil)
	l := NewNativeLocator(DefaultConfig())

	properties.Property("locating twice yields the same circle", prop.ForAll(
		func(cx, cy, r int, seed uint64) bool {
			p := testutil.DiskPhoto(128, 128, cx, cy, r, testutil.Holder, testutil.Black)
			p.Noise, p.Seed = 12, seed
			buf := photoBuffer(p)

			c1, ok1 := l.Locate(buf)
			c2, ok2 := l.Locate(buf)
			if ok1 != ok2 || c1 != c2 {
				return false
			}
			return !ok1 || c1.Fits(128, 128)
		},
		gen.IntRange(30, 98),
		gen.IntRange(30, 98),
		gen.IntRange(10, 40),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}

func TestNewLocator(t *testing.T) {
	l, err := NewLocator(BackendNative, DefaultConfig())
	require.NoError(t, err)
	assert.IsType(t, &NativeLocator{}, l)

	l, err = NewLocator("", DefaultConfig())
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = NewLocator("opencl", DefaultConfig())
	assert.Error(t, err)
}
