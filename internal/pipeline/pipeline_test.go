package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/teavision/internal/circle"
	"github.com/MeKo-Tech/teavision/internal/crop"
	"github.com/MeKo-Tech/teavision/internal/features"
	"github.com/MeKo-Tech/teavision/internal/testutil"
	"github.com/MeKo-Tech/teavision/internal/utils"
)

func TestExtractorSample(t *testing.T) {
	e := NewExtractor(ExtractorConfig{})
	data := testutil.SolidPNG(t, 64, 48, testutil.TeaBrown)

	s, err := e.Sample(Source{Name: "UV_BOP_007.png", Data: data})
	require.NoError(t, err)
	assert.Equal(t, "UV_BOP_007.png", s.Source)
	assert.Equal(t, features.Label{RegionCode: "UV", Region: "Uva Region", Group: "BOP", GroupLabel: 1}, s.Label)

	cols := features.Columns()
	row := s.Features.Map()
	assert.InDelta(t, 128, row["R_mean"], 1e-9)
	assert.InDelta(t, 90, row["G_mean"], 1e-9)
	assert.InDelta(t, 60, row["B_mean"], 1e-9)
	assert.InDelta(t, 0, row["Texture_std"], 1e-9)
	assert.Len(t, cols, features.VectorLen)
}

func TestExtractorSampleErrors(t *testing.T) {
	e := NewExtractor(DefaultExtractorConfig())

	_, err := e.Sample(Source{Name: "holiday.png", Data: testutil.SolidPNG(t, 8, 8, testutil.White)})
	assert.ErrorIs(t, err, ErrUnlabelled)

	_, err = e.Sample(Source{Name: "DI_XX_1.png", Data: testutil.SolidPNG(t, 8, 8, testutil.White)})
	assert.ErrorIs(t, err, ErrUnlabelled)

	_, err = e.Sample(Source{Name: "DI_OP_1.png", Data: []byte("not an image")})
	var ive *utils.InputValidationError
	assert.ErrorAs(t, err, &ive)
}

func TestRunKeepsOrderAndSkips(t *testing.T) {
	e := NewExtractor(ExtractorConfig{Width: 32, Height: 32})
	sources := []Source{
		{Name: "DI_OP_1.png", Data: testutil.SolidPNG(t, 20, 20, testutil.White)},
		{Name: "notes.png", Data: testutil.SolidPNG(t, 20, 20, testutil.White)},
		{Name: "UV_BOPF_2.png", Data: testutil.SolidPNG(t, 20, 20, testutil.Black)},
		{Name: "KA_BOP_3.png", Data: []byte{0x00}},
		{Name: "NU_OP_4.png", Data: testutil.SolidPNG(t, 20, 20, testutil.TeaBrown)},
	}
	progress := &countingProgress{}

	res, err := e.Run(context.Background(), sources, BatchConfig{Workers: 3, Progress: progress})
	require.NoError(t, err)
	require.Len(t, res.Samples, 3)
	assert.Equal(t, "DI_OP_1.png", res.Samples[0].Source)
	assert.Equal(t, "UV_BOPF_2.png", res.Samples[1].Source)
	assert.Equal(t, "NU_OP_4.png", res.Samples[2].Source)
	assert.Equal(t, "Nuwara Eliya Region", res.Samples[2].Label.Region)

	require.Len(t, res.Skipped, 2)
	assert.Equal(t, 1, res.Skipped[0].Index)
	assert.ErrorIs(t, res.Skipped[0].Err, ErrUnlabelled)
	assert.Equal(t, 3, res.Skipped[1].Index)
	assert.Equal(t, 3, res.Workers)

	assert.Equal(t, 1, progress.starts)
	assert.Equal(t, 5, progress.progress)
	assert.Equal(t, 5, progress.last)
	assert.Equal(t, 2, progress.errors)
	assert.Equal(t, 1, progress.completes)
}

func TestRunErrors(t *testing.T) {
	e := NewExtractor(DefaultExtractorConfig())

	_, err := e.Run(context.Background(), nil, BatchConfig{})
	assert.ErrorIs(t, err, ErrNoSources)

	res, err := e.Run(context.Background(), []Source{{Name: "x.png", Data: []byte("x")}}, BatchConfig{})
	assert.ErrorIs(t, err, ErrNoValidImages)
	require.NotNil(t, res)
	assert.Len(t, res.Skipped, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Run(ctx, []Source{{Name: "DI_OP_1.png", Data: testutil.SolidPNG(t, 8, 8, testutil.White)}}, BatchConfig{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiscoverImages(t *testing.T) {
	dir := t.TempDir()
	png := testutil.SolidPNG(t, 4, 4, testutil.White)
	a := testutil.WriteFile(t, dir, "DI_OP_1.png", png)
	b := testutil.WriteFile(t, dir, "UV_BOP_2.JPG", png)
	testutil.WriteFile(t, dir, "readme.txt", []byte("x"))
	skip := testutil.WriteFile(t, dir, "tmp_skip.png", png)
	nested := testutil.WriteFile(t, dir, filepath.Join("sub", "KA_OP_3.png"), png)

	files, err := DiscoverImages([]string{dir}, false, []string{"tmp_*"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b}, files)

	files, err = DiscoverImages([]string{dir}, true, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b, skip, nested}, files)

	files, err = DiscoverImages([]string{a, filepath.Join(dir, "readme.txt")}, false, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{a}, files)

	_, err = DiscoverImages([]string{filepath.Join(dir, "missing")}, false, nil)
	assert.Error(t, err)

	sources := SourcesFromPaths([]string{nested})
	assert.Equal(t, "KA_OP_3.png", sources[0].Name)
	assert.Equal(t, nested, sources[0].Path)
}

func TestRunFromPaths(t *testing.T) {
	dir := t.TempDir()
	p := testutil.WriteFile(t, dir, "SB_OP_9.png", testutil.SolidPNG(t, 30, 30, testutil.Holder))

	res, err := NewExtractor(DefaultExtractorConfig()).Run(context.Background(), SourcesFromPaths([]string{p}), BatchConfig{Workers: 1})
	require.NoError(t, err)
	require.Len(t, res.Samples, 1)
	assert.Equal(t, "Sabaragamuwa Region", res.Samples[0].Label.Region)
}

func TestWriteFeaturesCSV(t *testing.T) {
	var v features.Vector
	v[0] = 1.5
	v[features.VectorLen-1] = 0.25
	samples := []Sample{{
		Source:   "RU_BOPF_1.png",
		Label:    features.Label{RegionCode: "RU", Region: "Ruhuna Region", Group: "BOPF", GroupLabel: 2},
		Features: v,
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteFeaturesCSV(&buf, samples))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	header := records[0]
	require.Len(t, header, features.VectorLen+5)
	assert.Equal(t, "R_mean", header[0])
	assert.Equal(t, "LBP_255", header[features.VectorLen-1])
	assert.Equal(t, LabelColumns, header[features.VectorLen:])

	row := records[1]
	assert.Equal(t, "1.5", row[0])
	assert.Equal(t, "0.25", row[features.VectorLen-1])
	assert.Equal(t, []string{"RU", "Ruhuna Region", "BOPF", "2", "RU_BOPF_1.png"}, row[features.VectorLen:])

	m := SampleRow(samples[0])
	assert.Equal(t, 1.5, m["R_mean"])
	assert.Equal(t, 2, m["group_label"])
	assert.Len(t, m, features.VectorLen+5)
}

func TestCropSample(t *testing.T) {
	p := testutil.DiskPhoto(200, 160, 100, 80, 50, testutil.TeaBrown, testutil.White)
	buf := &utils.Buffer{Width: p.Width, Height: p.Height, Channels: utils.BGR, Pix: p.Pix()}
	locator := circle.NewNativeLocator(circle.DefaultConfig())
	cropper := crop.NewSeededCropper(nil, 1)

	res, err := CropSample(buf, locator, cropper)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.DataURI, "data:image/png;base64,"))
	assert.Equal(t, utils.BGRA, res.Image.Channels)
	assert.Equal(t, 2*res.Circle.R, res.Image.Width)

	uniform := testutil.DiskPhoto(80, 80, 0, 0, 0, testutil.White, testutil.White)
	blank := &utils.Buffer{Width: 80, Height: 80, Channels: utils.BGR, Pix: uniform.Pix()}
	_, err = CropSample(blank, locator, cropper)
	assert.ErrorIs(t, err, ErrNoSampleRegion)

	_, err = CropSample(&utils.Buffer{}, locator, cropper)
	assert.Error(t, err)
}

func TestErrorStrings(t *testing.T) {
	for _, err := range []error{ErrNoSources, ErrNoValidImages, ErrUnlabelled, ErrNoSampleRegion} {
		msg := err.Error()
		assert.Equal(t, strings.ToLower(msg[:1]), msg[:1], msg)
	}
}
