package server

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/teavision/internal/features"
	"github.com/MeKo-Tech/teavision/internal/pipeline"
	"github.com/MeKo-Tech/teavision/internal/testutil"
)

func TestPredictHandler(t *testing.T) {
	ts := newTestServer(t, Config{})
	body := map[string]any{"rows": []map[string]any{
		{"R_mean": 150, "G_mean": 2, "path": "a.jpg"},
		{"R_mean": "40"},
	}}

	w := ts.doJSON(t, http.MethodPost, "/predict_region_group", body, map[string]string{HeaderModelName: "SVM"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[PredictResponse](t, w)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "DI", resp.Results[0]["predicted_region"])
	assert.Equal(t, "2", resp.Results[0]["predicted_group"])
	assert.Equal(t, "a.jpg", resp.Results[0]["path"])
	assert.Equal(t, "UV", resp.Results[1]["predicted_region"])
	assert.InDelta(t, 40.0, resp.Results[1]["R_mean"], 1e-9)
}

func TestPredictHandlerErrors(t *testing.T) {
	ts := newTestServer(t, Config{})

	tests := []struct {
		name    string
		model   string
		body    any
		status  int
		message string
	}{
		{name: "unknown model", model: "knn", body: map[string]any{"rows": []any{}}, status: http.StatusBadRequest, message: "Model 'knn' not available"},
		{name: "missing rows", body: map[string]any{"data": 1}, status: http.StatusBadRequest, message: "No data provided"},
		{name: "not json", body: "rows", status: http.StatusBadRequest, message: "No data provided"},
		{name: "bad value", body: map[string]any{"rows": []any{map[string]any{"R_mean": []int{1}}}}, status: http.StatusBadRequest, message: "Feature conversion error: "},
		{name: "null value", body: map[string]any{"rows": []any{map[string]any{"LBP_3": nil}}}, status: http.StatusInternalServerError, message: "Scaler transform error: "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := map[string]string{}
			if tt.model != "" {
				header[HeaderModelName] = tt.model
			}
			w := ts.doJSON(t, http.MethodPost, "/predict_region_group", tt.body, header)
			assert.Equal(t, tt.status, w.Code)
			assert.True(t, strings.HasPrefix(errorMessage(t, w), tt.message), w.Body.String())
		})
	}

	w := ts.doJSON(t, http.MethodPost, "/predict_region_group", map[string]any{"rows": []any{}}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[PredictResponse](t, w).Results)

	assert.Equal(t, http.StatusMethodNotAllowed, ts.do(t, http.MethodGet, "/predict_region_group", nil, nil).Code)
}

func TestPredictWithoutModels(t *testing.T) {
	s, err := NewServer(Config{}, Deps{Store: testutil.NewStore(t)})
	require.NoError(t, err)
	w := httptest.NewRecorder()
	s.predictHandler(w, httptest.NewRequest(http.MethodPost, "/predict_region_group", strings.NewReader(`{"rows":[]}`)))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestExtractFeaturesHandler(t *testing.T) {
	ts := newTestServer(t, Config{BatchWorkers: 2})
	body, ctype := multipartBody(t, map[string]string{"output_csv": "batch"},
		upload{"images", "DI_OP_1.png", testutil.SolidPNG(t, 20, 20, testutil.White)},
		upload{"images", "holiday.png", testutil.SolidPNG(t, 20, 20, testutil.White)},
		upload{"images", "UV_BOPF_2.png", []byte("not an image")},
		upload{"images", "dir/NU_OP_3.png", testutil.SolidPNG(t, 20, 20, testutil.TeaBrown)},
	)

	w := ts.do(t, http.MethodPost, "/extract_features", body, map[string]string{"Content-Type": ctype})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="batch.csv"`, w.Header().Get("Content-Disposition"))

	records, err := csv.NewReader(bytes.NewReader(w.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, pipeline.CSVHeader(), records[0])
	assert.Equal(t, []string{"DI", "Dimbula Region", "OP", "0", "DI_OP_1.png"}, records[1][features.VectorLen:])
	assert.Equal(t, "NU_OP_3.png", records[2][len(records[2])-1])
}

func TestExtractFeaturesErrors(t *testing.T) {
	ts := newTestServer(t, Config{})

	body, ctype := multipartBody(t, map[string]string{"output_csv": "x.csv"})
	w := ts.do(t, http.MethodPost, "/extract_features", body, map[string]string{"Content-Type": ctype})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No images uploaded", errorMessage(t, w))

	body, ctype = multipartBody(t, nil, upload{"images", "notes.png", testutil.SolidPNG(t, 8, 8, testutil.White)})
	w = ts.do(t, http.MethodPost, "/extract_features", body, map[string]string{"Content-Type": ctype})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No valid images found", errorMessage(t, w))

	w = ts.do(t, http.MethodPost, "/extract_features", strings.NewReader("{}"), map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractFeaturesTooLarge(t *testing.T) {
	ts := newTestServer(t, Config{MaxUploadMB: 1})
	big := make([]byte, 2<<20)
	body, ctype := multipartBody(t, nil, upload{"images", "DI_OP_1.png", big})
	w := ts.do(t, http.MethodPost, "/extract_features", body, map[string]string{"Content-Type": ctype})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCSVFilename(t *testing.T) {
	assert.Equal(t, pipeline.DefaultOutputCSV, csvFilename(""))
	assert.Equal(t, pipeline.DefaultOutputCSV, csvFilename("  "))
	assert.Equal(t, "out.csv", csvFilename("../../out.csv"))
	assert.Equal(t, "feat.CSV", csvFilename("feat.CSV"))
	assert.Equal(t, "feat.csv", csvFilename("feat"))
}

func TestCropReflectionHandler(t *testing.T) {
	ts := newTestServer(t, Config{})
	photo := testutil.DiskPhoto(200, 160, 100, 80, 50, testutil.TeaBrown, testutil.White)

	body, ctype := multipartBody(t, nil, upload{"file", "sample.png", photo.PNG(t)})
	w := ts.do(t, http.MethodPost, "/crop_reflection", body, map[string]string{"Content-Type": ctype})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[CropResponse](t, w)
	require.True(t, strings.HasPrefix(resp.CroppedImage, "data:image/png;base64,"))

	tests := []struct {
		name    string
		files   []upload
		message string
	}{
		{name: "no file", message: "No file uploaded"},
		{name: "invalid image", files: []upload{{"file", "x.png", []byte("nope")}}, message: "Invalid image"},
		{name: "no circle", files: []upload{{"file", "w.png", testutil.SolidPNG(t, 80, 80, testutil.White)}}, message: "No tea circle detected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ctype := multipartBody(t, nil, tt.files...)
			w := ts.do(t, http.MethodPost, "/crop_reflection", body, map[string]string{"Content-Type": ctype})
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.message, errorMessage(t, w))
		})
	}
}

func TestCropperSeeding(t *testing.T) {
	ts := newTestServer(t, Config{CropSeed: 3})
	assert.NotNil(t, ts.cropper())
	ts.cropSeed = 0
	assert.NotNil(t, ts.cropper())
}
