package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/teavision/internal/classify"
	"github.com/MeKo-Tech/teavision/internal/features"
)

// ModelManifest is the manifest written by WriteModelDir.
const ModelManifest = "models.yaml"

// toyModels returns the scaler and linear models behind NewClassifier.
func toyModels() (*classify.Scaler, *classify.LinearModel, *classify.LinearModel) {
	n := features.VectorLen

	mean := make([]float64, n)
	scale := make([]float64, n)
	for i := range scale {
		scale[i] = 1
	}
	mean[0] = 100

	region := &classify.LinearModel{
		Weights: [][]float64{make([]float64, n), make([]float64, n)},
		Bias:    []float64{0, 0},
		Classes: []string{"DI", "UV"},
	}
	region.Weights[0][0] = 1
	region.Weights[1][0] = -1

	group := &classify.LinearModel{
		Weights: [][]float64{make([]float64, n), make([]float64, n), make([]float64, n)},
		Bias:    []float64{0, 0, 0},
		Classes: []string{"0", "1", "2"},
	}
	group.Weights[2][1] = 1

	return &classify.Scaler{Mean: mean, Scale: scale}, region, group
}

// NewClassifier returns an adapter with a single "svm" family. Rows with an
// R_mean of at least 100 are region DI, others UV. The group is "2" when
// G_mean is positive and "0" otherwise.
func NewClassifier(t *testing.T) *classify.Adapter {
	t.Helper()

	reg, err := ToyRegistry()
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return classify.NewAdapter(reg, nil)
}

// ToyRegistry builds the registry behind NewClassifier for callers without
// a *testing.T.
func ToyRegistry() (*classify.Registry, error) {
	scaler, region, group := toyModels()
	return classify.NewRegistry(scaler,
		[]classify.Family{{Name: "SVM", Region: region, Group: group}}, "svm")
}

// WriteModelDir writes the NewClassifier models as linear JSON files plus a
// manifest into a temporary directory and returns the directory.
func WriteModelDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	scaler, region, group := toyModels()
	for name, v := range map[string]any{"scaler.json": scaler, "region.json": region, "group.json": group} {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
	}

	manifest := `scaler: scaler.json
default: svm
models:
  SVM:
    region:
      format: linear
      path: region.json
    group:
      format: linear
      path: group.json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ModelManifest), []byte(manifest), 0o600))
	return dir
}
