package onnx

import (
	"math"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatrixTensor(t *testing.T) {
	tensor, err := NewMatrixTensor([][]float64{{1, 2, 3}, {4, 5, 6}}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, tensor.Shape)
	assert.Equal(t, []float32{4, 5, 6}, tensor.Row(1))
}

func TestNewMatrixTensorErrors(t *testing.T) {
	_, err := NewMatrixTensor(nil, 3)
	assert.Error(t, err)

	_, err = NewMatrixTensor([][]float64{{1, 2}}, 3)
	assert.Error(t, err)

	_, err = NewMatrixTensor([][]float64{{1, math.NaN(), 3}}, 3)
	assert.Error(t, err)

	_, err = NewMatrixTensor([][]float64{{}}, 0)
	assert.Error(t, err)
}

func TestArgMax(t *testing.T) {
	assert.Equal(t, 2, ArgMax([]float32{0.1, 0.2, 0.7}))
	assert.Equal(t, 0, ArgMax([]float32{0.5, 0.5}))
	assert.Equal(t, 0, ArgMax([]float32{1}))
}

func TestValidateGPUConfig(t *testing.T) {
	assert.NoError(t, ValidateGPUConfig(GPUConfig{}))
	assert.NoError(t, ValidateGPUConfig(GPUConfig{UseGPU: true}))
	assert.Error(t, ValidateGPUConfig(GPUConfig{UseGPU: true, DeviceID: -1}))
}

func TestSystemLibraryPathsPreferGPU(t *testing.T) {
	cpu := getSystemLibraryPaths(false)
	gpu := getSystemLibraryPaths(true)
	assert.Len(t, gpu, len(cpu)+1)
	assert.Contains(t, gpu[0], "gpu")
}

func TestGetLibraryName(t *testing.T) {
	name, err := getLibraryName()
	switch runtime.GOOS {
	case osLinux:
		require.NoError(t, err)
		assert.Equal(t, libLinux, name)
	case osDarwin:
		require.NoError(t, err)
		assert.Equal(t, libDarwin, name)
	case osWindows:
		require.NoError(t, err)
		assert.Equal(t, libWindows, name)
	default:
		assert.Error(t, err)
	}
}

func TestInitializeEnvironmentMissingLibrary(t *testing.T) {
	err := InitializeEnvironment(SessionConfig{LibraryPath: t.TempDir() + "/missing.so"})
	if err == nil {
		t.Skip("runtime already initialized in this process")
	}
	assert.Contains(t, err.Error(), "not found")
}
