// Package onnx wraps the ONNX Runtime shared library: locating it, creating
// sessions with the configured execution provider and packing feature
// matrices into tensors.
package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	onnxrt "github.com/yalue/onnxruntime_go"
)

const (
	osLinux    = "linux"
	osDarwin   = "darwin"
	osWindows  = "windows"
	libLinux   = "libonnxruntime.so"
	libDarwin  = "libonnxruntime.dylib"
	libWindows = "onnxruntime.dll"
)

// GPUConfig holds configuration for CUDA acceleration.
type GPUConfig struct {
	UseGPU      bool   `mapstructure:"use_gpu" yaml:"use_gpu" json:"use_gpu"`
	DeviceID    int    `mapstructure:"device_id" yaml:"device_id" json:"device_id"`
	GPUMemLimit uint64 `mapstructure:"mem_limit" yaml:"mem_limit" json:"mem_limit"`
}

// SessionConfig controls how sessions are created.
type SessionConfig struct {
	// LibraryPath overrides the shared library search.
	LibraryPath string
	NumThreads  int
	GPU         GPUConfig
}

// ValidateGPUConfig checks if the GPU configuration is valid.
func ValidateGPUConfig(config GPUConfig) error {
	if !config.UseGPU {
		return nil
	}
	if config.DeviceID < 0 {
		return fmt.Errorf("device ID must be non-negative, got %d", config.DeviceID)
	}
	return nil
}

var initMu sync.Mutex

// InitializeEnvironment points onnxruntime_go at the shared library and
// initializes the runtime once per process.
func InitializeEnvironment(cfg SessionConfig) error {
	initMu.Lock()
	defer initMu.Unlock()

	if onnxrt.IsInitialized() {
		return nil
	}
	if cfg.LibraryPath != "" {
		if !trySetLibraryPath(cfg.LibraryPath) {
			return fmt.Errorf("ONNX Runtime library not found at %s", cfg.LibraryPath)
		}
	} else if err := SetLibraryPath(cfg.GPU.UseGPU); err != nil {
		return fmt.Errorf("onnx lib path: %w", err)
	}
	if err := onnxrt.InitializeEnvironment(); err != nil {
		return fmt.Errorf("init onnx: %w", err)
	}
	return nil
}

// NewSessionOptions creates session options for cfg. Callers destroy them.
func NewSessionOptions(cfg SessionConfig) (*onnxrt.SessionOptions, error) {
	opts, err := onnxrt.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session opts: %w", err)
	}
	if err := configureGPU(opts, cfg.GPU); err != nil {
		// CPU execution still works
		slog.Warn("GPU execution provider unavailable, using CPU", "error", err)
	}
	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			_ = opts.Destroy()
			return nil, fmt.Errorf("set threads: %w", err)
		}
	}
	return opts, nil
}

func configureGPU(opts *onnxrt.SessionOptions, gpu GPUConfig) error {
	if !gpu.UseGPU {
		return nil
	}
	cudaOpts, err := onnxrt.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("failed to create CUDA provider options: %w", err)
	}
	defer func() {
		if destroyErr := cudaOpts.Destroy(); destroyErr != nil {
			slog.Warn("failed to destroy CUDA provider options", "error", destroyErr)
		}
	}()

	settings := map[string]string{"device_id": strconv.Itoa(gpu.DeviceID)}
	if gpu.GPUMemLimit > 0 {
		settings["gpu_mem_limit"] = strconv.FormatUint(gpu.GPUMemLimit, 10)
	}
	if err := cudaOpts.Update(settings); err != nil {
		return fmt.Errorf("failed to update CUDA provider options: %w", err)
	}
	return opts.AppendExecutionProviderCUDA(cudaOpts)
}

// getSystemLibraryPaths returns system library paths to try, GPU builds first
// when requested.
func getSystemLibraryPaths(useGPU bool) []string {
	paths := []string{
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/libonnxruntime.so",
		"/opt/onnxruntime/cpu/lib/libonnxruntime.so",
	}
	if useGPU {
		paths = append([]string{"/opt/onnxruntime/gpu/lib/libonnxruntime.so"}, paths...)
	}
	return paths
}

func getLibraryName() (string, error) {
	switch runtime.GOOS {
	case osLinux:
		return libLinux, nil
	case osDarwin:
		return libDarwin, nil
	case osWindows:
		return libWindows, nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

func trySetLibraryPath(path string) bool {
	if _, err := os.Stat(path); err == nil {
		onnxrt.SetSharedLibraryPath(path)
		return true
	}
	return false
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root")
		}
		dir = parent
	}
}

// SetLibraryPath searches the ONNXRUNTIME_LIB_PATH variable, system paths and
// the project-local onnxruntime/lib directory for the shared library.
func SetLibraryPath(useGPU bool) error {
	if p := os.Getenv("ONNXRUNTIME_LIB_PATH"); p != "" && trySetLibraryPath(p) {
		return nil
	}
	for _, path := range getSystemLibraryPaths(useGPU) {
		if trySetLibraryPath(path) {
			return nil
		}
	}

	root, err := findProjectRoot()
	if err != nil {
		return err
	}
	libName, err := getLibraryName()
	if err != nil {
		return err
	}
	if useGPU && trySetLibraryPath(filepath.Join(root, "onnxruntime", "gpu", "lib", libName)) {
		return nil
	}
	libPath := filepath.Join(root, "onnxruntime", "lib", libName)
	if !trySetLibraryPath(libPath) {
		return fmt.Errorf("ONNX Runtime library not found at %s", libPath)
	}
	return nil
}
