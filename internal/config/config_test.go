package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/teavision/internal/circle"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 224, cfg.Features.Width)
	assert.Equal(t, 224, cfg.Features.Height)
	assert.Equal(t, circle.BackendNative, cfg.Circle.Backend)
	assert.Equal(t, "svm", cfg.Models.Default)
	assert.Equal(t, "handcrafted_features.csv", cfg.Batch.Output)
	assert.Equal(t, "smtp.gmail.com", cfg.Notify.Host)
	assert.Equal(t, 587, cfg.Notify.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log level"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "invalid max upload size"},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = -1 }, "invalid timeout"},
		{"resolution", func(c *Config) { c.Features.Width = 0 }, "invalid feature resolution"},
		{"lbp workers", func(c *Config) { c.Features.LBPWorkers = -2 }, "invalid lbp workers"},
		{"backend", func(c *Config) { c.Circle.Backend = "opencl" }, "invalid circle backend"},
		{"default model", func(c *Config) { c.Models.Default = "" }, "models.default"},
		{"threads", func(c *Config) { c.Models.NumThreads = -1 }, "invalid onnx threads"},
		{"gpu", func(c *Config) { c.Models.GPU.UseGPU = true; c.Models.GPU.DeviceID = -1 }, "invalid GPU configuration"},
		{"store", func(c *Config) { c.Store.Path = "" }, "store.path"},
		{"notify sender", func(c *Config) { c.Notify.Enabled = true }, "notify.host and notify.from"},
		{"notify port", func(c *Config) { c.Notify.Enabled = true; c.Notify.From = "a@b.c"; c.Notify.Port = 0 }, "invalid notify port"},
		{"batch workers", func(c *Config) { c.Batch.Workers = 0 }, "invalid batch workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestManifestPath(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join("models", "models.yaml"), cfg.ManifestPath())

	cfg.Models.Manifest = "/opt/tea/models.yaml"
	assert.Equal(t, "/opt/tea/models.yaml", cfg.ManifestPath())

	cfg.Models.Dir = ""
	cfg.Models.Manifest = "m.yaml"
	assert.Equal(t, "m.yaml", cfg.ManifestPath())
}

func TestDerivedConfigs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Models.NumThreads = 2
	cfg.Models.LibraryPath = "/usr/lib/libonnxruntime.so"
	cfg.Notify.From = "noreply@example.com"
	cfg.Notify.Password = "from-env"

	sess := cfg.SessionConfig()
	assert.Equal(t, 2, sess.NumThreads)
	assert.Equal(t, "/usr/lib/libonnxruntime.so", sess.LibraryPath)

	smtp := cfg.SMTPConfig()
	assert.Equal(t, "smtp.gmail.com", smtp.Host)
	assert.Equal(t, "noreply@example.com", smtp.From)
	assert.Equal(t, "from-env", smtp.Password)
}
