//nolint:lll
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/teavision/internal/circle"
	"github.com/MeKo-Tech/teavision/internal/notify"
	"github.com/MeKo-Tech/teavision/internal/onnx"
	"github.com/MeKo-Tech/teavision/internal/pipeline"
)

// Config is the complete teavision configuration. It is loaded from a config
// file, TEAVISION_* environment variables and command-line flags.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Server   ServerConfig             `mapstructure:"server" yaml:"server" json:"server"`
	Features pipeline.ExtractorConfig `mapstructure:"features" yaml:"features" json:"features"`
	Circle   CircleConfig             `mapstructure:"circle" yaml:"circle" json:"circle"`
	Models   ModelsConfig             `mapstructure:"models" yaml:"models" json:"models"`
	Store    StoreConfig              `mapstructure:"store" yaml:"store" json:"store"`
	Notify   NotifyConfig             `mapstructure:"notify" yaml:"notify" json:"notify"`
	Batch    BatchConfig              `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	RateLimitEnabled  bool  `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// CircleConfig selects the localisation and inpainting backend.
type CircleConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend" json:"backend"`
	// CropSeed seeds the centre texture synthesis; 0 draws a fresh seed per crop.
	CropSeed uint64 `mapstructure:"crop_seed" yaml:"crop_seed" json:"crop_seed"`
}

// ModelsConfig locates the classifier manifest and tunes ONNX Runtime.
type ModelsConfig struct {
	Dir         string         `mapstructure:"dir" yaml:"dir" json:"dir"`
	Manifest    string         `mapstructure:"manifest" yaml:"manifest" json:"manifest"`
	Default     string         `mapstructure:"default" yaml:"default" json:"default"`
	NumThreads  int            `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	LibraryPath string         `mapstructure:"library_path" yaml:"library_path" json:"library_path"`
	GPU         onnx.GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// StoreConfig contains persistence settings.
type StoreConfig struct {
	Path      string `mapstructure:"path" yaml:"path" json:"path"`
	UploadDir string `mapstructure:"upload_dir" yaml:"upload_dir" json:"upload_dir"`
}

// NotifyConfig contains the mail relay settings. Password is read from
// TEAVISION_NOTIFY_PASSWORD and never written out.
type NotifyConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Host     string `mapstructure:"host" yaml:"host" json:"host"`
	Port     int    `mapstructure:"port" yaml:"port" json:"port"`
	From     string `mapstructure:"from" yaml:"from" json:"from"`
	Username string `mapstructure:"username" yaml:"username" json:"username"`
	Password string `mapstructure:"password" yaml:"-" json:"-"`
}

// BatchConfig contains batch extraction settings.
type BatchConfig struct {
	Workers   int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	Output    string `mapstructure:"output" yaml:"output" json:"output"`
	Recursive bool   `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			Host:              "localhost",
			Port:              5000,
			CORSOrigin:        "*",
			MaxUploadMB:       50,
			TimeoutSec:        60,
			ShutdownTimeout:   10,
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			MaxRequestsPerDay: 5000,
			MaxDataPerDay:     500 * 1024 * 1024,
		},
		Features: pipeline.DefaultExtractorConfig(),
		Circle: CircleConfig{
			Backend: circle.BackendNative,
		},
		Models: ModelsConfig{
			Dir:      "models",
			Manifest: "models.yaml",
			Default:  "svm",
		},
		Store: StoreConfig{
			Path:      "teavision.db",
			UploadDir: filepath.Join("uploads", "profile_pictures"),
		},
		Notify: NotifyConfig{
			Host: "smtp.gmail.com",
			Port: 587,
		},
		Batch: BatchConfig{
			Workers: 4,
			Output:  pipeline.DefaultOutputCSV,
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}

	if c.Features.Width <= 0 || c.Features.Height <= 0 {
		return fmt.Errorf("invalid feature resolution: %dx%d (must be positive)", c.Features.Width, c.Features.Height)
	}
	if c.Features.LBPWorkers < 0 {
		return fmt.Errorf("invalid lbp workers: %d (must not be negative)", c.Features.LBPWorkers)
	}

	validBackends := []string{circle.BackendNative, circle.BackendGoCV}
	if !slices.Contains(validBackends, c.Circle.Backend) {
		return fmt.Errorf("invalid circle backend: %s (must be one of: %s)", c.Circle.Backend, strings.Join(validBackends, ", "))
	}

	if c.Models.Default == "" {
		return errors.New("models.default must not be empty")
	}
	if c.Models.NumThreads < 0 {
		return fmt.Errorf("invalid onnx threads: %d (must not be negative)", c.Models.NumThreads)
	}
	if err := onnx.ValidateGPUConfig(c.Models.GPU); err != nil {
		return fmt.Errorf("invalid GPU configuration: %w", err)
	}

	if c.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}

	if c.Notify.Enabled {
		if c.Notify.Host == "" || c.Notify.From == "" {
			return errors.New("notify.host and notify.from are required when notifications are enabled")
		}
		if c.Notify.Port <= 0 || c.Notify.Port > 65535 {
			return fmt.Errorf("invalid notify port: %d (must be between 1 and 65535)", c.Notify.Port)
		}
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	return nil
}

// ManifestPath resolves the model manifest against the models directory.
func (c *Config) ManifestPath() string {
	if filepath.IsAbs(c.Models.Manifest) || c.Models.Dir == "" {
		return c.Models.Manifest
	}
	return filepath.Join(c.Models.Dir, c.Models.Manifest)
}

// SessionConfig returns the ONNX Runtime session settings.
func (c *Config) SessionConfig() onnx.SessionConfig {
	return onnx.SessionConfig{
		LibraryPath: c.Models.LibraryPath,
		NumThreads:  c.Models.NumThreads,
		GPU:         c.Models.GPU,
	}
}

// SMTPConfig returns the relay settings for notify.NewSMTPNotifier.
func (c *Config) SMTPConfig() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:     c.Notify.Host,
		Port:     c.Notify.Port,
		From:     c.Notify.From,
		Username: c.Notify.Username,
		Password: c.Notify.Password,
		Timeout:  15 * time.Second,
	}
}
