package classify

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Model file formats.
const (
	FormatONNX   = "onnx"
	FormatLinear = "linear"
)

// Manifest describes the scaler and model families in a models directory.
type Manifest struct {
	Scaler  string                `yaml:"scaler"`
	Default string                `yaml:"default"`
	Models  map[string]FamilySpec `yaml:"models"`

	dir string
}

// FamilySpec pairs the region and grade-group models of one family.
type FamilySpec struct {
	Region ModelSpec `yaml:"region"`
	Group  ModelSpec `yaml:"group"`
}

// ModelSpec locates one trained model.
type ModelSpec struct {
	Format  string   `yaml:"format"`
	Path    string   `yaml:"path"`
	Output  string   `yaml:"output,omitempty"`
	Classes []string `yaml:"classes,omitempty"`
}

// LoadManifest reads a manifest. Relative paths inside it resolve against
// the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: manifest path is operator configuration
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// ParseManifest decodes and validates manifest YAML. Family names are
// lower-cased.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if m.Scaler == "" {
		return nil, fmt.Errorf("scaler path is required")
	}
	if len(m.Models) == 0 {
		return nil, fmt.Errorf("no models listed")
	}

	models := make(map[string]FamilySpec, len(m.Models))
	for name, fam := range m.Models {
		key := strings.ToLower(strings.TrimSpace(name))
		for target, spec := range map[string]ModelSpec{"region": fam.Region, "group": fam.Group} {
			if err := spec.validate(); err != nil {
				return nil, fmt.Errorf("model %s/%s: %w", key, target, err)
			}
		}
		models[key] = fam
	}
	m.Models = models
	m.Default = strings.ToLower(m.Default)
	if m.Default != "" {
		if _, ok := m.Models[m.Default]; !ok {
			return nil, fmt.Errorf("default model %q is not listed", m.Default)
		}
	}
	return &m, nil
}

func (s ModelSpec) validate() error {
	if s.Path == "" {
		return fmt.Errorf("path is required")
	}
	switch s.Format {
	case FormatONNX, FormatLinear:
		return nil
	case "":
		return fmt.Errorf("format is required")
	default:
		return fmt.Errorf("unsupported format %q", s.Format)
	}
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) || m.dir == "" {
		return p
	}
	return filepath.Join(m.dir, p)
}
