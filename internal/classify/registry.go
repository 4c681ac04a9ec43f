package classify

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/MeKo-Tech/teavision/internal/onnx"
)

// Family is the region and grade-group model pair of one algorithm.
type Family struct {
	Name   string
	Region Model
	Group  Model
}

// Registry holds the scaler and model families. It is built once and never
// mutated, so concurrent readers need no locking.
type Registry struct {
	scaler   *Scaler
	families map[string]Family
	names    []string
	def      string
}

// NewRegistry builds a registry from loaded parts. defaultName must be one
// of the families when set.
func NewRegistry(scaler *Scaler, families []Family, defaultName string) (*Registry, error) {
	if scaler == nil {
		return nil, errors.New("scaler is required")
	}
	r := &Registry{scaler: scaler, families: make(map[string]Family, len(families))}
	for _, f := range families {
		key := strings.ToLower(f.Name)
		if f.Region == nil || f.Group == nil {
			return nil, fmt.Errorf("family %s is incomplete", key)
		}
		f.Name = key
		r.families[key] = f
		r.names = append(r.names, key)
	}
	slices.Sort(r.names)
	r.def = strings.ToLower(defaultName)
	if r.def != "" {
		if _, ok := r.families[r.def]; !ok {
			return nil, fmt.Errorf("default model %q is not registered", r.def)
		}
	}
	return r, nil
}

// LoadRegistry loads every model listed in a manifest.
func LoadRegistry(manifestPath string, sess onnx.SessionConfig) (*Registry, error) {
	m, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	scaler, err := LoadScaler(m.resolve(m.Scaler))
	if err != nil {
		return nil, err
	}

	var families []Family
	closeAll := func() {
		for _, f := range families {
			_ = f.Region.Close()
			_ = f.Group.Close()
		}
	}
	for name, fam := range m.Models {
		region, err := loadModel(m, fam.Region, sess)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("model %s/region: %w", name, err)
		}
		group, err := loadModel(m, fam.Group, sess)
		if err != nil {
			_ = region.Close()
			closeAll()
			return nil, fmt.Errorf("model %s/group: %w", name, err)
		}
		families = append(families, Family{Name: name, Region: region, Group: group})
		slog.Info("loaded model family", "name", name, "region", fam.Region.Path, "group", fam.Group.Path)
	}

	reg, err := NewRegistry(scaler, families, m.Default)
	if err != nil {
		closeAll()
		return nil, err
	}
	return reg, nil
}

func loadModel(m *Manifest, ms ModelSpec, sess onnx.SessionConfig) (Model, error) {
	path := m.resolve(ms.Path)
	switch ms.Format {
	case FormatLinear:
		return LoadLinearModel(path, ms.Classes)
	case FormatONNX:
		return NewONNXModel(path, ONNXOptions{Session: sess, Output: ms.Output, Classes: ms.Classes})
	}
	return nil, fmt.Errorf("unsupported format %q", ms.Format)
}

// Family returns the named family. Names are case-insensitive.
func (r *Registry) Family(name string) (Family, error) {
	f, ok := r.families[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Family{}, fmt.Errorf("model '%s': %w", name, ErrModelNotAvailable)
	}
	return f, nil
}

// Names returns the registered family names in sorted order.
func (r *Registry) Names() []string { return slices.Clone(r.names) }

// Default returns the default family name, which may be empty.
func (r *Registry) Default() string { return r.def }

// Scaler returns the shared scaler.
func (r *Registry) Scaler() *Scaler { return r.scaler }

// Close releases every model.
func (r *Registry) Close() error {
	var errs []error
	for _, name := range r.names {
		f := r.families[name]
		errs = append(errs, f.Region.Close(), f.Group.Close())
	}
	return errors.Join(errs...)
}
