package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/teavision/internal/circle"
	"github.com/MeKo-Tech/teavision/internal/classify"
	"github.com/MeKo-Tech/teavision/internal/config"
	"github.com/MeKo-Tech/teavision/internal/crop"
)

// newCropComponents builds the locator and reflection remover for the
// configured backend.
func newCropComponents(cfg *config.Config) (circle.Locator, *crop.ReflectionRemover, error) {
	locator, err := circle.NewLocator(cfg.Circle.Backend, circle.DefaultConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create circle locator: %w", err)
	}
	inpainter, err := crop.NewInpainter(cfg.Circle.Backend)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create inpainter: %w", err)
	}
	return locator, crop.NewReflectionRemover(inpainter), nil
}

// loadClassifier loads the model manifest named by the configuration.
func loadClassifier(cfg *config.Config) (*classify.Adapter, error) {
	reg, err := classify.LoadRegistry(cfg.ManifestPath(), cfg.SessionConfig())
	if err != nil {
		return nil, err
	}
	return classify.NewAdapter(reg, nil), nil
}
