package classify

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Scaler standardises features as (x - mean) / scale.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// LoadScaler reads a scaler from a JSON file.
func LoadScaler(path string) (*Scaler, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the model manifest
	if err != nil {
		return nil, fmt.Errorf("read scaler: %w", err)
	}
	var s Scaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scaler %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("scaler %s: %w", path, err)
	}
	return &s, nil
}

func (s *Scaler) validate() error {
	if len(s.Mean) == 0 {
		return fmt.Errorf("empty mean")
	}
	if len(s.Scale) != len(s.Mean) {
		return fmt.Errorf("mean has %d values, scale has %d", len(s.Mean), len(s.Scale))
	}
	return nil
}

// Width returns the number of features the scaler expects.
func (s *Scaler) Width() int { return len(s.Mean) }

// Transform returns standardised copies of rows. A zero scale leaves the
// centred value unscaled.
func (s *Scaler) Transform(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(s.Mean) {
			return nil, fmt.Errorf("row %d has %d features, scaler expects %d", i, len(row), len(s.Mean))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("row %d feature %d is not finite", i, j)
			}
			sc := s.Scale[j]
			if sc == 0 {
				sc = 1
			}
			scaled[j] = (v - s.Mean[j]) / sc
		}
		out[i] = scaled
	}
	return out, nil
}
