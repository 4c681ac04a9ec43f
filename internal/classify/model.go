package classify

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Prediction is one model output.
type Prediction struct {
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
}

// Model predicts a label for each scaled feature row. Implementations are
// safe for concurrent use.
type Model interface {
	Predict(rows [][]float64) ([]Prediction, error)
	Close() error
}

// LinearModel is a multinomial linear classifier: argmax of W x + b, with
// softmax scores reported as probabilities.
type LinearModel struct {
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
	Classes []string    `json:"classes"`
}

// LoadLinearModel reads a LinearModel from JSON. classes overrides the
// classes stored in the file when non-empty.
func LoadLinearModel(path string, classes []string) (*LinearModel, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the model manifest
	if err != nil {
		return nil, fmt.Errorf("read linear model: %w", err)
	}
	var m LinearModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse linear model %s: %w", path, err)
	}
	if len(classes) > 0 {
		m.Classes = classes
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("linear model %s: %w", path, err)
	}
	return &m, nil
}

func (m *LinearModel) validate() error {
	if len(m.Weights) == 0 {
		return fmt.Errorf("no weights")
	}
	if len(m.Bias) != len(m.Weights) || len(m.Classes) != len(m.Weights) {
		return fmt.Errorf("weights (%d), bias (%d) and classes (%d) disagree",
			len(m.Weights), len(m.Bias), len(m.Classes))
	}
	width := len(m.Weights[0])
	for i, w := range m.Weights {
		if len(w) != width {
			return fmt.Errorf("weight row %d has %d values, want %d", i, len(w), width)
		}
	}
	return nil
}

// Predict implements Model.
func (m *LinearModel) Predict(rows [][]float64) ([]Prediction, error) {
	out := make([]Prediction, len(rows))
	scores := make([]float64, len(m.Weights))
	for r, row := range rows {
		if len(row) != len(m.Weights[0]) {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", r, len(row), len(m.Weights[0]))
		}
		best := 0
		for k, w := range m.Weights {
			s := m.Bias[k]
			for j, v := range row {
				s += w[j] * v
			}
			scores[k] = s
			if s > scores[best] {
				best = k
			}
		}
		probs := softmax(scores)
		p := Prediction{Label: m.Classes[best], Confidence: probs[best], Probabilities: make(map[string]float64, len(probs))}
		for k, c := range m.Classes {
			p.Probabilities[c] = probs[k]
		}
		out[r] = p
	}
	return out, nil
}

// Close implements Model.
func (m *LinearModel) Close() error { return nil }

func softmax(v []float64) []float64 {
	maxV := math.Inf(-1)
	for _, x := range v {
		maxV = max(maxV, x)
	}
	out := make([]float64, len(v))
	var sum float64
	for i, x := range v {
		out[i] = math.Exp(x - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
