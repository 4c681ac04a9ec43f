package classify

import (
	"errors"
	"maps"
	"math"

	"github.com/MeKo-Tech/teavision/internal/features"
)

// Result column names appended to echoed rows.
const (
	ColumnPredictedRegion = "predicted_region"
	ColumnPredictedGroup  = "predicted_group"
)

// colourColumns are echoed as numbers, with unparsable values as 0.
var colourColumns = []string{"R_mean", "G_mean", "B_mean", "H_mean", "S_mean", "V_mean"}

// Adapter runs feature rows through the scaler and a model family.
type Adapter struct {
	registry  *Registry
	assembler *features.Assembler
}

// NewAdapter creates an adapter over a loaded registry.
func NewAdapter(reg *Registry, asm *features.Assembler) *Adapter {
	if asm == nil {
		asm = features.NewAssembler(features.SchemaV1)
	}
	return &Adapter{registry: reg, assembler: asm}
}

// Registry returns the underlying registry.
func (a *Adapter) Registry() *Registry { return a.registry }

// FamilyPrediction holds both predictions for one row.
type FamilyPrediction struct {
	Region Prediction `json:"region"`
	Group  Prediction `json:"group"`
}

// PredictMatrix scales dense rows and predicts region and group for each.
func (a *Adapter) PredictMatrix(modelName string, rows [][]float64) ([]FamilyPrediction, error) {
	fam, err := a.registry.Family(modelName)
	if err != nil {
		return nil, err
	}
	scaled, err := a.registry.Scaler().Transform(rows)
	if err != nil {
		return nil, &ScalerError{Err: err}
	}

	region, err := fam.Region.Predict(scaled)
	if err != nil {
		return nil, &PredictionError{Model: fam.Name, Target: "region", Err: err}
	}
	group, err := fam.Group.Predict(scaled)
	if err != nil {
		return nil, &PredictionError{Model: fam.Name, Target: "group", Err: err}
	}
	if len(region) != len(rows) || len(group) != len(rows) {
		return nil, &PredictionError{Model: fam.Name, Target: "region/group", Err: errors.New("prediction count mismatch")}
	}

	out := make([]FamilyPrediction, len(rows))
	for i := range rows {
		out[i] = FamilyPrediction{Region: region[i], Group: group[i]}
	}
	return out, nil
}

// PredictVector predicts a single extracted feature vector.
func (a *Adapter) PredictVector(modelName string, v features.Vector) (FamilyPrediction, error) {
	preds, err := a.PredictMatrix(modelName, [][]float64{v[:]})
	if err != nil {
		return FamilyPrediction{}, err
	}
	return preds[0], nil
}

// PredictRows assembles named-column rows (absent columns become 0),
// predicts them and returns copies of the rows with the predicted region
// and group appended.
func (a *Adapter) PredictRows(modelName string, rows []map[string]any) ([]map[string]any, error) {
	if _, err := a.registry.Family(modelName); err != nil {
		return nil, err
	}
	dense, err := a.assembler.Assemble(rows)
	if err != nil {
		return nil, &ConversionError{Err: err}
	}
	preds, err := a.PredictMatrix(modelName, dense)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		echo := maps.Clone(row)
		if echo == nil {
			echo = map[string]any{}
		}
		for _, col := range colourColumns {
			idx := a.columnIndex(col)
			if _, ok := echo[col]; !ok || idx < 0 {
				continue
			}
			v := dense[i][idx]
			if math.IsNaN(v) {
				v = 0
			}
			echo[col] = v
		}
		echo[ColumnPredictedRegion] = preds[i].Region.Label
		echo[ColumnPredictedGroup] = preds[i].Group.Label
		out[i] = echo
	}
	return out, nil
}

func (a *Adapter) columnIndex(col string) int {
	for i, c := range a.assembler.Schema().Columns {
		if c == col {
			return i
		}
	}
	return -1
}
