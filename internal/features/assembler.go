package features

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Schema is a versioned, ordered set of feature columns.
type Schema struct {
	Version int
	Columns []string
}

// SchemaV1 is the 267-column layout produced by Extract.
var SchemaV1 = Schema{Version: 1, Columns: Columns()}

// SchemaError reports a feature value that cannot be coerced to a float.
type SchemaError struct {
	Row    int
	Column string
	Value  any
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("row %d column %s: cannot convert %v to float: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// Assembler projects named-column rows onto a schema.
type Assembler struct {
	schema Schema
	index  map[string]int
}

// NewAssembler returns an assembler for schema.
func NewAssembler(schema Schema) *Assembler {
	idx := make(map[string]int, len(schema.Columns))
	for i, c := range schema.Columns {
		idx[c] = i
	}
	return &Assembler{schema: schema, index: idx}
}

// Schema returns the schema the assembler projects onto.
func (a *Assembler) Schema() Schema {
	return a.schema
}

// Assemble converts rows into dense vectors in schema order. Columns absent
// from a row are filled with 0; columns not in the schema are ignored.
func (a *Assembler) Assemble(rows []map[string]any) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for r, row := range rows {
		vec := make([]float64, len(a.schema.Columns))
		for i, col := range a.schema.Columns {
			raw, ok := row[col]
			if !ok {
				continue
			}
			f, err := toFloat(raw)
			if err != nil {
				return nil, &SchemaError{Row: r, Column: col, Value: raw, Err: err}
			}
			vec[i] = f
		}
		out[r] = vec
	}
	return out, nil
}

// Missing returns the schema columns absent from row.
func (a *Assembler) Missing(row map[string]any) []string {
	var missing []string
	for _, col := range a.schema.Columns {
		if _, ok := row[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		return x.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
