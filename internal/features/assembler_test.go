package features

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleZeroFillsMissingColumns(t *testing.T) {
	a := NewAssembler(SchemaV1)
	rows := []map[string]any{
		{"R_mean": 12.5, "LBP_255": "0.25", "path": "ignored.jpg"},
		{},
	}
	out, err := a.Assemble(rows)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Len(t, out[0], VectorLen)
	assert.Equal(t, 12.5, out[0][0])
	assert.Equal(t, 0.25, out[0][266])
	for i := 1; i < 266; i++ {
		assert.Zero(t, out[0][i])
	}
	for _, v := range out[1] {
		assert.Zero(t, v)
	}
	assert.Len(t, a.Missing(rows[0]), VectorLen-2)
}

func TestAssembleCoercion(t *testing.T) {
	a := NewAssembler(Schema{Version: 99, Columns: []string{"a", "b", "c", "d", "e"}})
	out, err := a.Assemble([]map[string]any{{
		"a": 3, "b": true, "c": json.Number("1.5"), "d": " 2 ", "e": float32(0.5),
	}})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 1.5, 2, 0.5}, out[0])
	assert.Equal(t, 99, a.Schema().Version)
}

func TestAssembleNullBecomesNaN(t *testing.T) {
	a := NewAssembler(Schema{Version: 1, Columns: []string{"x"}})
	out, err := a.Assemble([]map[string]any{{"x": nil}})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(out[0][0]))
}

func TestAssembleSchemaError(t *testing.T) {
	a := NewAssembler(SchemaV1)
	tests := []struct {
		name  string
		value any
	}{
		{"text", "brown"},
		{"object", map[string]any{"x": 1}},
		{"list", []any{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Assemble([]map[string]any{{"R_mean": 1.0}, {"Edge_mean": tt.value}})
			require.Error(t, err)
			var se *SchemaError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, 1, se.Row)
			assert.Equal(t, "Edge_mean", se.Column)
			assert.Contains(t, se.Error(), "Edge_mean")
		})
	}
}

func TestAssembleZeroFillProperty(t *testing.T) {
	a := NewAssembler(SchemaV1)
	properties := gopter.NewProperties(nil)
	properties.Property("absent columns are zero, present columns preserved", prop.ForAll(
		func(present []bool) bool {
			row := make(map[string]any)
			for i, keep := range present {
				if keep {
					row[columns[i]] = float64(i + 1)
				}
			}
			out, err := a.Assemble([]map[string]any{row})
			if err != nil || len(out[0]) != VectorLen {
				return false
			}
			for i, keep := range present {
				want := 0.0
				if keep {
					want = float64(i + 1)
				}
				if out[0][i] != want {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(VectorLen, gen.Bool()),
	))
	properties.TestingRun(t)
}
