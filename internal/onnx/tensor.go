package onnx

import (
	"errors"
	"fmt"
	"math"
)

// Tensor is a row-major float32 tensor prepared for ONNX input.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// NewMatrixTensor packs rows of equal width into an [N, cols] tensor.
func NewMatrixTensor(rows [][]float64, cols int) (Tensor, error) {
	if len(rows) == 0 {
		return Tensor{}, errors.New("empty batch")
	}
	if cols <= 0 {
		return Tensor{}, fmt.Errorf("invalid column count %d", cols)
	}
	data := make([]float32, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return Tensor{}, fmt.Errorf("row %d has length %d, want %d", i, len(row), cols)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Tensor{}, fmt.Errorf("row %d column %d is not finite", i, j)
			}
			data[i*cols+j] = float32(v)
		}
	}
	return Tensor{Data: data, Shape: []int64{int64(len(rows)), int64(cols)}}, nil
}

// Row returns row i of a 2D tensor.
func (t Tensor) Row(i int) []float32 {
	cols := int(t.Shape[1])
	return t.Data[i*cols : (i+1)*cols]
}

// ArgMax returns the index of the largest value; the first one wins ties.
func ArgMax(v []float32) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
