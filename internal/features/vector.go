package features

import (
	"fmt"

	"github.com/MeKo-Tech/teavision/internal/utils"
)

// VectorLen is the length of the assembled feature vector.
const VectorLen = ColorCount + TextureCount + EdgeCount + LBPBins

// Vector is the fixed-order feature vector.
type Vector [VectorLen]float64

// Options tunes extraction.
type Options struct {
	// LBPWorkers is the number of row ranges the histogram is split into.
	LBPWorkers int
}

var columns = buildColumns()

func buildColumns() []string {
	cols := []string{
		"R_mean", "G_mean", "B_mean", "H_mean", "S_mean", "V_mean",
		"Texture_mean", "Texture_std", "Texture_skew", "Texture_kurtosis",
		"Edge_mean",
	}
	for i := range LBPBins {
		cols = append(cols, fmt.Sprintf("LBP_%d", i))
	}
	return cols
}

// Columns returns the canonical column names in vector order.
func Columns() []string {
	return append([]string(nil), columns...)
}

// Extract computes the feature vector of a BGR buffer. The buffer is used as
// is; callers resize to the training resolution beforehand.
func Extract(buf *utils.Buffer) (Vector, error) {
	return ExtractWithOptions(buf, Options{LBPWorkers: 1})
}

// ExtractWithOptions is Extract with explicit options.
func ExtractWithOptions(buf *utils.Buffer, opts Options) (Vector, error) {
	var v Vector
	if err := buf.Validate(utils.BGR); err != nil {
		return v, err
	}

	gray := buf.ToGray()
	c := Color(buf)
	t := Texture(gray)
	e := Edge(gray)
	l := LBPHistogramParallel(gray, opts.LBPWorkers)

	n := copy(v[:], c[:])
	n += copy(v[n:], t[:])
	v[n] = e
	n++
	copy(v[n:], l[:])
	return v, nil
}

// Map returns the vector keyed by column name.
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, VectorLen)
	for i, c := range columns {
		m[c] = v[i]
	}
	return m
}
