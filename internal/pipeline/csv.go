package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/MeKo-Tech/teavision/internal/features"
)

// DefaultOutputCSV is the file name used when none is given.
const DefaultOutputCSV = "handcrafted_features.csv"

// LabelColumns follow the feature columns in the batch CSV.
var LabelColumns = []string{"region_label", "region", "group", "group_label", "path"}

// CSVHeader returns the batch CSV header.
func CSVHeader() []string {
	return append(features.Columns(), LabelColumns...)
}

// WriteFeaturesCSV writes samples as the training CSV.
func WriteFeaturesCSV(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, 0, features.VectorLen+len(LabelColumns))
	for _, s := range samples {
		row = row[:0]
		for _, v := range s.Features {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		row = append(row,
			s.Label.RegionCode,
			s.Label.Region,
			s.Label.Group,
			strconv.Itoa(s.Label.GroupLabel),
			s.Source,
		)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", s.Source, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// SampleRow returns a sample as a JSON-friendly row keyed by CSV column.
func SampleRow(s Sample) map[string]any {
	row := make(map[string]any, features.VectorLen+len(LabelColumns))
	for k, v := range s.Features.Map() {
		row[k] = v
	}
	row["region_label"] = s.Label.RegionCode
	row["region"] = s.Label.Region
	row["group"] = s.Label.Group
	row["group_label"] = s.Label.GroupLabel
	row["path"] = s.Source
	return row
}
