package cmd

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/teavision/internal/classify"
	"github.com/MeKo-Tech/teavision/internal/pipeline"
	"github.com/MeKo-Tech/teavision/internal/utils"
)

// predictCmd classifies images or a feature CSV with a loaded model family.
var predictCmd = &cobra.Command{
	Use:   "predict [images... | features.csv]",
	Short: "Predict region and grade group",
	Long: `Predict the growing region and grade group of tea samples.

Image arguments are resized and run through feature extraction first. A CSV
argument is read as feature rows with a header line, as written by
"teavision extract", and echoed with predicted_region and predicted_group.

Examples:
  teavision predict cropped.png
  teavision predict features.csv --model randomforest --format json`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runPredict,
}

// ImagePrediction is the predict output for one image.
type ImagePrediction struct {
	File   string              `json:"file"`
	Region classify.Prediction `json:"region"`
	Group  classify.Prediction `json:"group"`
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	model := cfg.Models.Default
	if cmd.Flags().Changed("model") {
		model, _ = cmd.Flags().GetString("model")
	}
	model = strings.ToLower(model)
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format: %s (must be text or json)", format)
	}

	classifier, err := loadClassifier(cfg)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}
	defer func() { _ = classifier.Registry().Close() }()

	out := cmd.OutOrStdout()
	if len(args) == 1 && strings.EqualFold(filepath.Ext(args[0]), ".csv") {
		rows, err := readFeatureRows(args[0])
		if err != nil {
			return err
		}
		results, err := classifier.PredictRows(model, rows)
		if err != nil {
			return err
		}
		if format == "json" {
			return writeJSONOutput(out, results)
		}
		for i, r := range results {
			_, _ = fmt.Fprintf(out, "row %d: region=%v group=%v\n", i+1,
				r[classify.ColumnPredictedRegion], r[classify.ColumnPredictedGroup])
		}
		return nil
	}

	extractor := pipeline.NewExtractor(cfg.Features)
	preds := make([]ImagePrediction, 0, len(args))
	for _, path := range args {
		buf, err := utils.LoadImage(path)
		if err != nil {
			return err
		}
		vec, err := extractor.Features(buf)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		p, err := classifier.PredictVector(model, vec)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		preds = append(preds, ImagePrediction{File: path, Region: p.Region, Group: p.Group})
	}

	if format == "json" {
		return writeJSONOutput(out, preds)
	}
	for _, p := range preds {
		_, _ = fmt.Fprintf(out, "%s: region=%s (%.2f) group=%s (%.2f)\n",
			p.File, p.Region.Label, p.Region.Confidence, p.Group.Label, p.Group.Confidence)
	}
	return nil
}

// readFeatureRows reads a headed CSV into string-valued rows.
func readFeatureRows(path string) ([]map[string]any, error) {
	f, err := os.Open(path) //nolint:gosec // user-selected input path
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty CSV", path)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var rows []map[string]any
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		row := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func writeJSONOutput(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().StringP("model", "m", "svm", "model family to use")
	predictCmd.Flags().StringP("format", "f", "text", "output format (text, json)")
}
