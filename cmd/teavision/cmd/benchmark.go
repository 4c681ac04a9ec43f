package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/teavision/internal/benchmark"
	"github.com/MeKo-Tech/teavision/internal/pipeline"
	"github.com/MeKo-Tech/teavision/internal/utils"
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark [image]",
	Short: "Time the pipeline stages on one image",
	Long: `Run circle localisation, cropping, feature extraction and, when models are
available, prediction repeatedly on one image and report per-stage timings.

Examples:
  teavision benchmark sample.jpg
  teavision benchmark sample.jpg --iterations 50 --model knn`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		iterations, _ := cmd.Flags().GetInt("iterations")
		model := cfg.Models.Default
		if cmd.Flags().Changed("model") {
			model, _ = cmd.Flags().GetString("model")
		}

		buf, err := utils.LoadImage(args[0])
		if err != nil {
			return err
		}
		locator, remover, err := newCropComponents(cfg)
		if err != nil {
			return err
		}
		bcfg := benchmark.PipelineConfig{
			Locator:   locator,
			Remover:   remover,
			Extractor: pipeline.NewExtractor(cfg.Features),
			Model:     model,
			Seed:      1,
		}
		if classifier, err := loadClassifier(cfg); err != nil {
			slog.Warn("Models not loaded, skipping predict stage", "error", err)
		} else {
			defer func() { _ = classifier.Registry().Close() }()
			bcfg.Classifier = classifier
		}

		suite, err := benchmark.NewPipelineSuite(buf, bcfg)
		if err != nil {
			return err
		}
		results := suite.RunAll(cmd.Context(), iterations)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%dx%d), %d iterations\n", args[0], buf.Width, buf.Height, iterations)
		return benchmark.WriteTable(cmd.OutOrStdout(), results)
	},
}

func init() {
	rootCmd.AddCommand(benchmarkCmd)
	benchmarkCmd.Flags().IntP("iterations", "n", 10, "iterations per stage")
	benchmarkCmd.Flags().StringP("model", "m", "svm", "model family for the predict stage")
}
