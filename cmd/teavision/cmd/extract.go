package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/teavision/internal/pipeline"
)

// extractCmd builds the training CSV from labelled sample photographs.
var extractCmd = &cobra.Command{
	Use:   "extract [files or directories...]",
	Short: "Extract handcrafted features from labelled tea images",
	Long: `Extract the 267-value feature vector of every labelled image and write
them to a CSV file together with the region and grade labels.

File names must follow REGION_GROUP_xxx.ext, for example DI_BOP_017.jpg.
Images without a valid label are skipped.

Supported formats: JPEG, PNG, BMP, TIFF, WebP

Examples:
  teavision extract dataset/
  teavision extract dataset/ --recursive --workers 8
  teavision extract a.jpg b.jpg --output features.csv`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	output := cfg.Batch.Output
	if cmd.Flags().Changed("output") {
		output, _ = cmd.Flags().GetString("output")
	}

	recursive := cfg.Batch.Recursive
	if cmd.Flags().Changed("recursive") {
		recursive, _ = cmd.Flags().GetBool("recursive")
	}

	workers := cfg.Batch.Workers
	if cmd.Flags().Changed("workers") {
		workers, _ = cmd.Flags().GetInt("workers")
	}

	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	quiet, _ := cmd.Flags().GetBool("quiet")

	paths, err := pipeline.DiscoverImages(args, recursive, exclude)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no supported image files found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress pipeline.ProgressCallback = pipeline.NoOpProgressCallback{}
	if !quiet {
		progress = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Extracting")
	}

	extractor := pipeline.NewExtractor(cfg.Features)
	res, err := extractor.Run(ctx, pipeline.SourcesFromPaths(paths), pipeline.BatchConfig{
		Workers:  workers,
		Progress: progress,
	})
	if err != nil {
		return err
	}

	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(output) //nolint:gosec // user-selected output path
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	if err := pipeline.WriteFeaturesCSV(f, res.Samples); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Features saved to %s\n", output)
	_, _ = fmt.Fprintf(out, "Processed %d images, skipped %d (%.1f images/s, %d workers)\n",
		len(res.Samples), len(res.Skipped), res.Throughput(), res.Workers)
	for _, s := range res.Skipped {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "  skipped %s: %v\n", s.Source, s.Err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringP("output", "o", pipeline.DefaultOutputCSV, "output CSV file")
	extractCmd.Flags().BoolP("recursive", "r", false, "process directories recursively")
	extractCmd.Flags().IntP("workers", "w", 4, "number of parallel workers")
	extractCmd.Flags().StringSlice("exclude", nil, "file name patterns to exclude")
	extractCmd.Flags().BoolP("quiet", "q", false, "suppress progress output")
}
