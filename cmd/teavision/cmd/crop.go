package cmd

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/teavision/internal/crop"
	"github.com/MeKo-Tech/teavision/internal/pipeline"
	"github.com/MeKo-Tech/teavision/internal/utils"
)

// cropCmd cuts the cleaned sample circle out of one photograph.
var cropCmd = &cobra.Command{
	Use:   "crop [image]",
	Short: "Remove reflections and crop the circular tea sample",
	Long: `Locate the circular sample region of an image, inpaint specular highlights
and write the circle as a PNG with a transparent background.

Examples:
  teavision crop sample.jpg
  teavision crop sample.jpg -o cleaned.png --seed 42`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runCrop,
}

func runCrop(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	input := args[0]

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + "_cropped.png"
	}

	seed := cfg.Circle.CropSeed
	if cmd.Flags().Changed("seed") {
		seed, _ = cmd.Flags().GetUint64("seed")
	}
	if seed == 0 {
		seed = rand.Uint64()
	}

	locator, remover, err := newCropComponents(cfg)
	if err != nil {
		return err
	}
	buf, err := utils.LoadImage(input)
	if err != nil {
		return err
	}
	res, err := pipeline.CropSample(buf, locator, crop.NewSeededCropper(remover, seed))
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	data, err := res.Image.EncodePNG()
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cropped %s (circle %s) to %s\n", input, res.Circle, output)
	return nil
}

func init() {
	rootCmd.AddCommand(cropCmd)
	cropCmd.Flags().StringP("output", "o", "", "output PNG file (default <input>_cropped.png)")
	cropCmd.Flags().Uint64("seed", 0, "seed for the centre texture fill (0 = random)")
}
