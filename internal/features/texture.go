package features

import (
	"math"

	"github.com/MeKo-Tech/teavision/internal/utils"
	"gonum.org/v1/gonum/stat"
)

// TextureCount is the number of grayscale moment features.
const TextureCount = 4

// Epsilon keeps moment ratios and histogram normalisation finite.
const Epsilon = 1e-8

// Texture returns [mean, std, skewness, kurtosis] of a grayscale buffer.
// std is the population standard deviation; skewness and kurtosis are the
// third and fourth central moments divided by std^3+eps and std^4+eps.
func Texture(gray *utils.Buffer) [TextureCount]float64 {
	x := make([]float64, len(gray.Pix))
	for i, v := range gray.Pix {
		x[i] = float64(v)
	}

	mean, variance := stat.PopMeanVariance(x, nil)
	std := math.Sqrt(variance)
	m3 := stat.Moment(3, x, nil)
	m4 := stat.Moment(4, x, nil)

	return [TextureCount]float64{
		mean,
		std,
		m3 / (math.Pow(std, 3) + Epsilon),
		m4 / (math.Pow(std, 4) + Epsilon),
	}
}
