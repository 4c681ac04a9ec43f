package features

import (
	"math"

	"github.com/MeKo-Tech/teavision/internal/mempool"
	"github.com/MeKo-Tech/teavision/internal/utils"
)

// EdgeCount is the number of edge features.
const EdgeCount = 1

// Edge returns the mean Sobel gradient magnitude of a grayscale buffer.
func Edge(gray *utils.Buffer) float64 {
	n := gray.Width * gray.Height
	gx, gy := mempool.GetFloat64(n), mempool.GetFloat64(n)
	defer mempool.PutFloat64(gx)
	defer mempool.PutFloat64(gy)
	utils.SobelInto(gray, gx, gy)

	var sum float64
	for i := range gx {
		sum += math.Sqrt(gx[i]*gx[i] + gy[i]*gy[i])
	}
	return sum / float64(len(gx))
}

// Sobel returns the 3x3 horizontal and vertical derivatives of a grayscale
// buffer with reflect-101 borders.
func Sobel(gray *utils.Buffer) (gx, gy []float64) {
	gx = make([]float64, gray.Width*gray.Height)
	gy = make([]float64, gray.Width*gray.Height)
	utils.SobelInto(gray, gx, gy)
	return gx, gy
}
