package utils

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp", ".tif", ".tiff"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// DecodeImage decodes encoded image bytes into a BGR buffer.
func DecodeImage(data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, &InputValidationError{Operation: "decode", Err: errors.New("empty image data")}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &InputValidationError{Operation: "decode", Err: err}
	}
	b := img.Bounds()
	if b.Dx() < 1 || b.Dy() < 1 {
		return nil, &InputValidationError{Operation: "decode", Err: fmt.Errorf("empty image %dx%d", b.Dx(), b.Dy())}
	}
	return FromImage(img), nil
}

// LoadImage reads and decodes an image file.
func LoadImage(path string) (*Buffer, error) {
	if path == "" {
		return nil, &InputValidationError{Operation: "load", Err: errors.New("empty path")}
	}
	if !IsSupportedImage(path) {
		return nil, &InputValidationError{Operation: "load", Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: reading user-provided image path is expected
	if err != nil {
		return nil, &InputValidationError{Operation: "load", Err: err}
	}
	return DecodeImage(data)
}

// Resize scales a colour buffer to exactly width x height using bilinear
// interpolation.
func (b *Buffer) Resize(width, height int) *Buffer {
	if b.Width == width && b.Height == height {
		return b.Clone()
	}
	resized := imaging.Resize(b.ToNRGBA(), width, height, imaging.Linear)
	return FromImage(resized)
}

// EncodePNG encodes a BGR or BGRA buffer as PNG.
func (b *Buffer) EncodePNG() ([]byte, error) {
	var out bytes.Buffer
	if err := png.Encode(&out, b.ToNRGBA()); err != nil {
		return nil, fmt.Errorf("png encode: %w", err)
	}
	return out.Bytes(), nil
}

// PNGDataURI encodes the buffer as a data:image/png;base64 URI.
func (b *Buffer) PNGDataURI() (string, error) {
	data, err := b.EncodePNG()
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}
