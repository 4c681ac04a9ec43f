package pipeline

import (
	"errors"

	"github.com/MeKo-Tech/teavision/internal/circle"
	"github.com/MeKo-Tech/teavision/internal/crop"
	"github.com/MeKo-Tech/teavision/internal/utils"
)

// ErrNoSampleRegion is returned when no tea circle is found.
var ErrNoSampleRegion = errors.New("no tea circle detected")

// CropResult is a cleaned circular cutout.
type CropResult struct {
	Circle  circle.Circle
	Image   *utils.Buffer
	DataURI string
}

// CropSample locates the sample region of buf and cuts it out with cropper.
func CropSample(buf *utils.Buffer, locator circle.Locator, cropper *crop.Cropper) (*CropResult, error) {
	if err := buf.Validate(utils.BGR); err != nil {
		return nil, err
	}
	c, ok := locator.Locate(buf)
	if !ok {
		return nil, ErrNoSampleRegion
	}
	img, err := cropper.Crop(buf, c)
	if err != nil {
		return nil, err
	}
	uri, err := img.PNGDataURI()
	if err != nil {
		return nil, err
	}
	return &CropResult{Circle: c, Image: img, DataURI: uri}, nil
}
