//go:build !gocv

package circle

import "errors"

// ErrNoGoCV is returned when the gocv backend is requested from a binary
// built without the gocv tag.
var ErrNoGoCV = errors.New("circle: gocv backend not linked; build with -tags=gocv")

func newGoCVLocator(Config) (Locator, error) { return nil, ErrNoGoCV }
