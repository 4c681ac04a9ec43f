package classify

import (
	"errors"
	"fmt"
)

// ErrModelNotAvailable is returned for model names missing from the registry.
var ErrModelNotAvailable = errors.New("model not available")

// ConversionError reports feature rows that cannot be coerced to the schema.
type ConversionError struct {
	Err error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("feature conversion error: %v", e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// ScalerError reports a failing scaler transform.
type ScalerError struct {
	Err error
}

func (e *ScalerError) Error() string {
	return fmt.Sprintf("scaler transform error: %v", e.Err)
}

func (e *ScalerError) Unwrap() error { return e.Err }

// PredictionError reports a failing model prediction.
type PredictionError struct {
	Model  string
	Target string
	Err    error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("prediction error (%s/%s): %v", e.Model, e.Target, e.Err)
}

func (e *PredictionError) Unwrap() error { return e.Err }
