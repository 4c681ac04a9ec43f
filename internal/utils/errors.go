package utils

import "fmt"

// InputValidationError reports a missing, empty or undecodable image.
type InputValidationError struct {
	Operation string
	Err       error
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("invalid image input in %s: %v", e.Operation, e.Err)
}

func (e *InputValidationError) Unwrap() error {
	return e.Err
}
