package enhance

import (
	"errors"
	"fmt"
)

// ErrInvalidImage indicates input that does not decode as a raster image
// (zero-length, corrupt header, unsupported format).
var ErrInvalidImage = errors.New("invalid image")

// EnhancementError reports a restoration transform failure. There is never
// partial output.
type EnhancementError struct {
	cause error
}

func (e *EnhancementError) Error() string {
	return fmt.Sprintf("enhancement failed: %v", e.cause)
}

func (e *EnhancementError) Unwrap() error { return e.cause }
