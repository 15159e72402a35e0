package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrLoad means the model file is missing, unreadable or corrupt.
	ErrLoad = errors.New("model load failed")
	// ErrBuild means an executable graph could not be built from the model.
	ErrBuild = errors.New("graph build failed")
	// ErrAllocation means tensor buffers could not be allocated.
	ErrAllocation = errors.New("tensor allocation failed")
	// ErrLengthMismatch means token ids and attention mask differ in length.
	ErrLengthMismatch = errors.New("input_ids and attention_mask must be same length")
	// ErrUnsupportedTensorType means a slot's element width is outside the supported set.
	ErrUnsupportedTensorType = errors.New("unsupported tensor type")
	// ErrExecution means the graph failed to run or produced no usable output.
	ErrExecution = errors.New("graph execution failed")
	// ErrUninitialized means no graph is loaded.
	ErrUninitialized = errors.New("analyzer not initialized")
	// ErrShape means a requested shape contradicts the declared one.
	ErrShape = errors.New("incompatible tensor shape")
)

// Unsupported returns ErrUnsupportedTensorType annotated with the element type.
func Unsupported(e ElementType) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedTensorType, e)
}

// Code returns a short stable label for the first taxonomy error in err's
// chain: "ok" for nil, "internal" when none match.
func Code(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrLengthMismatch):
		return "length_mismatch"
	case errors.Is(err, ErrUnsupportedTensorType):
		return "unsupported_tensor_type"
	case errors.Is(err, ErrUninitialized):
		return "uninitialized"
	case errors.Is(err, ErrLoad):
		return "load"
	case errors.Is(err, ErrBuild):
		return "build"
	case errors.Is(err, ErrAllocation):
		return "allocation"
	case errors.Is(err, ErrShape):
		return "shape"
	case errors.Is(err, ErrExecution):
		return "execution"
	}
	return "internal"
}
