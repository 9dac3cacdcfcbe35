package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for vector and loop operations.
var (
	// ErrInvalidState indicates a vector holding NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates mismatched vector lengths.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")
)

// DimensionError reports which vector had the wrong length.
type DimensionError struct {
	What string
	Got  int
	Want int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: %v: got %d elements, want %d", e.What, ErrDimensionMismatch, e.Got, e.Want)
}

func (e *DimensionError) Unwrap() error {
	return ErrDimensionMismatch
}

// CheckDim returns a *DimensionError when len(v) != want.
func CheckDim(what string, v Vector, want int) error {
	if len(v) != want {
		return &DimensionError{What: what, Got: len(v), Want: want}
	}
	return nil
}
