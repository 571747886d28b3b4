package ml

import (
	"errors"
	"fmt"
)

var (
	// ErrNotTrained is returned when a model is used before it has been fitted.
	ErrNotTrained = errors.New("model not trained")
	// ErrDimension is returned when the input does not match the fitted shape.
	ErrDimension = errors.New("dimension mismatch")
)

// checkXY validates a feature matrix against its labels.
func checkXY(x [][]float64, y []int) (int, error) {
	if len(x) == 0 {
		return 0, fmt.Errorf("empty training set: %w", ErrDimension)
	}
	if len(x) != len(y) {
		return 0, fmt.Errorf("rows %d vs labels %d: %w", len(x), len(y), ErrDimension)
	}
	p := len(x[0])
	for i, row := range x {
		if len(row) != p {
			return 0, fmt.Errorf("row %d has %d features instead of %d: %w", i, len(row), p, ErrDimension)
		}
	}
	return p, nil
}

// ArgMax returns the index of the largest value.
func ArgMax(v []float64) int {
	idx := 0
	for i := range v {
		if v[i] > v[idx] {
			idx = i
		}
	}
	return idx
}
