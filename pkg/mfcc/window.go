package mfcc

import (
	"fmt"
	"math"
)

// HannWindow returns the n-point periodic Hann window sin²(π(i+½)/n).
// n must be a positive power of two.
func HannWindow(n int) ([]float32, error) {
	if n <= 0 || n&(n-1) != 0 {
		return nil, fmt.Errorf("%w: window length must be a positive power of two, got %d", ErrInvalidParams, n)
	}

	lut := make([]float32, n)
	for i := range lut {
		x := math.Sin(math.Pi * (float64(i) + 0.5) / float64(n))
		lut[i] = float32(x * x)
	}

	return lut, nil
}
