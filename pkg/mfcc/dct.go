package mfcc

import (
	"fmt"
	"math"
)

// DCT is a precomputed orthonormal DCT-II of size n.
type DCT struct {
	n   int
	lut []float64 // Row k holds the basis vector of coefficient k
}

// NewDCT builds the n×n DCT-II table with √(2/n) scaling and an extra √½ on
// the zeroth coefficient.
func NewDCT(n int) (*DCT, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: DCT size must be positive, got %d", ErrInvalidParams, n)
	}

	lut := make([]float64, n*n)
	for k := 0; k < n; k++ {
		scaling := math.Sqrt(2.0 / float64(n))
		if k == 0 {
			scaling *= math.Sqrt(0.5)
		}
		for i := 0; i < n; i++ {
			lut[k*n+i] = scaling * math.Cos(math.Pi/float64(n)*(float64(i)+0.5)*float64(k))
		}
	}

	return &DCT{n: n, lut: lut}, nil
}

// Len returns the transform size.
func (d *DCT) Len() int {
	return d.n
}

// Evaluate returns coefficient k of x. len(x) must equal Len().
func (d *DCT) Evaluate(x []float32, k int) float32 {
	row := d.lut[k*d.n : (k+1)*d.n]
	var sum float64
	for i, v := range x[:d.n] {
		sum += float64(v) * row[i]
	}
	return float32(sum)
}

// Transform writes all Len() coefficients of src into dst.
func (d *DCT) Transform(dst, src []float32) {
	for k := 0; k < d.n; k++ {
		dst[k] = d.Evaluate(src, k)
	}
}
