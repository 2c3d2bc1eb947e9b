package segment

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacityExceeded is returned when a word is longer than the buffer.
	ErrCapacityExceeded = errors.New("word buffer capacity exceeded")
	// ErrDimension is returned for a feature vector of the wrong length.
	ErrDimension = errors.New("feature vector dimension mismatch")
)

// WordBuffer is a fixed-capacity store of the feature vectors of one word.
// All vectors share a single backing array allocated at construction.
type WordBuffer struct {
	dim       int
	data      []float32
	vectors   [][]float32
	length    int
	truncated bool
}

// NewWordBuffer allocates room for capacity vectors of dim features.
func NewWordBuffer(capacity, dim int) (*WordBuffer, error) {
	if capacity <= 0 || dim <= 0 {
		return nil, fmt.Errorf("%w: capacity %d, dimension %d", ErrInvalidParams, capacity, dim)
	}

	w := &WordBuffer{
		dim:     dim,
		data:    make([]float32, capacity*dim),
		vectors: make([][]float32, capacity),
	}
	for i := range w.vectors {
		w.vectors[i] = w.data[i*dim : (i+1)*dim : (i+1)*dim]
	}
	return w, nil
}

// Capacity returns the maximum number of vectors.
func (w *WordBuffer) Capacity() int {
	return len(w.vectors)
}

// Dim returns the feature vector dimension.
func (w *WordBuffer) Dim() int {
	return w.dim
}

// Len returns one past the highest slot stored since the last Reset.
func (w *WordBuffer) Len() int {
	return w.length
}

// Store copies fv into slot i. Slots at or beyond Capacity are rejected and
// mark the word as truncated.
func (w *WordBuffer) Store(i int, fv []float32) error {
	if len(fv) != w.dim {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimension, w.dim, len(fv))
	}
	if i < 0 || i >= len(w.vectors) {
		w.truncated = true
		return fmt.Errorf("%w: slot %d, capacity %d", ErrCapacityExceeded, i, len(w.vectors))
	}

	copy(w.vectors[i], fv)
	if i+1 > w.length {
		w.length = i + 1
	}
	return nil
}

// Word returns the first n stored vectors, clamped to the buffer contents.
// The slices alias the buffer and are overwritten by later Store calls.
func (w *WordBuffer) Word(n int) [][]float32 {
	if n > w.length {
		n = w.length
	}
	if n < 0 {
		n = 0
	}
	return w.vectors[:n]
}

// Truncated reports whether a Store was rejected since the last Reset. A
// rejected hangover slot sets it even when the trimmed word still fits.
func (w *WordBuffer) Truncated() bool {
	return w.truncated
}

// Reset empties the buffer for the next word.
func (w *WordBuffer) Reset() {
	w.length = 0
	w.truncated = false
}
