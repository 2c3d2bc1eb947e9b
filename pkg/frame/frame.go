package frame

import (
	"errors"
	"fmt"
)

// ErrStrideLength is returned when a pushed stride does not match the assembler stride.
var ErrStrideLength = errors.New("stride length mismatch")

// Assembler keeps the last two strides as one analysis window with 50% overlap.
type Assembler struct {
	stride int
	window []uint16
	pushes int
}

// New creates an assembler producing windows of 2*stride samples.
func New(stride int) *Assembler {
	return &Assembler{
		stride: stride,
		window: make([]uint16, 2*stride),
	}
}

// Push shifts the previous stride to the first half of the window and copies
// samples into the second half. The returned window is owned by the assembler
// and is overwritten by the next Push.
func (a *Assembler) Push(samples []uint16) ([]uint16, error) {
	if len(samples) != a.stride {
		return nil, fmt.Errorf("%w: expected %d samples, got %d", ErrStrideLength, a.stride, len(samples))
	}

	copy(a.window, a.window[a.stride:])
	copy(a.window[a.stride:], samples)
	if a.pushes < 2 {
		a.pushes++
	}

	return a.window, nil
}

// Primed reports whether both halves of the window hold pushed samples.
func (a *Assembler) Primed() bool {
	return a.pushes >= 2
}

// Window returns the current window without modifying it.
func (a *Assembler) Window() []uint16 {
	return a.window
}

// Stride returns the stride length.
func (a *Assembler) Stride() int {
	return a.stride
}
