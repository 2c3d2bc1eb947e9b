package mfcc

import (
	"fmt"
	"math"
)

// HzToMel converts a frequency to the mel scale.
func HzToMel(hz float64) float64 {
	return 1127 * math.Log(hz/700+1)
}

// MelToHz converts a mel value back to Hz.
func MelToHz(mel float64) float64 {
	return 700 * (math.Exp(mel/1127) - 1)
}

// FilterFrequency returns the idx-th triangle vertex of an n-filter bank.
// Vertex 0 is minHz, vertex n+1 is maxHz, the ones between are spaced
// uniformly on the mel scale.
func FilterFrequency(idx, n int, minHz, maxHz float64) float64 {
	if idx == 0 {
		return minHz
	}
	if idx == n+1 {
		return maxHz
	}
	minMel := HzToMel(minHz)
	maxMel := HzToMel(maxHz)
	return MelToHz(minMel + (maxMel-minMel)*(float64(idx)/float64(n+1)))
}

func triangle(x, left, center, right float64) float64 {
	switch {
	case x <= left:
		return 0
	case x < center:
		return (x - left) / (center - left)
	case x < right:
		return (x - right) / (center - right)
	default:
		return 0
	}
}

// Filter is the precomputed support of one triangular filter.
type Filter struct {
	LowestBin int       // First FFT bin with a (possibly zero) weight
	Weights   []float32 // One weight per bin starting at LowestBin
}

// Bins returns the half-open bin range [lo, hi) the filter covers.
func (f Filter) Bins() (lo, hi int) {
	return f.LowestBin, f.LowestBin + len(f.Weights)
}

// MelFilterBank holds the weights of a triangular mel filterbank.
// Filters are numbered from 1 to Len(), matching the vertex numbering of
// FilterFrequency.
type MelFilterBank struct {
	filters []Filter
	weights []float32 // Backing store shared by all filters
	fftSize int
}

// NewMelFilterBank computes the filter LUT for numFilters filters between
// minHz and maxHz on an fftSize-point spectrum sampled at sampleRate.
func NewMelFilterBank(numFilters int, minHz, maxHz float64, fftSize int, sampleRate float64) (*MelFilterBank, error) {
	if numFilters <= 0 {
		return nil, fmt.Errorf("%w: number of filters must be positive, got %d", ErrInvalidParams, numFilters)
	}
	if fftSize <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("%w: fft size and sample rate must be positive", ErrInvalidParams)
	}
	if minHz < 0 || maxHz <= minHz || maxHz > sampleRate/2 {
		return nil, fmt.Errorf("%w: frequency range [%g, %g] outside [0, %g]", ErrInvalidParams, minHz, maxHz, sampleRate/2)
	}

	toBin := func(hz float64) float64 {
		return float64(fftSize) * hz / sampleRate
	}
	toHz := func(bin float64) float64 {
		return bin * sampleRate / float64(fftSize)
	}

	type span struct{ lo, n int }
	spans := make([]span, numFilters)
	total := 0
	for idx := 1; idx <= numFilters; idx++ {
		lo := int(toBin(FilterFrequency(idx-1, numFilters, minHz, maxHz))) + 1
		hi := int(math.Ceil(toBin(FilterFrequency(idx+1, numFilters, minHz, maxHz))))
		if hi <= lo || lo < 0 || hi > fftSize/2 {
			return nil, fmt.Errorf("%w: filter %d covers bins [%d, %d), outside [0, %d) or empty; use fewer filters or a longer window",
				ErrInvalidParams, idx, lo, hi, fftSize/2)
		}
		spans[idx-1] = span{lo: lo, n: hi - lo}
		total += hi - lo
	}

	bank := &MelFilterBank{
		filters: make([]Filter, numFilters),
		weights: make([]float32, total),
		fftSize: fftSize,
	}

	offset := 0
	for i, s := range spans {
		idx := i + 1
		left := FilterFrequency(idx-1, numFilters, minHz, maxHz)
		center := FilterFrequency(idx, numFilters, minHz, maxHz)
		right := FilterFrequency(idx+1, numFilters, minHz, maxHz)

		w := bank.weights[offset : offset+s.n : offset+s.n]
		for b := range w {
			w[b] = float32(triangle(toHz(float64(s.lo+b)), left, center, right))
		}
		bank.filters[i] = Filter{LowestBin: s.lo, Weights: w}
		offset += s.n
	}

	return bank, nil
}

// Len returns the number of filters.
func (b *MelFilterBank) Len() int {
	return len(b.filters)
}

// Filter returns filter idx (1-based).
func (b *MelFilterBank) Filter(idx int) Filter {
	return b.filters[idx-1]
}

// Weight returns the weight of filter idx at bin, zero outside its support.
func (b *MelFilterBank) Weight(bin, idx int) float32 {
	if idx < 1 || idx > len(b.filters) {
		return 0
	}
	f := b.filters[idx-1]
	lo, hi := f.Bins()
	if bin < lo || bin >= hi {
		return 0
	}
	return f.Weights[bin-lo]
}

// Evaluate returns the weighted sum of power over the support of filter idx.
// power holds fftSize/2 bins.
func (b *MelFilterBank) Evaluate(power []float32, idx int) float32 {
	if idx < 1 || idx > len(b.filters) {
		return 0
	}
	f := b.filters[idx-1]
	bins := power[f.LowestBin : f.LowestBin+len(f.Weights)]

	var total float32
	for i, w := range f.Weights {
		total += bins[i] * w
	}
	return total
}
