package mfcc

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/itohio/gokws/pkg/config"
)

var (
	// ErrInvalidParams is returned when tables cannot be built from the parameters.
	ErrInvalidParams = errors.New("invalid feature parameters")
	// ErrWindowLength is returned when a window does not match the extractor size.
	ErrWindowLength = errors.New("window length mismatch")
)

// minFilterEnergy keeps log2 finite for filters that received no energy.
const minFilterEnergy = 1e-12

// Params describes the feature pipeline.
type Params struct {
	WindowSize         int     // Samples per analysis window, a power of two
	SampleRate         float64 // Hz
	NumMelCoefficients int
	MinFrequency       float64 // Hz
	MaxFrequency       float64 // Hz
	FirstCoefficient   int     // First cepstral coefficient kept
	LastCoefficient    int     // Exclusive
	SampleScale        float32 // Divisor applied after DC removal
}

// ParamsFromConfig derives extractor parameters from the application configuration.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		WindowSize:         cfg.WindowSize(),
		SampleRate:         float64(cfg.Sampling.SampleRate),
		NumMelCoefficients: cfg.Features.NumMelCoefficients,
		MinFrequency:       cfg.Features.MinFrequency,
		MaxFrequency:       cfg.Features.MaxFrequency,
		FirstCoefficient:   cfg.Features.FirstCoefficient,
		LastCoefficient:    cfg.Features.LastCoefficient,
		SampleScale:        float32(cfg.Features.SampleScale),
	}
}

// Dim returns the feature vector dimension.
func (p Params) Dim() int {
	return p.LastCoefficient - p.FirstCoefficient
}

// Frame is the result of one Extract call. Its slices are owned by the
// Extractor and are overwritten by the next call.
type Frame struct {
	Amplitude float32   // RMS of the windowed, normalized samples
	Cepstrum  []float32 // All NumMelCoefficients cepstral coefficients
	Features  []float32 // Rescaled coefficients [FirstCoefficient, LastCoefficient)
}

// Extractor maps analysis windows to feature vectors.
type Extractor struct {
	params Params

	hann []float32
	bank *MelFilterBank
	dct  *DCT
	fft  *fourier.FFT

	normalized []float64
	spectrum   []complex128
	power      []float32
	melEnergy  []float32
	cepstrum   []float32
	features   []float32
	amplitude  float32
}

// NewExtractor builds all lookup tables and scratch buffers.
func NewExtractor(p Params) (*Extractor, error) {
	if p.SampleScale <= 0 {
		return nil, fmt.Errorf("%w: sample scale must be positive", ErrInvalidParams)
	}
	if p.FirstCoefficient < 0 || p.LastCoefficient <= p.FirstCoefficient || p.LastCoefficient > p.NumMelCoefficients {
		return nil, fmt.Errorf("%w: coefficient range [%d, %d) outside [0, %d)",
			ErrInvalidParams, p.FirstCoefficient, p.LastCoefficient, p.NumMelCoefficients)
	}

	hann, err := HannWindow(p.WindowSize)
	if err != nil {
		return nil, err
	}
	bank, err := NewMelFilterBank(p.NumMelCoefficients, p.MinFrequency, p.MaxFrequency, p.WindowSize, p.SampleRate)
	if err != nil {
		return nil, err
	}
	dct, err := NewDCT(p.NumMelCoefficients)
	if err != nil {
		return nil, err
	}

	return &Extractor{
		params:     p,
		hann:       hann,
		bank:       bank,
		dct:        dct,
		fft:        fourier.NewFFT(p.WindowSize),
		normalized: make([]float64, p.WindowSize),
		spectrum:   make([]complex128, p.WindowSize/2+1),
		power:      make([]float32, p.WindowSize/2),
		melEnergy:  make([]float32, p.NumMelCoefficients),
		cepstrum:   make([]float32, p.NumMelCoefficients),
		features:   make([]float32, p.Dim()),
	}, nil
}

// Params returns the parameters the extractor was built with.
func (e *Extractor) Params() Params {
	return e.params
}

// FilterBank returns the mel filterbank LUT.
func (e *Extractor) FilterBank() *MelFilterBank {
	return e.bank
}

// Extract runs the whole pipeline on window.
func (e *Extractor) Extract(window []uint16) (Frame, error) {
	if _, err := e.Normalize(window); err != nil {
		return Frame{}, err
	}
	e.PowerSpectrum()
	e.MelEnergies()
	e.Cepstrum()
	e.Features()
	return e.Frame(), nil
}

// Frame returns the results of the most recent pipeline run.
func (e *Extractor) Frame() Frame {
	return Frame{
		Amplitude: e.amplitude,
		Cepstrum:  e.cepstrum,
		Features:  e.features,
	}
}

// Normalize removes the window mean, applies the Hann window, scales the
// samples to roughly [-1, 1] and returns their RMS amplitude.
func (e *Extractor) Normalize(window []uint16) (float32, error) {
	mean, err := e.Mean(window)
	if err != nil {
		return 0, err
	}
	return e.Center(window, mean), nil
}

// Mean returns the arithmetic mean of window, summed in a uint64.
func (e *Extractor) Mean(window []uint16) (float32, error) {
	n := len(e.normalized)
	if len(window) != n {
		return 0, fmt.Errorf("%w: expected %d samples, got %d", ErrWindowLength, n, len(window))
	}

	var sum uint64
	for _, v := range window {
		sum += uint64(v)
	}
	return float32(sum) / float32(n), nil
}

// Center subtracts mean, applies the Hann window and the sample scale, and
// returns the RMS amplitude. window must have been accepted by Mean.
func (e *Extractor) Center(window []uint16, mean float32) float32 {
	var power float32
	for i, v := range window[:len(e.normalized)] {
		s := e.hann[i] * (float32(v) - mean) / e.params.SampleScale
		power += s * s
		e.normalized[i] = float64(s)
	}

	e.amplitude = math32.Sqrt(power / float32(len(e.normalized)))
	return e.amplitude
}

// PowerSpectrum computes |X[k]|² for the lower half of the spectrum.
func (e *Extractor) PowerSpectrum() []float32 {
	e.FFT()
	return e.Magnitude()
}

// FFT transforms the normalized window.
func (e *Extractor) FFT() {
	e.spectrum = e.fft.Coefficients(e.spectrum, e.normalized)
}

// Magnitude computes the power of the first half of the spectrum.
func (e *Extractor) Magnitude() []float32 {
	for k := range e.power {
		c := e.spectrum[k]
		e.power[k] = float32(real(c)*real(c) + imag(c)*imag(c))
	}
	return e.power
}

// MelEnergies applies the filterbank and a base-2 logarithm to the power spectrum.
func (e *Extractor) MelEnergies() []float32 {
	for idx := 1; idx <= e.bank.Len(); idx++ {
		energy := e.bank.Evaluate(e.power, idx)
		if energy < minFilterEnergy {
			energy = minFilterEnergy
		}
		e.melEnergy[idx-1] = math32.Log2(energy)
	}
	return e.melEnergy
}

// Cepstrum decorrelates the log mel energies with the DCT.
func (e *Extractor) Cepstrum() []float32 {
	e.dct.Transform(e.cepstrum, e.melEnergy)
	return e.cepstrum
}

// Features selects the configured coefficient range and rescales it to
// length ln(norm+1). A zero-norm selection yields the zero vector.
func (e *Extractor) Features() []float32 {
	ScaleFeatures(e.features, e.cepstrum[e.params.FirstCoefficient:e.params.LastCoefficient])
	return e.features
}

// ScaleFeatures writes src scaled by ln(‖src‖+1)/‖src‖ into dst.
func ScaleFeatures(dst, src []float32) {
	var norm float32
	for _, v := range src {
		norm += v * v
	}
	norm = math32.Sqrt(norm)

	if norm == 0 {
		for i := range dst[:len(src)] {
			dst[i] = 0
		}
		return
	}

	scale := math32.Log(norm+1) / norm
	for i, v := range src {
		dst[i] = v * scale
	}
}
