// Package mfcc turns analysis windows of raw ADC codes into compact
// mel-frequency cepstral feature vectors.
//
// All lookup tables (Hann window, mel filterbank, DCT) are computed once by
// their constructors and never mutated afterwards. The Extractor owns its
// tables together with the FFT plan and scratch buffers, so a steady-state
// Extract call performs no allocation.
package mfcc
