// Package output renders recognizer results and diagnostics as text lines
// and drives the speech status indicator.
package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sink receives the recognizer's line-oriented output.
type Sink interface {
	WordLength(n int) error
	Word(label string) error
	Score(label string, cost uint64) error
	Frame(amplitude float32, cepstrum []float32) error
	Stat(s Stat) error
}

// Stat is a periodic performance snapshot. Durations are the phase times
// of the most recent frame.
type Stat struct {
	Frames     int    // Frames processed since the previous snapshot
	SampleRate uint32 // Averaged samples completed since the previous snapshot
	Copy       time.Duration
	Average    time.Duration
	Normalize  time.Duration
	Threshold  time.Duration
	FFT        time.Duration
	Magnitude  time.Duration
	Mel        time.Duration
	DCT        time.Duration
	Scale      time.Duration
	DTW        time.Duration // Time spent matching the most recent word
	Amplitude  float32
}

// Writer is a Sink writing one line per record to an io.Writer.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	buf []byte
}

var _ Sink = (*Writer)(nil)

// NewWriter creates a Sink over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (s *Writer) line(parts ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = s.buf[:0]
	for _, p := range parts {
		s.buf = append(s.buf, p...)
	}
	s.buf = append(s.buf, '\n')

	if _, err := s.w.Write(s.buf); err != nil {
		return fmt.Errorf("failed to write output line: %w", err)
	}
	return nil
}

// WordLength writes "msg:word length: <n>".
func (s *Writer) WordLength(n int) error {
	return s.line("msg:word length: ", strconv.Itoa(n))
}

// Word writes "msg:word: <label>".
func (s *Writer) Word(label string) error {
	return s.line("msg:word: ", label)
}

// Score writes "msg:dtw: <label>, <cost>".
func (s *Writer) Score(label string, cost uint64) error {
	return s.line("msg:dtw: ", label, ", ", strconv.FormatUint(cost, 10))
}

// Frame writes "mfcc:<amplitude> c1 c2 ...", skipping the zeroth coefficient.
func (s *Writer) Frame(amplitude float32, cepstrum []float32) error {
	var sb strings.Builder
	sb.WriteString(formatFloat(amplitude))
	for i := 1; i < len(cepstrum); i++ {
		sb.WriteByte(' ')
		sb.WriteString(formatFloat(cepstrum[i]))
	}
	return s.line("mfcc:", sb.String())
}

// Stat writes the "stat:" line with phase times in microseconds.
func (s *Writer) Stat(st Stat) error {
	return s.line("stat: fps:", strconv.Itoa(st.Frames),
		" samplerate:", strconv.FormatUint(uint64(st.SampleRate), 10),
		" copy:", micros(st.Copy),
		" avg:", micros(st.Average),
		" normal:", micros(st.Normalize),
		" tresh:", micros(st.Threshold),
		" fft:", micros(st.FFT),
		" mag:", micros(st.Magnitude),
		" mel:", micros(st.Mel),
		" dct:", micros(st.DCT),
		" fvscl:", micros(st.Scale),
		" dtw:", micros(st.DTW),
		" at:", formatFloat(st.Amplitude),
	)
}

func micros(d time.Duration) string {
	return strconv.FormatInt(d.Microseconds(), 10)
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', 6, 32)
}
