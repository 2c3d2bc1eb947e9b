// Package adc provides sampling drivers that deliver raw microphone
// conversions one at a time, the way an ADC end-of-conversion interrupt
// would.
package adc

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrAlreadyConnected is returned by Connect on a running device.
	ErrAlreadyConnected = errors.New("already connected")
	// ErrNotConnected is returned by operations that need a running device.
	ErrNotConnected = errors.New("not connected")
)

// ConversionHandler receives one raw conversion. It runs on the device's
// producer goroutine and must not block.
type ConversionHandler func(raw uint16)

// Device is a source of raw conversions with a status indicator output.
type Device interface {
	Connect() error
	Close() error
	IsConnected() bool
	SetIndicator(on bool) error
	// OnConversion registers the handler. It must be called before Connect.
	OnConversion(h ConversionHandler)
	// Done is closed when the device stops producing conversions.
	Done() <-chan struct{}
}

// Ensure implementations satisfy Device.
var (
	_ Device = (*Serial)(nil)
	_ Device = (*Mock)(nil)
	_ Device = (*WAV)(nil)
)

// FullScale returns the largest code of a bits-wide converter.
func FullScale(bits int) uint16 {
	return uint16(1<<bits - 1)
}

// ToCode maps x in [-1, 1] to an unsigned code centered at mid-scale,
// clamping values outside the range.
func ToCode(x float64, bits int) uint16 {
	mid := float64(int(1) << (bits - 1))
	v := mid + x*mid
	if v < 0 {
		return 0
	}
	if fs := float64(FullScale(bits)); v > fs {
		return uint16(fs)
	}
	return uint16(v)
}

// stream holds the connection state shared by all devices.
type stream struct {
	mu        sync.RWMutex
	handler   ConversionHandler
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
}

func newStream() stream {
	return stream{done: make(chan struct{})}
}

// OnConversion registers the conversion handler.
func (s *stream) OnConversion(h ConversionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// Done is closed when the producer goroutine exits.
func (s *stream) Done() <-chan struct{} {
	return s.done
}

// IsConnected returns whether the device is currently connected.
func (s *stream) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// start marks the stream connected and returns the handler and context
// for the producer. The caller holds s.mu.
func (s *stream) start() (ConversionHandler, context.Context, error) {
	if s.connected {
		return nil, nil, ErrAlreadyConnected
	}
	select {
	case <-s.done:
		return nil, nil, errors.New("device cannot be reconnected after close")
	default:
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.connected = true

	h := s.handler
	if h == nil {
		h = func(uint16) {}
	}
	return h, s.ctx, nil
}

// stop cancels the producer. The caller holds s.mu.
func (s *stream) stop() bool {
	if !s.connected {
		return false
	}
	s.cancel()
	s.connected = false
	return true
}

// finish is deferred by producer goroutines.
func (s *stream) finish() {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	close(s.done)
}
