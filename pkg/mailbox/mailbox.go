// Package mailbox hands raw sample strides from the conversion callback to the
// foreground loop through a single lock-free slot.
//
// The producer side (Convert, Publish) runs in the conversion callback and never
// blocks. The consumer side (TryTake, TakeBlocking) is owned by exactly one
// foreground goroutine. A buffer published before the previous one was taken
// replaces it: the consumer only ever observes the most recently completed stride.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
)

// ErrInvalidParams is returned by New for unusable ring dimensions.
var ErrInvalidParams = errors.New("invalid mailbox parameters")

// Buffer is one ring slot holding a full stride of averaged samples.
// Samples is only written by the producer and only read by the consumer after
// the buffer was published.
type Buffer struct {
	Samples []uint16
	Seq     uint64 // Monotonic stride number, starting at 1
}

// Mailbox owns the stride ring and the single pending-buffer slot.
type Mailbox struct {
	stride int
	ratio  uint32

	// Producer state, touched only by the conversion callback.
	ring        []Buffer
	ringIdx     int
	pos         int
	accumulator uint32
	remaining   uint32
	seq         uint64

	slot      atomic.Pointer[Buffer]
	completed atomic.Uint32
	overruns  atomic.Uint64
	published atomic.Uint64
}

// New creates a mailbox with ringSize buffers of stride samples each. Every
// ratio raw conversions are averaged into one sample.
func New(stride, ratio, ringSize int) (*Mailbox, error) {
	if stride <= 0 {
		return nil, fmt.Errorf("%w: stride must be positive, got %d", ErrInvalidParams, stride)
	}
	if ratio <= 0 {
		return nil, fmt.Errorf("%w: oversample ratio must be positive, got %d", ErrInvalidParams, ratio)
	}
	if ringSize < 2 {
		return nil, fmt.Errorf("%w: ring size must be at least 2, got %d", ErrInvalidParams, ringSize)
	}

	backing := make([]uint16, stride*ringSize)
	ring := make([]Buffer, ringSize)
	for i := range ring {
		ring[i].Samples = backing[i*stride : (i+1)*stride : (i+1)*stride]
	}

	return &Mailbox{
		stride:    stride,
		ratio:     uint32(ratio),
		ring:      ring,
		remaining: uint32(ratio),
	}, nil
}

// Stride returns the number of samples in a published buffer.
func (m *Mailbox) Stride() int {
	return m.stride
}

// Convert accepts one raw conversion. It must only be called from the single
// producer context.
func (m *Mailbox) Convert(raw uint16) {
	m.accumulator += uint32(raw)
	m.remaining--
	if m.remaining != 0 {
		return
	}

	m.remaining = m.ratio
	buf := &m.ring[m.ringIdx]
	buf.Samples[m.pos] = uint16(m.accumulator / m.ratio)
	m.accumulator = 0
	m.pos++

	if m.pos == m.stride {
		m.pos = 0
		m.seq++
		buf.Seq = m.seq
		m.Publish(buf)
		m.ringIdx++
		if m.ringIdx == len(m.ring) {
			m.ringIdx = 0
		}
	}

	m.completed.Add(1)
}

// Publish makes b the pending buffer, replacing any buffer that was not taken yet.
func (m *Mailbox) Publish(b *Buffer) {
	if prev := m.slot.Swap(b); prev != nil {
		m.overruns.Add(1)
	}
	m.published.Add(1)
}

// TryTake takes the pending buffer and clears the slot. It returns nil when no
// buffer is pending.
func (m *Mailbox) TryTake() *Buffer {
	return m.slot.Swap(nil)
}

// TakeBlocking spins until a buffer is pending or ctx is done.
func (m *Mailbox) TakeBlocking(ctx context.Context) (*Buffer, error) {
	for {
		if b := m.TryTake(); b != nil {
			return b, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		runtime.Gosched()
	}
}

// TakeCompleted returns the number of averaged samples produced since the
// previous call and resets the counter.
func (m *Mailbox) TakeCompleted() uint32 {
	return m.completed.Swap(0)
}

// Overruns returns the number of published buffers that were replaced before
// the consumer took them.
func (m *Mailbox) Overruns() uint64 {
	return m.overruns.Load()
}

// Published returns the total number of published buffers.
func (m *Mailbox) Published() uint64 {
	return m.published.Load()
}
