package mailbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name                   string
		stride, ratio, ringLen int
	}{
		{name: "zero stride", stride: 0, ratio: 1, ringLen: 3},
		{name: "zero ratio", stride: 4, ratio: 0, ringLen: 3},
		{name: "single buffer ring", stride: 4, ratio: 1, ringLen: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.stride, tt.ratio, tt.ringLen)
			assert.Nil(t, m)
			assert.True(t, errors.Is(err, ErrInvalidParams))
		})
	}
}

func TestPublish_LatestWins(t *testing.T) {
	m, err := New(4, 1, 3)
	require.NoError(t, err)

	b1 := &Buffer{Samples: []uint16{1, 1, 1, 1}, Seq: 1}
	b2 := &Buffer{Samples: []uint16{2, 2, 2, 2}, Seq: 2}

	m.Publish(b1)
	m.Publish(b2)

	got := m.TryTake()
	require.NotNil(t, got)
	assert.Same(t, b2, got)
	assert.Nil(t, m.TryTake())
	assert.Equal(t, uint64(1), m.Overruns())
	assert.Equal(t, uint64(2), m.Published())
}

func TestTryTake_Empty(t *testing.T) {
	m, err := New(4, 1, 3)
	require.NoError(t, err)
	assert.Nil(t, m.TryTake())
}

func TestConvert_Oversampling(t *testing.T) {
	m, err := New(4, 4, 3)
	require.NoError(t, err)

	// Each group of four conversions averages to 10, 20, 30, 40.
	groups := [][]uint16{
		{8, 12, 9, 11},
		{20, 20, 20, 20},
		{0, 60, 30, 30},
		{40, 41, 39, 40},
	}
	for gi, group := range groups {
		for _, raw := range group {
			m.Convert(raw)
		}
		if gi < len(groups)-1 {
			assert.Nil(t, m.TryTake(), "stride must not publish before it is full")
		}
	}

	b := m.TryTake()
	require.NotNil(t, b)
	assert.Equal(t, []uint16{10, 20, 30, 40}, b.Samples)
	assert.Equal(t, uint64(1), b.Seq)
	assert.Equal(t, uint32(4), m.TakeCompleted())
	assert.Equal(t, uint32(0), m.TakeCompleted(), "counter is cleared on read")
}

func TestConvert_AveragingTruncates(t *testing.T) {
	m, err := New(1, 3, 2)
	require.NoError(t, err)

	m.Convert(1)
	m.Convert(1)
	m.Convert(2)

	b := m.TryTake()
	require.NotNil(t, b)
	assert.Equal(t, uint16(1), b.Samples[0])
}

func TestConvert_RingRotation(t *testing.T) {
	m, err := New(2, 1, 3)
	require.NoError(t, err)

	var seen []*Buffer
	for i := 0; i < 4; i++ {
		m.Convert(uint16(i))
		m.Convert(uint16(i))
		b := m.TryTake()
		require.NotNil(t, b)
		assert.Equal(t, []uint16{uint16(i), uint16(i)}, b.Samples)
		seen = append(seen, b)
	}

	// The fourth stride reuses the first ring slot.
	assert.Same(t, seen[0], seen[3])
	assert.NotSame(t, seen[0], seen[1])
	assert.NotSame(t, seen[1], seen[2])
	assert.Equal(t, uint64(4), seen[3].Seq)
	assert.Equal(t, uint64(0), m.Overruns())
}

func TestConvert_DropsStaleStrides(t *testing.T) {
	m, err := New(2, 1, 3)
	require.NoError(t, err)

	for i := 0; i < 2*2; i++ {
		m.Convert(uint16(i))
	}

	b := m.TryTake()
	require.NotNil(t, b)
	assert.Equal(t, []uint16{2, 3}, b.Samples)
	assert.Equal(t, uint64(2), b.Seq)
	assert.Equal(t, uint64(1), m.Overruns())
	assert.Nil(t, m.TryTake())
}

func TestTakeBlocking_ReturnsPublished(t *testing.T) {
	m, err := New(2, 1, 3)
	require.NoError(t, err)

	done := make(chan *Buffer)
	go func() {
		b, err := m.TakeBlocking(context.Background())
		assert.NoError(t, err)
		done <- b
	}()

	want := &Buffer{Samples: []uint16{7, 8}, Seq: 1}
	m.Publish(want)

	select {
	case got := <-done:
		assert.Same(t, want, got)
	case <-time.After(5 * time.Second):
		t.Fatal("TakeBlocking did not return a published buffer")
	}
}

func TestTakeBlocking_Cancelled(t *testing.T) {
	m, err := New(2, 1, 3)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	b, err := m.TakeBlocking(ctx)
	assert.Nil(t, b)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

// TestProducerConsumer runs the conversion callback in its own goroutine and
// checks the consumer sees every stride in order when it keeps pace.
func TestProducerConsumer(t *testing.T) {
	const strides = 50
	m, err := New(8, 2, 3)
	require.NoError(t, err)

	ack := make(chan struct{})
	go func() {
		for s := 0; s < strides; s++ {
			for i := 0; i < 8*2; i++ {
				m.Convert(uint16(s))
			}
			<-ack
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for s := 0; s < strides; s++ {
		b, err := m.TakeBlocking(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(s+1), b.Seq)
		for _, v := range b.Samples {
			assert.Equal(t, uint16(s), v)
		}
		ack <- struct{}{}
	}

	assert.Equal(t, uint64(0), m.Overruns())
	assert.Equal(t, uint32(strides*8), m.TakeCompleted())
}
