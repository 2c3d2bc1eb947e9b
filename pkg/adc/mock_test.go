package adc

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gokws/pkg/config"
)

func testMockConfig() *config.MockConfig {
	return &config.MockConfig{
		ToneFrequency: 500,
		ToneAmplitude: 0.5,
		NoiseLevel:    0.001,
		WordDuration:  100 * time.Millisecond,
		WordPeriod:    200 * time.Millisecond,
		Tick:          5 * time.Millisecond,
	}
}

func TestToCode(t *testing.T) {
	assert.Equal(t, uint16(2048), ToCode(0, 12))
	assert.Equal(t, uint16(0), ToCode(-1, 12))
	assert.Equal(t, uint16(0), ToCode(-3, 12))
	assert.Equal(t, uint16(4095), ToCode(1, 12))
	assert.Equal(t, uint16(4095), ToCode(2, 12))
	assert.Equal(t, uint16(3072), ToCode(0.5, 12))
	assert.Equal(t, uint16(65535), FullScale(16))
}

func TestMock_Synthesis(t *testing.T) {
	rate := 8000
	m := NewMock(testMockConfig(), rate, 12, nil)

	// First period is silence, the second starts with a burst.
	var quietPeak, burstPeak int
	for i := 0; i < rate/5; i++ {
		d := int(m.next()) - 2048
		quietPeak = max(quietPeak, d, -d)
	}
	for i := 0; i < rate/10; i++ {
		d := int(m.next()) - 2048
		burstPeak = max(burstPeak, d, -d)
	}

	assert.LessOrEqual(t, quietPeak, 3)
	assert.Greater(t, burstPeak, 900)
}

func TestMock_DeliversConversions(t *testing.T) {
	m := NewMock(testMockConfig(), 8000, 12, nil)

	var count atomic.Int64
	m.OnConversion(func(uint16) { count.Add(1) })
	require.NoError(t, m.Connect())
	assert.True(t, m.IsConnected())

	assert.Eventually(t, func() bool { return count.Load() >= 400 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, m.SetIndicator(true))
	assert.True(t, m.Indicator())

	require.NoError(t, m.Close())
	assert.False(t, m.IsConnected())
}

func TestMock_ConnectTwice(t *testing.T) {
	m := NewMock(testMockConfig(), 8000, 12, nil)
	require.NoError(t, m.Connect())
	defer m.Close()

	assert.True(t, errors.Is(m.Connect(), ErrAlreadyConnected))
}

func TestMock_NotConnected(t *testing.T) {
	m := NewMock(nil, 8000, 0, nil)
	assert.True(t, errors.Is(m.SetIndicator(true), ErrNotConnected))
	assert.NoError(t, m.Close())
}

// TestMock_GracefulShutdown tests that Done is closed and no conversions
// arrive after Close returns.
func TestMock_GracefulShutdown(t *testing.T) {
	m := NewMock(testMockConfig(), 8000, 12, nil)

	var count atomic.Int64
	m.OnConversion(func(uint16) { count.Add(1) })
	require.NoError(t, m.Connect())

	assert.Eventually(t, func() bool { return count.Load() > 0 }, 2*time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Close()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return within timeout")
	}

	select {
	case <-m.Done():
	default:
		t.Fatal("Done should be closed after Close")
	}

	after := count.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, count.Load(), "no conversions after Close")

	assert.Error(t, m.Connect(), "a closed device cannot be reconnected")
}
