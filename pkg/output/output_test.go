package output

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_Lines(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WordLength(10))
	require.NoError(t, w.Word("lights"))
	require.NoError(t, w.Score("lights", 12345))
	require.NoError(t, w.Score("music", 99999))

	assert.Equal(t, "msg:word length: 10\n"+
		"msg:word: lights\n"+
		"msg:dtw: lights, 12345\n"+
		"msg:dtw: music, 99999\n", buf.String())
}

func TestWriter_Frame(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.Frame(0.25, []float32{-40, 1.5, -2, 0}))
	assert.Equal(t, "mfcc:0.25 1.5 -2 0\n", buf.String())
}

func TestWriter_Stat(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.Stat(Stat{
		Frames:     50,
		SampleRate: 12800,
		Copy:       3 * time.Microsecond,
		Average:    5 * time.Microsecond,
		Normalize:  40 * time.Microsecond,
		FFT:        120 * time.Microsecond,
		Magnitude:  10 * time.Microsecond,
		Mel:        30 * time.Microsecond,
		DCT:        20 * time.Microsecond,
		Scale:      2 * time.Microsecond,
		DTW:        1500 * time.Microsecond,
		Amplitude:  0.0125,
	}))

	assert.Equal(t, "stat: fps:50 samplerate:12800 copy:3 avg:5 normal:40 tresh:0 fft:120 mag:10 mel:30 dct:20 fvscl:2 dtw:1500 at:0.0125\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("port closed")
}

func TestWriter_Error(t *testing.T) {
	w := NewWriter(failingWriter{})
	err := w.Word("x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port closed")
}

func TestLogIndicator(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ind := NewLogIndicator(logger)

	require.NoError(t, ind.Set())
	require.NoError(t, ind.Set())
	assert.True(t, ind.On())
	require.NoError(t, ind.Reset())
	assert.False(t, ind.On())

	// Only transitions are logged.
	assert.Equal(t, 2, strings.Count(buf.String(), "msg=indicator"))
}

type recordingSwitch struct {
	calls []bool
	err   error
}

func (r *recordingSwitch) SetIndicator(on bool) error {
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, on)
	return nil
}

func TestDeviceIndicator(t *testing.T) {
	sw := &recordingSwitch{}
	ind := NewDeviceIndicator(sw)

	require.NoError(t, ind.Reset())
	require.NoError(t, ind.Set())
	require.NoError(t, ind.Set())
	require.NoError(t, ind.Reset())
	require.NoError(t, ind.Reset())

	assert.Equal(t, []bool{false, true, false}, sw.calls)
}

func TestDeviceIndicator_RetriesAfterError(t *testing.T) {
	sw := &recordingSwitch{err: errors.New("not connected")}
	ind := NewDeviceIndicator(sw)

	assert.Error(t, ind.Set())
	sw.err = nil
	require.NoError(t, ind.Set())
	assert.Equal(t, []bool{true}, sw.calls)
}

func TestBlink(t *testing.T) {
	sw := &recordingSwitch{}
	ind := NewDeviceIndicator(sw)

	require.NoError(t, Blink(context.Background(), ind, 3, 2*time.Millisecond))
	assert.Equal(t, []bool{true, false, true, false, true, false}, sw.calls)
}

func TestBlink_Cancel(t *testing.T) {
	sw := &recordingSwitch{}
	ind := NewDeviceIndicator(sw)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Blink(ctx, ind, 10, time.Second)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, []bool{true, false}, sw.calls, "left off after cancellation")
}
