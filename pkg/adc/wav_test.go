package adc

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gokws/pkg/config"
)

func writeWAV(t *testing.T, fs afero.Fs, name string, rate, channels int, data []int) {
	t.Helper()

	f, err := fs.Create(name)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func TestReadWAV_Mono(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeWAV(t, fs, "/tone.wav", 8000, 1, []int{0, 16384, -16384, 32767, -32768})

	codes, err := ReadWAV(fs, "/tone.wav", 8000, 12)
	require.NoError(t, err)
	assert.Equal(t, []uint16{2048, 3072, 1024, 4095, 0}, codes)
}

func TestReadWAV_StereoMixdown(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeWAV(t, fs, "/stereo.wav", 8000, 2, []int{16384, -16384, 16384, 16384})

	codes, err := ReadWAV(fs, "/stereo.wav", 8000, 12)
	require.NoError(t, err)
	assert.Equal(t, []uint16{2048, 3072}, codes)
}

func TestReadWAV_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := ReadWAV(fs, "/missing.wav", 8000, 12)
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/junk.wav", []byte("definitely not audio"), 0644))
	_, err = ReadWAV(fs, "/junk.wav", 8000, 12)
	assert.True(t, errors.Is(err, ErrInvalidWAV))
}

func TestWAV_Replay(t *testing.T) {
	fs := afero.NewMemMapFs()
	data := make([]int, 1000)
	for i := range data {
		data[i] = int(10000 * math.Sin(float64(i)/10))
	}
	writeWAV(t, fs, "/word.wav", 16000, 1, data)

	dev, err := NewWAV(fs, &config.WAVConfig{Path: "/word.wav"}, 16000, 12, nil)
	require.NoError(t, err)
	assert.Equal(t, 1000, dev.Len())

	var (
		mu  sync.Mutex
		got []uint16
	)
	dev.OnConversion(func(raw uint16) {
		mu.Lock()
		got = append(got, raw)
		mu.Unlock()
	})
	require.NoError(t, dev.Connect())

	select {
	case <-dev.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("replay did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1000)
	assert.Equal(t, uint16(2048), got[0])
	assert.False(t, dev.IsConnected())
	assert.NoError(t, dev.Close())
}

func TestWAV_RealtimeLoop(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeWAV(t, fs, "/short.wav", 8000, 1, make([]int, 100))

	dev, err := NewWAV(fs, &config.WAVConfig{Path: "/short.wav", Realtime: true, Loop: true}, 8000, 12, nil)
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		count int
	)
	dev.OnConversion(func(uint16) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, dev.Connect())

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count > 300
	}, 2*time.Second, 10*time.Millisecond, "a looped recording keeps playing")

	require.NoError(t, dev.SetIndicator(true))
	require.NoError(t, dev.Close())
	<-dev.Done()
}

func TestNewWAV_EmptyRecording(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeWAV(t, fs, "/empty.wav", 8000, 1, nil)

	dev, err := NewWAV(fs, &config.WAVConfig{Path: "/empty.wav", Loop: true}, 8000, 12, nil)
	assert.Error(t, err, "a looped empty recording would never yield a conversion")
	assert.Nil(t, dev)
}
