package adc

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/itohio/gokws/pkg/config"
)

// ErrInvalidWAV is returned for files that are not PCM WAV audio.
var ErrInvalidWAV = errors.New("invalid wav file")

// replayTick is how often a realtime WAV device delivers a batch.
const replayTick = 10 * time.Millisecond

// ReadWAV decodes a PCM WAV file, mixes it down to mono, resamples it to
// rate and converts it to bits-wide codes.
func ReadWAV(fs afero.Fs, filename string, rate, bits int) ([]uint16, error) {
	f, err := fs.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav file: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWAV, filename)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode wav file: %w", err)
	}

	mono := toMono(buf)
	if buf.Format.SampleRate != rate {
		mono, err = resample(mono, buf.Format.SampleRate, rate)
		if err != nil {
			return nil, err
		}
	}

	codes := make([]uint16, len(mono))
	for i, x := range mono {
		codes[i] = ToCode(x, bits)
	}
	return codes, nil
}

// toMono averages the channels of buf into samples in [-1, 1].
func toMono(buf *audio.IntBuffer) []float64 {
	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = 16
	}
	scale := float64(int64(1) << (depth - 1))
	offset := 0.0
	if depth == 8 {
		// 8-bit PCM is unsigned
		offset = scale
	}

	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	for i := range out {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += (float64(buf.Data[i*channels+c]) - offset) / scale
		}
		out[i] = sum / float64(channels)
	}
	return out
}

func resample(in []float64, from, to int) ([]float64, error) {
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	out, err := r.Process(in)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	return out, nil
}

// WAV replays a recording as a conversion stream, optionally paced at the
// conversion rate and looped.
type WAV struct {
	stream

	codes    []uint16
	rate     int
	realtime bool
	loop     bool
	logger   *slog.Logger

	indicator bool
}

// NewWAV loads cfg.Path from fs and prepares it for replay at rate
// conversions per second.
func NewWAV(fs afero.Fs, cfg *config.WAVConfig, rate, bits int, logger *slog.Logger) (*WAV, error) {
	if bits == 0 {
		bits = DefaultBits
	}
	if logger == nil {
		logger = slog.Default()
	}

	codes, err := ReadWAV(fs, cfg.Path, rate, bits)
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: %s has no samples", ErrInvalidWAV, cfg.Path)
	}

	logger = logger.With("device", "wav", "path", cfg.Path)
	logger.Info("loaded recording", "conversions", len(codes), "duration", time.Duration(float64(len(codes))/float64(rate)*float64(time.Second)))

	return &WAV{
		stream:   newStream(),
		codes:    codes,
		rate:     rate,
		realtime: cfg.Realtime,
		loop:     cfg.Loop,
		logger:   logger,
	}, nil
}

// Len returns the number of conversions in the recording.
func (w *WAV) Len() int {
	return len(w.codes)
}

// Connect starts the replay.
func (w *WAV) Connect() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	h, ctx, err := w.start()
	if err != nil {
		return err
	}

	go w.replay(ctx.Done(), h)

	return nil
}

// Close stops the replay and waits for it to exit.
func (w *WAV) Close() error {
	w.mu.Lock()
	stopped := w.stop()
	w.mu.Unlock()

	if stopped {
		<-w.done
	}
	return nil
}

// SetIndicator records the indicator state.
func (w *WAV) SetIndicator(on bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.connected {
		return ErrNotConnected
	}
	w.indicator = on
	return nil
}

func (w *WAV) replay(done <-chan struct{}, h ConversionHandler) {
	defer w.finish()

	var tick <-chan time.Time
	batch := len(w.codes)
	if w.realtime {
		ticker := time.NewTicker(replayTick)
		defer ticker.Stop()
		tick = ticker.C
		batch = max(1, int(float64(w.rate)*replayTick.Seconds()))
	}

	pos := 0
	for {
		if tick != nil {
			select {
			case <-done:
				return
			case <-tick:
			}
		} else {
			select {
			case <-done:
				return
			default:
			}
		}

		end := min(pos+batch, len(w.codes))
		for _, c := range w.codes[pos:end] {
			h(c)
		}
		pos = end

		if pos == len(w.codes) {
			if !w.loop {
				w.logger.Info("replay finished")
				return
			}
			pos = 0
		}
	}
}
