//go:build portaudio

package adc

import (
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/itohio/gokws/pkg/config"
)

var _ Device = (*PortAudio)(nil)

// PortAudio captures the default input device and resamples it to the
// conversion rate.
type PortAudio struct {
	stream

	cfg    config.MicrophoneConfig
	rate   int
	bits   int
	logger *slog.Logger

	pa        *portaudio.Stream
	indicator bool
}

// NewPortAudio creates a live microphone device producing rate conversions
// per second.
func NewPortAudio(cfg *config.MicrophoneConfig, rate, bits int, logger *slog.Logger) *PortAudio {
	if bits == 0 {
		bits = DefaultBits
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PortAudio{
		stream: newStream(),
		cfg:    *cfg,
		rate:   rate,
		bits:   bits,
		logger: logger.With("device", "portaudio"),
	}
}

// Connect opens the default input stream and starts capturing.
func (p *PortAudio) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		return ErrAlreadyConnected
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(p.cfg.SampleRate),
		OutputRate: float64(p.rate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return fmt.Errorf("failed to create resampler: %w", err)
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	buffer := make([]int16, p.cfg.FramesPerBuffer)
	st, err := portaudio.OpenDefaultStream(1, 0, float64(p.cfg.SampleRate), len(buffer), buffer)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open audio stream: %w", err)
	}
	if err := st.Start(); err != nil {
		st.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	h, ctx, err := p.start()
	if err != nil {
		st.Stop()
		st.Close()
		portaudio.Terminate()
		return err
	}
	p.pa = st

	go p.capture(ctx.Done(), st, buffer, rs, h)

	return nil
}

// Close stops the capture and releases PortAudio.
func (p *PortAudio) Close() error {
	p.mu.Lock()
	stopped := p.stop()
	st := p.pa
	p.pa = nil
	p.mu.Unlock()

	if !stopped {
		return nil
	}
	<-p.done

	if st != nil {
		if err := st.Stop(); err != nil {
			p.logger.Warn("error stopping audio stream", "error", err)
		}
		if err := st.Close(); err != nil {
			p.logger.Warn("error closing audio stream", "error", err)
		}
	}
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// SetIndicator logs the indicator state.
func (p *PortAudio) SetIndicator(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return ErrNotConnected
	}
	if p.indicator != on {
		p.logger.Debug("indicator", "on", on)
	}
	p.indicator = on
	return nil
}

func (p *PortAudio) capture(done <-chan struct{}, st *portaudio.Stream, buffer []int16, rs resampling.Resampler, h ConversionHandler) {
	defer p.finish()

	in := make([]float64, len(buffer))
	for {
		select {
		case <-done:
			return
		default:
		}

		if err := st.Read(); err != nil {
			p.logger.Warn("error reading audio stream", "error", err)
			continue
		}

		for i, v := range buffer {
			in[i] = float64(v) / 32768
		}
		out, err := rs.Process(in)
		if err != nil {
			p.logger.Error("resample error", "error", err)
			return
		}
		for _, x := range out {
			h(ToCode(x, p.bits))
		}
	}
}
