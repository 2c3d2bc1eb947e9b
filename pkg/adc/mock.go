package adc

import (
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/itohio/gokws/pkg/config"
)

// Mock simulates a microphone: periodic tone bursts ("words") over a low
// noise floor, delivered at the conversion rate in batches once per tick.
type Mock struct {
	stream

	cfg    config.MockConfig
	rate   int
	bits   int
	logger *slog.Logger

	indicator bool

	// Synthesis state, owned by the producer goroutine
	n   int64
	rng *rand.Rand
}

// NewMock creates a mocked device producing rate conversions per second.
func NewMock(cfg *config.MockConfig, rate, bits int, logger *slog.Logger) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}
	if bits == 0 {
		bits = DefaultBits
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Mock{
		stream: newStream(),
		cfg:    *cfg,
		rate:   rate,
		bits:   bits,
		logger: logger.With("device", "mock"),
		rng:    rand.New(rand.NewSource(1)),
	}
	if m.cfg.Tick <= 0 {
		m.cfg.Tick = 10 * time.Millisecond
	}
	return m
}

// Connect starts generating conversions.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ctx, err := m.start()
	if err != nil {
		return err
	}

	go m.generate(ctx.Done(), h)

	return nil
}

// Close stops the generator and waits for it to exit.
func (m *Mock) Close() error {
	m.mu.Lock()
	stopped := m.stop()
	m.mu.Unlock()

	if stopped {
		<-m.done
	}
	return nil
}

// SetIndicator records the indicator state.
func (m *Mock) SetIndicator(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	if m.indicator != on {
		m.logger.Debug("indicator", "on", on)
	}
	m.indicator = on
	return nil
}

// Indicator returns the last indicator state.
func (m *Mock) Indicator() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.indicator
}

func (m *Mock) generate(done <-chan struct{}, h ConversionHandler) {
	defer m.finish()

	ticker := time.NewTicker(m.cfg.Tick)
	defer ticker.Stop()

	perTick := int(float64(m.rate) * m.cfg.Tick.Seconds())
	if perTick < 1 {
		perTick = 1
	}

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for i := 0; i < perTick; i++ {
				h(m.next())
			}
		}
	}
}

// next synthesizes the following conversion.
func (m *Mock) next() uint16 {
	t := float64(m.n) / float64(m.rate)
	m.n++

	x := m.cfg.NoiseLevel * (2*m.rng.Float64() - 1)
	if m.inWord(t) {
		x += m.cfg.ToneAmplitude * math.Sin(2*math.Pi*m.cfg.ToneFrequency*t)
	}
	return ToCode(x, m.bits)
}

// inWord reports whether a tone burst is playing at t seconds. Bursts start
// one period after startup so the recognizer sees silence first.
func (m *Mock) inWord(t float64) bool {
	period := m.cfg.WordPeriod.Seconds()
	if period <= 0 || t < period {
		return false
	}
	return math.Mod(t, period) < m.cfg.WordDuration.Seconds()
}
