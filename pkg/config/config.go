package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate when the configuration cannot drive the pipeline.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the application configuration.
type Config struct {
	Sampling   SamplingConfig   `yaml:"sampling"`
	Features   FeaturesConfig   `yaml:"features"`
	Segmenter  SegmenterConfig  `yaml:"segmenter"`
	Matcher    MatcherConfig    `yaml:"matcher"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
	Output     OutputConfig     `yaml:"output"`
	Serial     SerialConfig     `yaml:"serial"`
	Mock       MockConfig       `yaml:"mock"`
	WAV        WAVConfig        `yaml:"wav"`
	Microphone MicrophoneConfig `yaml:"microphone"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SamplingConfig describes how raw conversions become analysis strides.
type SamplingConfig struct {
	SampleRate      int `yaml:"sample_rate"`      // Averaged sample rate (Hz)
	OversampleRatio int `yaml:"oversample_ratio"` // Raw conversions averaged per sample
	WindowStride    int `yaml:"window_stride"`    // Samples per stride, window is twice this
	RingSize        int `yaml:"ring_size"`        // Number of stride buffers owned by the mailbox
	ADCBits         int `yaml:"adc_bits"`         // Resolution of the raw conversions
}

// FeaturesConfig contains the MFCC parameters.
type FeaturesConfig struct {
	NumMelCoefficients int     `yaml:"num_mel_coefficients"`
	MinFrequency       float64 `yaml:"min_frequency"` // Hz
	MaxFrequency       float64 `yaml:"max_frequency"` // Hz
	FirstCoefficient   int     `yaml:"first_coefficient"`
	LastCoefficient    int     `yaml:"last_coefficient"` // Exclusive
	SampleScale        float64 `yaml:"sample_scale"`     // Divisor bringing DC-free codes to roughly [-1, 1]
}

// SegmenterConfig contains the word boundary parameters.
type SegmenterConfig struct {
	AmplitudeThreshold float64 `yaml:"amplitude_threshold"`
	MaxQuietGap        int     `yaml:"max_quiet_gap"` // Frames of silence closing a word
	MaxWords           int     `yaml:"max_words"`     // Feature vectors stored per word
}

// MatcherConfig contains the DTW parameters.
type MatcherConfig struct {
	MaxSize       int     `yaml:"max_size"`       // Longest sequence the cost matrix accepts
	DistanceScale float64 `yaml:"distance_scale"` // Fixed-point scale of the distance metric
}

// VocabularyConfig points at the template file.
type VocabularyConfig struct {
	Path string `yaml:"path"`
}

// OutputConfig controls the diagnostic text lines.
type OutputConfig struct {
	StatInterval  time.Duration `yaml:"stat_interval"`
	FrameFeatures bool          `yaml:"frame_features"` // Emit an "mfcc:" line per frame
	StartupBlinks int           `yaml:"startup_blinks"`
	BlinkPeriod   time.Duration `yaml:"blink_period"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
	// The firmware averages on chip, so the host normally averages nothing.
	// Replaces sampling.oversample_ratio for the serial device.
	OversampleRatio int `yaml:"oversample_ratio"`
}

// MockConfig contains the synthetic microphone configuration.
type MockConfig struct {
	ToneFrequency float64       `yaml:"tone_frequency"` // Hz
	ToneAmplitude float64       `yaml:"tone_amplitude"` // Fraction of full scale
	NoiseLevel    float64       `yaml:"noise_level"`    // Fraction of full scale
	WordDuration  time.Duration `yaml:"word_duration"`
	WordPeriod    time.Duration `yaml:"word_period"`
	Tick          time.Duration `yaml:"tick"` // Conversions are delivered in batches once per tick
}

// WAVConfig contains the file replay configuration.
type WAVConfig struct {
	Path     string `yaml:"path"`
	Realtime bool   `yaml:"realtime"` // Pace conversions at the conversion rate
	Loop     bool   `yaml:"loop"`
}

// MicrophoneConfig contains the live capture configuration.
type MicrophoneConfig struct {
	SampleRate      int `yaml:"sample_rate"` // Capture rate, resampled to the conversion rate
	FramesPerBuffer int `yaml:"frames_per_buffer"`
}

// MetricsConfig contains the Prometheus endpoint configuration.
type MetricsConfig struct {
	Address string `yaml:"address"` // Empty disables the endpoint
}

// LoggingConfig contains logger configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Sampling: SamplingConfig{
			SampleRate:      12800,
			OversampleRatio: 16,
			WindowStride:    256,
			RingSize:        3,
			ADCBits:         12,
		},
		Features: FeaturesConfig{
			NumMelCoefficients: 16,
			MinFrequency:       0,
			MaxFrequency:       3000,
			FirstCoefficient:   2,
			LastCoefficient:    9,
			SampleScale:        512,
		},
		Segmenter: SegmenterConfig{
			AmplitudeThreshold: 0.01,
			MaxQuietGap:        5,
			MaxWords:           64,
		},
		Matcher: MatcherConfig{
			MaxSize:       64,
			DistanceScale: 65536,
		},
		Vocabulary: VocabularyConfig{
			Path: "vocabulary.yaml",
		},
		Output: OutputConfig{
			StatInterval:  time.Second,
			FrameFeatures: false,
			StartupBlinks: 10,
			BlinkPeriod:   100 * time.Millisecond,
		},
		Serial: SerialConfig{
			Port:            "/dev/ttyACM0",
			BaudRate:        1000000,
			OversampleRatio: 1,
		},
		Mock: MockConfig{
			ToneFrequency: 440,
			ToneAmplitude: 0.3,
			NoiseLevel:    0.002,
			WordDuration:  400 * time.Millisecond,
			WordPeriod:    2 * time.Second,
			Tick:          10 * time.Millisecond,
		},
		WAV: WAVConfig{
			Realtime: true,
		},
		Microphone: MicrophoneConfig{
			SampleRate:      48000,
			FramesPerBuffer: 1024,
		},
		Metrics: MetricsConfig{
			Address: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	return LoadFs(afero.NewOsFs(), filename)
}

// LoadFs is Load on fs.
func LoadFs(fs afero.Fs, filename string) (*Config, error) {
	cfg := Default()

	data, err := afero.ReadFile(fs, filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	return c.SaveFs(afero.NewOsFs(), filename)
}

// SaveFs is Save on fs.
func (c *Config) SaveFs(fs afero.Fs, filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := afero.WriteFile(fs, filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// WindowSize returns the analysis window length (two strides).
func (c *Config) WindowSize() int {
	return 2 * c.Sampling.WindowStride
}

// FeatureDim returns the number of coefficients kept in a feature vector.
func (c *Config) FeatureDim() int {
	return c.Features.LastCoefficient - c.Features.FirstCoefficient
}

// ConversionRate returns the raw conversion rate the sampling driver must deliver.
func (c *Config) ConversionRate() int {
	return c.Sampling.SampleRate * c.Sampling.OversampleRatio
}

// Validate checks the parameter relationships the pipeline depends on.
func (c *Config) Validate() error {
	s := c.Sampling
	if s.WindowStride <= 0 || s.WindowStride&(s.WindowStride-1) != 0 {
		return fmt.Errorf("%w: window_stride must be a positive power of two, got %d", ErrInvalid, s.WindowStride)
	}
	if s.OversampleRatio <= 0 {
		return fmt.Errorf("%w: oversample_ratio must be positive, got %d", ErrInvalid, s.OversampleRatio)
	}
	if s.RingSize < 2 {
		return fmt.Errorf("%w: ring_size must be at least 2, got %d", ErrInvalid, s.RingSize)
	}
	if s.SampleRate <= 0 {
		return fmt.Errorf("%w: sample_rate must be positive, got %d", ErrInvalid, s.SampleRate)
	}
	if s.ADCBits <= 0 || s.ADCBits > 16 {
		return fmt.Errorf("%w: adc_bits must be within [1, 16], got %d", ErrInvalid, s.ADCBits)
	}
	if c.Serial.OversampleRatio <= 0 {
		return fmt.Errorf("%w: serial oversample_ratio must be positive, got %d", ErrInvalid, c.Serial.OversampleRatio)
	}

	f := c.Features
	if f.MaxFrequency <= f.MinFrequency || f.MaxFrequency > float64(s.SampleRate)/2 {
		return fmt.Errorf("%w: frequency range [%g, %g] does not fit below Nyquist", ErrInvalid, f.MinFrequency, f.MaxFrequency)
	}
	if f.FirstCoefficient < 0 || f.LastCoefficient <= f.FirstCoefficient || f.LastCoefficient > f.NumMelCoefficients {
		return fmt.Errorf("%w: coefficient range [%d, %d) outside [0, %d)", ErrInvalid, f.FirstCoefficient, f.LastCoefficient, f.NumMelCoefficients)
	}

	g := c.Segmenter
	if g.MaxQuietGap <= 0 || g.MaxWords <= 0 {
		return fmt.Errorf("%w: max_quiet_gap and max_words must be positive", ErrInvalid)
	}
	if c.Matcher.MaxSize < g.MaxWords {
		return fmt.Errorf("%w: matcher max_size %d is smaller than max_words %d", ErrInvalid, c.Matcher.MaxSize, g.MaxWords)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Sampling.SampleRate == 0 {
		c.Sampling.SampleRate = def.Sampling.SampleRate
	}
	if c.Sampling.OversampleRatio == 0 {
		c.Sampling.OversampleRatio = def.Sampling.OversampleRatio
	}
	if c.Sampling.WindowStride == 0 {
		c.Sampling.WindowStride = def.Sampling.WindowStride
	}
	if c.Sampling.RingSize == 0 {
		c.Sampling.RingSize = def.Sampling.RingSize
	}
	if c.Sampling.ADCBits == 0 {
		c.Sampling.ADCBits = def.Sampling.ADCBits
	}

	if c.Features.NumMelCoefficients == 0 {
		c.Features.NumMelCoefficients = def.Features.NumMelCoefficients
	}
	if c.Features.MaxFrequency == 0 {
		c.Features.MaxFrequency = def.Features.MaxFrequency
	}
	if c.Features.LastCoefficient == 0 {
		c.Features.FirstCoefficient = def.Features.FirstCoefficient
		c.Features.LastCoefficient = def.Features.LastCoefficient
	}
	if c.Features.SampleScale == 0 {
		c.Features.SampleScale = def.Features.SampleScale
	}

	if c.Segmenter.AmplitudeThreshold == 0 {
		c.Segmenter.AmplitudeThreshold = def.Segmenter.AmplitudeThreshold
	}
	if c.Segmenter.MaxQuietGap == 0 {
		c.Segmenter.MaxQuietGap = def.Segmenter.MaxQuietGap
	}
	if c.Segmenter.MaxWords == 0 {
		c.Segmenter.MaxWords = def.Segmenter.MaxWords
	}

	if c.Matcher.MaxSize == 0 {
		c.Matcher.MaxSize = def.Matcher.MaxSize
	}
	if c.Matcher.DistanceScale == 0 {
		c.Matcher.DistanceScale = def.Matcher.DistanceScale
	}

	if c.Vocabulary.Path == "" {
		c.Vocabulary.Path = def.Vocabulary.Path
	}

	if c.Output.StatInterval == 0 {
		c.Output.StatInterval = def.Output.StatInterval
	}
	if c.Output.BlinkPeriod == 0 {
		c.Output.BlinkPeriod = def.Output.BlinkPeriod
	}

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Serial.OversampleRatio == 0 {
		c.Serial.OversampleRatio = def.Serial.OversampleRatio
	}

	if c.Mock.ToneFrequency == 0 {
		c.Mock.ToneFrequency = def.Mock.ToneFrequency
	}
	if c.Mock.ToneAmplitude == 0 {
		c.Mock.ToneAmplitude = def.Mock.ToneAmplitude
	}
	if c.Mock.WordDuration == 0 {
		c.Mock.WordDuration = def.Mock.WordDuration
	}
	if c.Mock.WordPeriod == 0 {
		c.Mock.WordPeriod = def.Mock.WordPeriod
	}
	if c.Mock.Tick == 0 {
		c.Mock.Tick = def.Mock.Tick
	}

	if c.Microphone.SampleRate == 0 {
		c.Microphone.SampleRate = def.Microphone.SampleRate
	}
	if c.Microphone.FramesPerBuffer == 0 {
		c.Microphone.FramesPerBuffer = def.Microphone.FramesPerBuffer
	}

	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
}
