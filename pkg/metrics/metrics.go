// Package metrics exposes recognizer throughput and timing as Prometheus
// metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Phase names used as the "phase" label of PhaseDuration.
const (
	PhaseCopy      = "copy"
	PhaseAverage   = "avg"
	PhaseNormalize = "normal"
	PhaseThreshold = "tresh"
	PhaseFFT       = "fft"
	PhaseMagnitude = "mag"
	PhaseMel       = "mel"
	PhaseDCT       = "dct"
	PhaseScale     = "fvscl"
)

// Metrics contains all recognizer metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// Sampling
	Samples  prometheus.Counter
	Overruns prometheus.Counter

	// Pipeline
	Frames        prometheus.Counter
	Amplitude     prometheus.Gauge
	PhaseDuration *prometheus.HistogramVec

	// Words
	Words          prometheus.Counter
	TruncatedWords prometheus.Counter
	WordLength     prometheus.Histogram
	Matches        *prometheus.CounterVec
	MatchErrors    prometheus.Counter
	MatchDuration  prometheus.Histogram
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Samples: f.NewCounter(prometheus.CounterOpts{
			Name: "kws_samples_total",
			Help: "Total number of averaged samples completed by the sampler",
		}),
		Overruns: f.NewCounter(prometheus.CounterOpts{
			Name: "kws_overruns_total",
			Help: "Total number of strides overwritten before the recognizer took them",
		}),
		Frames: f.NewCounter(prometheus.CounterOpts{
			Name: "kws_frames_total",
			Help: "Total number of analysis windows processed",
		}),
		Amplitude: f.NewGauge(prometheus.GaugeOpts{
			Name: "kws_amplitude",
			Help: "RMS amplitude of the most recent analysis window",
		}),
		PhaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kws_phase_duration_seconds",
			Help:    "Time spent in each feature extraction phase",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10), // 1µs to ~260ms
		}, []string{"phase"}),
		Words: f.NewCounter(prometheus.CounterOpts{
			Name: "kws_words_total",
			Help: "Total number of finished words",
		}),
		TruncatedWords: f.NewCounter(prometheus.CounterOpts{
			Name: "kws_words_truncated_total",
			Help: "Total number of words longer than the word buffer",
		}),
		WordLength: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kws_word_length_frames",
			Help:    "Trimmed length of finished words in frames",
			Buckets: prometheus.LinearBuckets(4, 8, 10),
		}),
		Matches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kws_matches_total",
			Help: "Total number of words classified, by best template label",
		}, []string{"label"}),
		MatchErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "kws_match_errors_total",
			Help: "Total number of words that could not be matched",
		}),
		MatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kws_match_duration_seconds",
			Help:    "Time spent matching a word against the vocabulary",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10), // 10µs to ~2.6s
		}),
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ObserveSampling adds completed samples and new overruns.
func (m *Metrics) ObserveSampling(samples, overruns uint64) {
	if m == nil {
		return
	}
	m.Samples.Add(float64(samples))
	m.Overruns.Add(float64(overruns))
}

// ObserveFrame records one processed window.
func (m *Metrics) ObserveFrame(amplitude float32) {
	if m == nil {
		return
	}
	m.Frames.Inc()
	m.Amplitude.Set(float64(amplitude))
}

// ObservePhase records the duration of one extraction phase.
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// ObserveWord records a finished word.
func (m *Metrics) ObserveWord(length int, truncated bool) {
	if m == nil {
		return
	}
	m.Words.Inc()
	m.WordLength.Observe(float64(length))
	if truncated {
		m.TruncatedWords.Inc()
	}
}

// ObserveMatch records a classification. An empty label counts as an error.
func (m *Metrics) ObserveMatch(label string, d time.Duration) {
	if m == nil {
		return
	}
	m.MatchDuration.Observe(d.Seconds())
	if label == "" {
		m.MatchErrors.Inc()
		return
	}
	m.Matches.WithLabelValues(label).Inc()
}
