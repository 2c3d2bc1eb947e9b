// Package recognizer wires the sampling mailbox, feature extraction, word
// segmentation and template matching into the foreground loop.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/itohio/gokws/pkg/config"
	"github.com/itohio/gokws/pkg/dtw"
	"github.com/itohio/gokws/pkg/frame"
	"github.com/itohio/gokws/pkg/mailbox"
	"github.com/itohio/gokws/pkg/metrics"
	"github.com/itohio/gokws/pkg/mfcc"
	"github.com/itohio/gokws/pkg/output"
	"github.com/itohio/gokws/pkg/segment"
	"github.com/itohio/gokws/pkg/vocab"
)

// Word is a finished word as seen by OnWord callbacks.
type Word struct {
	Length    int           // Trimmed length in frames
	Truncated bool          // Frames beyond the word buffer capacity were dropped
	Vectors   [][]float32   // Copy of the stored feature vectors
	Result    dtw.Result    // Best is -1 when the vocabulary is empty or matching failed
	Err       error         // Matching error, if any
	Duration  time.Duration // Time spent matching
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recognizer) {
		r.logger = logger
	}
}

// WithSink sets where result and diagnostic lines go.
func WithSink(sink output.Sink) Option {
	return func(r *Recognizer) {
		r.sink = sink
	}
}

// WithIndicator sets the speech status indicator.
func WithIndicator(ind output.Indicator) Option {
	return func(r *Recognizer) {
		r.indicator = ind
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recognizer) {
		r.metrics = m
	}
}

// WithClock replaces time.Now for phase timings.
func WithClock(now func() time.Time) Option {
	return func(r *Recognizer) {
		r.now = now
	}
}

// Recognizer is the foreground half of the keyword spotter. All methods
// except Mailbox must be called from a single goroutine.
type Recognizer struct {
	cfg       config.Config
	logger    *slog.Logger
	sink      output.Sink
	indicator output.Indicator
	metrics   *metrics.Metrics
	now       func() time.Time

	mb        *mailbox.Mailbox
	assembler *frame.Assembler
	extractor *mfcc.Extractor
	segmenter *segment.Segmenter
	word      *segment.WordBuffer
	matcher   *dtw.Matcher
	templates []dtw.Template
	onWord    []func(Word)

	stat       output.Stat
	overruns   uint64
	sinkFailed bool
}

// New builds a recognizer. A nil mailbox is created from the sampling
// configuration and a nil vocabulary disables matching.
func New(cfg *config.Config, mb *mailbox.Mailbox, v *vocab.Vocabulary, opts ...Option) (*Recognizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Recognizer{
		cfg:    *cfg,
		logger: slog.Default(),
		now:    time.Now,
		mb:     mb,
	}
	for _, opt := range opts {
		opt(r)
	}

	var err error
	if r.mb == nil {
		r.mb, err = mailbox.New(cfg.Sampling.WindowStride, cfg.Sampling.OversampleRatio, cfg.Sampling.RingSize)
		if err != nil {
			return nil, err
		}
	} else if r.mb.Stride() != cfg.Sampling.WindowStride {
		return nil, fmt.Errorf("%w: mailbox stride %d, window stride %d", config.ErrInvalid, r.mb.Stride(), cfg.Sampling.WindowStride)
	}

	r.assembler = frame.New(cfg.Sampling.WindowStride)
	if r.extractor, err = mfcc.NewExtractor(mfcc.ParamsFromConfig(cfg)); err != nil {
		return nil, err
	}
	if r.segmenter, err = segment.NewSegmenter(float32(cfg.Segmenter.AmplitudeThreshold), cfg.Segmenter.MaxQuietGap); err != nil {
		return nil, err
	}
	if r.word, err = segment.NewWordBuffer(cfg.Segmenter.MaxWords, cfg.FeatureDim()); err != nil {
		return nil, err
	}
	if r.matcher, err = dtw.New(cfg.Matcher.MaxSize, dtw.Euclidean(float32(cfg.Matcher.DistanceScale))); err != nil {
		return nil, err
	}

	if v != nil {
		if err := v.Validate(cfg.FeatureDim(), cfg.Matcher.MaxSize); err != nil {
			return nil, err
		}
		r.templates = v.MatcherTemplates()
	}

	return r, nil
}

// Mailbox returns the mailbox the conversion callback feeds.
func (r *Recognizer) Mailbox() *mailbox.Mailbox {
	return r.mb
}

// OnWord registers fn to be called for every finished word.
func (r *Recognizer) OnWord(fn func(Word)) {
	r.onWord = append(r.onWord, fn)
}

// Segmenter exposes the word boundary state.
func (r *Recognizer) Segmenter() *segment.Segmenter {
	return r.segmenter
}

// Run consumes strides until ctx is done. A stat line is emitted every
// Output.StatInterval. The startup blink runs first when an indicator is set.
// Sink write failures are logged and do not stop the loop.
func (r *Recognizer) Run(ctx context.Context) error {
	if r.indicator != nil && r.cfg.Output.StartupBlinks > 0 {
		if err := output.Blink(ctx, r.indicator, r.cfg.Output.StartupBlinks, r.cfg.Output.BlinkPeriod); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn("startup blink failed", "error", err)
		}
	}

	// Strides completed during the blink are stale.
	r.mb.TryTake()
	r.mb.TakeCompleted()

	r.logger.Info("recognizer started", "templates", len(r.templates), "stride", r.mb.Stride())

	interval := r.cfg.Output.StatInterval
	if interval <= 0 {
		interval = time.Second
	}
	next := time.Now().Add(interval)
	for {
		tctx, cancel := context.WithDeadline(ctx, next)
		b, err := r.mb.TakeBlocking(tctx)
		cancel()

		switch {
		case err == nil:
			if err := r.ProcessStride(b.Samples); err != nil {
				return err
			}
		case ctx.Err() != nil:
			r.logger.Info("recognizer stopped")
			return ctx.Err()
		case !errors.Is(err, context.DeadlineExceeded):
			return err
		}

		if now := time.Now(); !now.Before(next) {
			r.emitStats()
			next = now.Add(interval)
		}
	}
}

// Feed pushes raw conversions through the mailbox and processes every
// stride they complete. It must not be used while a device feeds the mailbox.
func (r *Recognizer) Feed(raw []uint16) error {
	for _, code := range raw {
		r.mb.Convert(code)
		if b := r.mb.TryTake(); b != nil {
			if err := r.ProcessStride(b.Samples); err != nil {
				return err
			}
		}
	}
	return nil
}

// Finish pushes mid-scale strides until the word in progress, if any, has
// been closed.
func (r *Recognizer) Finish() error {
	silence := make([]uint16, r.assembler.Stride())
	mid := uint16(1 << (r.cfg.Sampling.ADCBits - 1))
	for i := range silence {
		silence[i] = mid
	}

	// One stride for the window overlap plus the quiet gap.
	for i := 0; i < r.cfg.Segmenter.MaxQuietGap+2 && r.segmenter.State() == segment.Active; i++ {
		if err := r.ProcessStride(silence); err != nil {
			return err
		}
	}
	return nil
}

// ProcessStride runs one iteration of the pipeline on a stride of averaged
// samples.
func (r *Recognizer) ProcessStride(stride []uint16) error {
	start := r.now()

	window, err := r.assembler.Push(stride)
	if err != nil {
		return err
	}
	if !r.assembler.Primed() {
		return nil
	}
	copied := r.now()

	mean, err := r.extractor.Mean(window)
	if err != nil {
		return err
	}
	averaged := r.now()

	amplitude := r.extractor.Center(window, mean)
	normalized := r.now()

	ev := r.segmenter.Update(amplitude)
	r.setIndicator(ev.Active)
	thresholded := r.now()

	r.extractor.FFT()
	transformed := r.now()
	r.extractor.Magnitude()
	magnitude := r.now()
	r.extractor.MelEnergies()
	filtered := r.now()
	cepstrum := r.extractor.Cepstrum()
	decorrelated := r.now()
	features := r.extractor.Features()
	scaled := r.now()

	r.stat.Copy = copied.Sub(start)
	r.stat.Average = averaged.Sub(copied)
	r.stat.Normalize = normalized.Sub(averaged)
	r.stat.Threshold = thresholded.Sub(normalized)
	r.stat.FFT = transformed.Sub(thresholded)
	r.stat.Magnitude = magnitude.Sub(transformed)
	r.stat.Mel = filtered.Sub(magnitude)
	r.stat.DCT = decorrelated.Sub(filtered)
	r.stat.Scale = scaled.Sub(decorrelated)
	r.stat.Amplitude = amplitude
	r.observePhases()

	// Hangover frames past the capacity are trimmed from the word anyway,
	// so a rejected store only matters if the trimmed length exceeds it.
	if ev.Store {
		if err := r.word.Store(ev.Index, features); err != nil && !errors.Is(err, segment.ErrCapacityExceeded) {
			return err
		}
	}

	if ev.Finished {
		r.finishWord(ev.Length)
	}

	r.stat.Frames++
	r.metrics.ObserveFrame(amplitude)

	if r.cfg.Output.FrameFeatures && r.sink != nil {
		r.sinkWritten("frame", r.sink.Frame(amplitude, cepstrum))
	}
	return nil
}

func (r *Recognizer) finishWord(length int) {
	defer r.word.Reset()

	if r.sink != nil {
		r.sinkWritten("word length", r.sink.WordLength(length))
	}

	vectors := r.word.Word(length)
	w := Word{
		Length:    length,
		Truncated: length > r.word.Capacity(),
		Result:    dtw.Result{Best: -1},
	}
	if w.Truncated {
		r.logger.Warn("word longer than the word buffer, truncated", "length", length, "capacity", r.word.Capacity())
	}

	if len(r.templates) > 0 {
		start := r.now()
		w.Result, w.Err = r.matcher.Classify(vectors, r.templates)
		w.Duration = r.now().Sub(start)
		r.stat.DTW = w.Duration

		if w.Err != nil {
			r.logger.Warn("failed to classify word", "length", length, "error", w.Err)
			r.metrics.ObserveMatch("", w.Duration)
		} else {
			r.metrics.ObserveMatch(w.Result.Label, w.Duration)
			r.writeResult(w.Result)
		}
	}

	r.logger.Debug("word finished", "length", length, "truncated", w.Truncated, "label", w.Result.Label, "cost", uint64(w.Result.Cost))
	r.metrics.ObserveWord(length, w.Truncated)

	if len(r.onWord) > 0 {
		w.Vectors = make([][]float32, len(vectors))
		for i, fv := range vectors {
			w.Vectors[i] = append([]float32(nil), fv...)
		}
		for _, fn := range r.onWord {
			fn(w)
		}
	}
}

func (r *Recognizer) writeResult(res dtw.Result) {
	if r.sink == nil {
		return
	}
	if res.Best >= 0 {
		r.sinkWritten("word", r.sink.Word(res.Label))
	}
	for _, s := range res.Scores {
		r.sinkWritten("score", r.sink.Score(s.Label, uint64(s.Cost)))
	}
}

// sinkWritten logs the first of a run of failed sink writes.
func (r *Recognizer) sinkWritten(line string, err error) {
	if err == nil {
		if r.sinkFailed {
			r.logger.Info("sink writes recovered")
			r.sinkFailed = false
		}
		return
	}
	if !r.sinkFailed {
		r.logger.Warn("failed to write "+line, "error", err)
		r.sinkFailed = true
	}
}

func (r *Recognizer) setIndicator(active bool) {
	if r.indicator == nil {
		return
	}

	var err error
	if active {
		err = r.indicator.Set()
	} else {
		err = r.indicator.Reset()
	}
	if err != nil {
		r.logger.Debug("failed to drive indicator", "error", err)
	}
}

func (r *Recognizer) observePhases() {
	if r.metrics == nil {
		return
	}
	r.metrics.ObservePhase(metrics.PhaseCopy, r.stat.Copy)
	r.metrics.ObservePhase(metrics.PhaseAverage, r.stat.Average)
	r.metrics.ObservePhase(metrics.PhaseNormalize, r.stat.Normalize)
	r.metrics.ObservePhase(metrics.PhaseThreshold, r.stat.Threshold)
	r.metrics.ObservePhase(metrics.PhaseFFT, r.stat.FFT)
	r.metrics.ObservePhase(metrics.PhaseMagnitude, r.stat.Magnitude)
	r.metrics.ObservePhase(metrics.PhaseMel, r.stat.Mel)
	r.metrics.ObservePhase(metrics.PhaseDCT, r.stat.DCT)
	r.metrics.ObservePhase(metrics.PhaseScale, r.stat.Scale)
}

// emitStats writes the periodic stat line and starts a new frame count.
func (r *Recognizer) emitStats() {
	r.stat.SampleRate = r.mb.TakeCompleted()

	overruns := r.mb.Overruns()
	r.metrics.ObserveSampling(uint64(r.stat.SampleRate), overruns-r.overruns)
	r.overruns = overruns

	st := r.stat
	r.stat.Frames = 0
	if r.sink != nil {
		r.sinkWritten("stat", r.sink.Stat(st))
	}
}
