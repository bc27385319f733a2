package denoise

import (
	"fmt"

	"github.com/cwbudde/algo-denoise/dsp/core"
	"github.com/cwbudde/algo-denoise/dsp/frame"
	"github.com/cwbudde/algo-denoise/dsp/wave"
	"github.com/cwbudde/algo-denoise/dsp/window"
)

// StageConfig describes the framing of one pipeline stage.
type StageConfig struct {
	FrameLen int
	Hop      int
	Window   window.Type
}

// Config holds the framing parameters of both stages and the sample rate the
// pipeline accepts.
type Config struct {
	SampleRate int
	Stage1     StageConfig
	Stage2     StageConfig
}

// DefaultConfig returns the framing the bundled models are trained for:
// 16 kHz input, 512-sample frames with a 128-sample hop, rectangular
// windows on both stages.
func DefaultConfig() Config {
	return Config{
		SampleRate: 16000,
		Stage1:     StageConfig{FrameLen: 512, Hop: 128, Window: window.TypeRectangular},
		Stage2:     StageConfig{FrameLen: 512, Hop: 128, Window: window.TypeRectangular},
	}
}

// Option configures a Pipeline.
type Option func(*Config)

// WithSampleRate sets the sample rate the pipeline accepts.
func WithSampleRate(rate int) Option {
	return func(c *Config) { c.SampleRate = rate }
}

// WithStage1Framing sets frame length, hop and window of the spectral stage.
func WithStage1Framing(frameLen, hop int, w window.Type) Option {
	return func(c *Config) { c.Stage1 = StageConfig{FrameLen: frameLen, Hop: hop, Window: w} }
}

// WithStage2Framing sets frame length, hop and window of the temporal stage.
func WithStage2Framing(frameLen, hop int, w window.Type) Option {
	return func(c *Config) { c.Stage2 = StageConfig{FrameLen: frameLen, Hop: hop, Window: w} }
}

// Pipeline is the two-stage denoiser: spectral mask filtering followed by
// time-domain refinement, each with its own framing and overlap-add path.
//
// A Pipeline holds only immutable configuration and the model references, so
// it is safe for concurrent use; every Process call runs on its own framers,
// scratch buffers and recurrent states.
type Pipeline struct {
	cfg    Config
	stage1 Inference
	stage2 Inference

	// Precomputed periodic window coefficients, nil for rectangular.
	win1 []float64
	win2 []float64
}

// New creates a pipeline around the two stage models. stage1 estimates a
// per-bin magnitude mask, stage2 rewrites time-domain frames.
func New(stage1, stage2 Inference, opts ...Option) (*Pipeline, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be > 0: %d", ErrUnsupportedWaveform, cfg.SampleRate)
	}

	if stage1 == nil || stage2 == nil {
		return nil, fmt.Errorf("%w: pipeline requires both stage models", ErrInferenceUnavailable)
	}

	// Fail at construction rather than on the first request.
	if _, err := NewSpectralFilter(cfg.Stage1.FrameLen, stage1); err != nil {
		return nil, err
	}

	if _, err := NewTemporalRefiner(cfg.Stage2.FrameLen, stage2); err != nil {
		return nil, err
	}

	p := &Pipeline{cfg: cfg, stage1: stage1, stage2: stage2}

	if cfg.Stage1.Window != window.TypeRectangular {
		p.win1 = window.Generate(cfg.Stage1.Window, cfg.Stage1.FrameLen, window.WithPeriodic())
	}

	if cfg.Stage2.Window != window.TypeRectangular {
		p.win2 = window.Generate(cfg.Stage2.Window, cfg.Stage2.FrameLen, window.WithPeriodic())
	}

	// Validate framing eagerly via throwaway framers.
	if _, err := frame.NewFramer(cfg.Stage1.FrameLen, cfg.Stage1.Hop, p.win1); err != nil {
		return nil, fmt.Errorf("%w: stage 1 framing: %v", ErrInvalidInputShape, err)
	}

	if _, err := frame.NewFramer(cfg.Stage2.FrameLen, cfg.Stage2.Hop, p.win2); err != nil {
		return nil, fmt.Errorf("%w: stage 2 framing: %v", ErrInvalidInputShape, err)
	}

	return p, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Process denoises one waveform and returns a new waveform of identical
// length and sample rate. The input is not modified. Each call carries its
// own recurrent state, so concurrent calls do not observe each other.
func (p *Pipeline) Process(w wave.Waveform) (wave.Waveform, error) {
	if w.Rate != p.cfg.SampleRate {
		return wave.Waveform{}, fmt.Errorf("%w: sample rate %d, pipeline expects %d", ErrUnsupportedWaveform, w.Rate, p.cfg.SampleRate)
	}

	if w.Len() == 0 {
		return wave.Waveform{}, fmt.Errorf("%w: empty waveform", ErrUnsupportedWaveform)
	}

	if i := core.FirstNonFinite(w.Samples); i >= 0 {
		return wave.Waveform{}, fmt.Errorf("%w: non-finite input sample %d", ErrUnsupportedWaveform, i)
	}

	r, err := p.newRun(w.Len())
	if err != nil {
		return wave.Waveform{}, err
	}

	out, err := r.process(w.Samples)
	if err != nil {
		return wave.Waveform{}, err
	}

	return wave.Waveform{Samples: out, Rate: p.cfg.SampleRate}, nil
}

// Run phases. A run handles exactly one waveform and cannot be restarted.
const (
	phaseInit = iota
	phaseRunning
	phaseComplete
	phaseFailed
)

// run holds everything one Process call mutates: framers, accumulators,
// per-frame scratch and the recurrent states of both stages.
type run struct {
	phase int

	filt *SpectralFilter
	ref  *TemporalRefiner

	f1   *frame.Framer
	f2   *frame.Framer
	acc1 *frame.Accumulator
	acc2 *frame.Accumulator

	st1 State
	st2 State

	buf1 []float64
	out1 []float64
	buf2 []float64
	out2 []float64

	// intermediate holds the finalized prefix of the stage-1 output; filled
	// marks how much of it is valid.
	intermediate []float64
	filled       int
	next2        int
}

func (p *Pipeline) newRun(length int) (*run, error) {
	filt, err := NewSpectralFilter(p.cfg.Stage1.FrameLen, p.stage1)
	if err != nil {
		return nil, err
	}

	ref, err := NewTemporalRefiner(p.cfg.Stage2.FrameLen, p.stage2)
	if err != nil {
		return nil, err
	}

	f1, err := frame.NewFramer(p.cfg.Stage1.FrameLen, p.cfg.Stage1.Hop, p.win1)
	if err != nil {
		return nil, fmt.Errorf("%w: stage 1 framing: %v", ErrInvalidInputShape, err)
	}

	f2, err := frame.NewFramer(p.cfg.Stage2.FrameLen, p.cfg.Stage2.Hop, p.win2)
	if err != nil {
		return nil, fmt.Errorf("%w: stage 2 framing: %v", ErrInvalidInputShape, err)
	}

	acc1, err := frame.NewAccumulator(f1, p.win1, length)
	if err != nil {
		return nil, fmt.Errorf("%w: stage 1 overlap-add: %v", ErrInvalidInputShape, err)
	}

	acc2, err := frame.NewAccumulator(f2, p.win2, length)
	if err != nil {
		return nil, fmt.Errorf("%w: stage 2 overlap-add: %v", ErrInvalidInputShape, err)
	}

	return &run{
		phase:        phaseInit,
		filt:         filt,
		ref:          ref,
		f1:           f1,
		f2:           f2,
		acc1:         acc1,
		acc2:         acc2,
		st1:          filt.NewState(),
		st2:          ref.NewState(),
		buf1:         make([]float64, f1.Size()),
		out1:         make([]float64, f1.Size()),
		buf2:         make([]float64, f2.Size()),
		out2:         make([]float64, f2.Size()),
		intermediate: make([]float64, length),
	}, nil
}

// process drives both stages over the waveform. Stage 2 runs interleaved
// with stage 1: a refinement frame is consumed as soon as the overlap-add of
// the spectral stage can no longer change its samples, keeping the pipeline
// causal with bounded lookahead.
func (r *run) process(samples []float64) ([]float64, error) {
	if r.phase != phaseInit {
		return nil, fmt.Errorf("denoise: run already consumed")
	}
	r.phase = phaseRunning

	frames1 := r.f1.Count(len(samples))

	for i := range frames1 {
		if err := r.f1.Extract(r.buf1, samples, i); err != nil {
			r.phase = phaseFailed
			return nil, err
		}

		st, err := r.filt.Process(r.out1, r.buf1, r.st1)
		if err != nil {
			r.phase = phaseFailed
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		r.st1 = st

		if err := r.acc1.Add(r.out1, i); err != nil {
			r.phase = phaseFailed
			return nil, err
		}

		if err := r.drainStage2(len(samples)); err != nil {
			r.phase = phaseFailed
			return nil, err
		}
	}

	out, err := r.acc2.Output()
	if err != nil {
		r.phase = phaseFailed
		return nil, err
	}

	if i := core.FirstNonFinite(out); i >= 0 {
		r.phase = phaseFailed
		return nil, fmt.Errorf("%w: output sample %d", ErrNonFiniteResult, i)
	}

	r.phase = phaseComplete
	return out, nil
}

// drainStage2 copies newly finalized stage-1 samples into the intermediate
// buffer and refines every stage-2 frame whose samples are all available.
func (r *run) drainStage2(n int) error {
	if fin := r.acc1.FinalizedLen(); fin > r.filled {
		if err := r.acc1.ReadFinal(r.intermediate[r.filled:fin], r.filled); err != nil {
			return err
		}
		r.filled = fin
	}

	frames2 := r.f2.Count(n)

	for r.next2 < frames2 {
		end := r.f2.Offset(r.next2) + r.f2.Size()
		if end > n {
			end = n
		}

		if end > r.filled {
			return nil
		}

		if err := r.f2.Extract(r.buf2, r.intermediate[:r.filled], r.next2); err != nil {
			return err
		}

		st, err := r.ref.Process(r.out2, r.buf2, r.st2)
		if err != nil {
			return fmt.Errorf("frame %d: %w", r.next2, err)
		}
		r.st2 = st

		if err := r.acc2.Add(r.out2, r.next2); err != nil {
			return err
		}
		r.next2++
	}

	return nil
}
