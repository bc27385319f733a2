package denoise

import (
	"fmt"

	"github.com/cwbudde/algo-denoise/dsp/core"
	"github.com/cwbudde/algo-denoise/dsp/spectrum"
	algofft "github.com/cwbudde/algo-fft"
	"github.com/cwbudde/algo-vecmath"
)

// SpectralFilter is the first pipeline stage: it suppresses stationary and
// broadband noise in the frequency domain by applying a model-estimated
// per-bin gain to the magnitude spectrum of each frame while keeping the
// noisy phase.
//
// A SpectralFilter carries per-frame scratch buffers and an FFT plan, so it
// serves one request at a time; the orchestrator creates one per request.
// Recurrent state is threaded explicitly through Process.
type SpectralFilter struct {
	frameLen int
	bins     int
	inf      Inference

	plan *algofft.Plan[complex128]

	spec  []complex128
	time  []complex128
	mag   []float64
	phase []float64
	mask  []float64
}

// NewSpectralFilter creates the spectral stage for the given frame length.
// inf must accept and produce vectors of frameLen/2+1 bins.
func NewSpectralFilter(frameLen int, inf Inference) (*SpectralFilter, error) {
	if inf == nil {
		return nil, fmt.Errorf("%w: no spectral inference", ErrInferenceUnavailable)
	}

	if frameLen <= 0 || frameLen%2 != 0 || !isPowerOfTwo(frameLen) {
		return nil, fmt.Errorf("%w: frame length must be an even power of two: %d", ErrInvalidInputShape, frameLen)
	}

	bins := frameLen/2 + 1
	if inf.FrameLen() != bins {
		return nil, fmt.Errorf("%w: spectral inference expects %d bins, frame length %d yields %d",
			ErrInvalidInputShape, inf.FrameLen(), frameLen, bins)
	}

	plan, err := algofft.NewPlan64(frameLen)
	if err != nil {
		return nil, fmt.Errorf("spectral filter: failed to create FFT plan: %w", err)
	}

	return &SpectralFilter{
		frameLen: frameLen,
		bins:     bins,
		inf:      inf,
		plan:     plan,
		spec:     make([]complex128, frameLen),
		time:     make([]complex128, frameLen),
		mag:      make([]float64, bins),
		phase:    make([]float64, bins),
		mask:     make([]float64, bins),
	}, nil
}

// FrameLen returns the stage's fixed time-domain frame length.
func (s *SpectralFilter) FrameLen() int { return s.frameLen }

// Bins returns the number of rFFT bins the stage operates on.
func (s *SpectralFilter) Bins() int { return s.bins }

// NewState returns a fresh recurrent state for one request.
func (s *SpectralFilter) NewState() State { return s.inf.NewState() }

// Process filters one windowed time-domain frame: forward transform, model
// mask on the magnitudes, resynthesis with the original phase, inverse
// transform into dst. Returns the successor recurrent state.
func (s *SpectralFilter) Process(dst, frame []float64, st State) (State, error) {
	if len(frame) != s.frameLen || len(dst) != s.frameLen {
		return st, fmt.Errorf("%w: frame %d, dst %d, want %d", ErrInvalidInputShape, len(frame), len(dst), s.frameLen)
	}

	for i, v := range frame {
		s.spec[i] = complex(v, 0)
	}

	if err := s.plan.Forward(s.spec, s.spec); err != nil {
		return st, fmt.Errorf("spectral filter: forward FFT failed: %w", err)
	}

	if err := spectrum.SplitPolar(s.mag, s.phase, s.spec); err != nil {
		return st, err
	}

	next, err := s.inf.Step(s.mask, s.mag, st)
	if err != nil {
		return st, fmt.Errorf("spectral filter: inference failed: %w", err)
	}

	if i := core.FirstNonFinite(s.mask); i >= 0 {
		return st, fmt.Errorf("%w: suppression mask bin %d", ErrNonFiniteResult, i)
	}

	vecmath.MulBlockInPlace(s.mag, s.mask)

	if err := spectrum.FromPolar(s.spec, s.mag, s.phase); err != nil {
		return st, err
	}

	if err := spectrum.MirrorHermitian(s.spec, s.bins); err != nil {
		return st, err
	}

	if err := s.plan.Inverse(s.time, s.spec); err != nil {
		return st, fmt.Errorf("spectral filter: inverse FFT failed: %w", err)
	}

	for i := range dst {
		dst[i] = real(s.time[i])
	}

	if i := core.FirstNonFinite(dst); i >= 0 {
		return st, fmt.Errorf("%w: reconstructed frame sample %d", ErrNonFiniteResult, i)
	}

	return next, nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
