package denoise

import (
	"fmt"

	"github.com/cwbudde/algo-denoise/dsp/core"
)

// TemporalRefiner is the second pipeline stage: it rewrites each frame of
// the spectrally filtered signal directly in the time domain, removing the
// transient artifacts the per-bin gains of the first stage leave behind.
//
// Unlike SpectralFilter it carries no scratch of its own; the model operates
// on the raw frame. Recurrent state is threaded explicitly through Process.
type TemporalRefiner struct {
	frameLen int
	inf      Inference
}

// NewTemporalRefiner creates the refinement stage for the given frame
// length. inf must accept and produce vectors of exactly frameLen samples.
func NewTemporalRefiner(frameLen int, inf Inference) (*TemporalRefiner, error) {
	if inf == nil {
		return nil, fmt.Errorf("%w: no temporal inference", ErrInferenceUnavailable)
	}

	if frameLen <= 0 {
		return nil, fmt.Errorf("%w: frame length must be positive: %d", ErrInvalidInputShape, frameLen)
	}

	if inf.FrameLen() != frameLen {
		return nil, fmt.Errorf("%w: temporal inference expects %d samples, stage frame length is %d",
			ErrInvalidInputShape, inf.FrameLen(), frameLen)
	}

	return &TemporalRefiner{frameLen: frameLen, inf: inf}, nil
}

// FrameLen returns the stage's fixed frame length.
func (t *TemporalRefiner) FrameLen() int { return t.frameLen }

// NewState returns a fresh recurrent state for one request.
func (t *TemporalRefiner) NewState() State { return t.inf.NewState() }

// Process refines one windowed time-domain frame into dst and returns the
// successor recurrent state.
func (t *TemporalRefiner) Process(dst, frame []float64, st State) (State, error) {
	if len(frame) != t.frameLen || len(dst) != t.frameLen {
		return st, fmt.Errorf("%w: frame %d, dst %d, want %d", ErrInvalidInputShape, len(frame), len(dst), t.frameLen)
	}

	next, err := t.inf.Step(dst, frame, st)
	if err != nil {
		return st, fmt.Errorf("temporal refiner: inference failed: %w", err)
	}

	if i := core.FirstNonFinite(dst); i >= 0 {
		return st, fmt.Errorf("%w: refined frame sample %d", ErrNonFiniteResult, i)
	}

	return next, nil
}
