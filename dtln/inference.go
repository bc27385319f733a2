package dtln

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-denoise/dsp/denoise"
)

// Stage1 returns the spectral mask estimator as a pipeline stage. It
// consumes magnitude spectra of Bins() values and produces a suppression
// mask with values in (0, 1).
func (m *Model) Stage1() denoise.Inference {
	return &spectralStage{m: m}
}

// Stage2 returns the temporal refiner as a pipeline stage. It consumes and
// produces time-domain frames of FrameLen samples.
func (m *Model) Stage2() denoise.Inference {
	return &temporalStage{m: m}
}

type spectralStage struct {
	m *Model
}

type spectralState struct {
	lstm  [2]lstmState
	feat  []float64
	gates []float64
}

func (s *spectralStage) FrameLen() int { return s.m.p.Bins() }

func (s *spectralStage) NewState() denoise.State {
	p := &s.m.p
	return &spectralState{
		lstm:  [2]lstmState{newLSTMState(p.Units), newLSTMState(p.Units)},
		feat:  make([]float64, p.Bins()),
		gates: make([]float64, 4*p.Units),
	}
}

func (s *spectralStage) Step(dst, src []float64, st denoise.State) (denoise.State, error) {
	state, ok := st.(*spectralState)
	if !ok {
		return st, fmt.Errorf("%w: foreign state %T", denoise.ErrInvalidInputShape, st)
	}

	p := &s.m.p
	bins := p.Bins()
	if len(src) != bins || len(dst) != bins {
		return st, fmt.Errorf("%w: got %d/%d bins, want %d", denoise.ErrInvalidInputShape, len(src), len(dst), bins)
	}

	x := src
	if p.LogMagNorm {
		// The log offset is the same epsilon the layers were trained with;
		// it also keeps silent bins finite.
		for i, v := range src {
			state.feat[i] = math.Log(v + normEps)
		}
		p.Spectral.Norm.apply(state.feat, state.feat)
		x = state.feat
	}

	p.Spectral.LSTM[0].step(&state.lstm[0], x, state.gates)
	p.Spectral.LSTM[1].step(&state.lstm[1], state.lstm[0].h, state.gates)

	p.Spectral.Mask.apply(dst, state.lstm[1].h)
	for i, v := range dst {
		dst[i] = sigmoid(v)
	}

	return state, nil
}

type temporalStage struct {
	m *Model
}

type temporalState struct {
	lstm  [2]lstmState
	enc   []float64
	norm  []float64
	mask  []float64
	gates []float64
}

func (t *temporalStage) FrameLen() int { return t.m.p.FrameLen }

func (t *temporalStage) NewState() denoise.State {
	p := &t.m.p
	return &temporalState{
		lstm:  [2]lstmState{newLSTMState(p.Units), newLSTMState(p.Units)},
		enc:   make([]float64, p.EncoderSize),
		norm:  make([]float64, p.EncoderSize),
		mask:  make([]float64, p.EncoderSize),
		gates: make([]float64, 4*p.Units),
	}
}

func (t *temporalStage) Step(dst, src []float64, st denoise.State) (denoise.State, error) {
	state, ok := st.(*temporalState)
	if !ok {
		return st, fmt.Errorf("%w: foreign state %T", denoise.ErrInvalidInputShape, st)
	}

	p := &t.m.p
	if len(src) != p.FrameLen || len(dst) != p.FrameLen {
		return st, fmt.Errorf("%w: got %d/%d samples, want %d", denoise.ErrInvalidInputShape, len(src), len(dst), p.FrameLen)
	}

	p.Temporal.Encoder.apply(state.enc, src)
	p.Temporal.Norm.apply(state.norm, state.enc)

	p.Temporal.LSTM[0].step(&state.lstm[0], state.norm, state.gates)
	p.Temporal.LSTM[1].step(&state.lstm[1], state.lstm[0].h, state.gates)

	p.Temporal.Mask.apply(state.mask, state.lstm[1].h)

	// The mask gates the raw encoded features, not the normalized ones.
	for i := range state.enc {
		state.enc[i] *= sigmoid(state.mask[i])
	}

	p.Temporal.Decoder.apply(dst, state.enc)

	return state, nil
}
