package dtln

import "fmt"

// SpectralParams are the weights of the mask-estimating first stage. The
// optional Norm operates on log magnitudes and is present only when
// Params.LogMagNorm is set.
type SpectralParams struct {
	Norm *LayerNorm
	LSTM [2]LSTM
	Mask Dense
}

// TemporalParams are the weights of the frame-rewriting second stage.
// Encoder and Decoder are 1x1 convolutions without bias, expressed as dense
// kernels.
type TemporalParams struct {
	Encoder Dense
	Norm    LayerNorm
	LSTM    [2]LSTM
	Mask    Dense
	Decoder Dense
}

// Params bundles the hyperparameters and weights of a trained model.
type Params struct {
	SampleRate  int
	FrameLen    int
	Hop         int
	Units       int
	EncoderSize int
	LogMagNorm  bool

	Spectral SpectralParams
	Temporal TemporalParams
}

// Bins returns the number of rFFT bins of the spectral stage.
func (p *Params) Bins() int { return p.FrameLen/2 + 1 }

// Model is a validated, immutable set of weights. It is safe for concurrent
// use; all mutable inference state lives in the per-request states handed
// out by the stage adapters.
type Model struct {
	p Params
}

// New validates the parameter shapes and wraps them in a Model.
func New(p Params) (*Model, error) {
	if p.SampleRate <= 0 || p.FrameLen <= 0 || p.Hop <= 0 || p.Hop > p.FrameLen {
		return nil, fmt.Errorf("%w: sampleRate=%d frameLen=%d hop=%d", ErrBadParams, p.SampleRate, p.FrameLen, p.Hop)
	}

	if p.FrameLen%2 != 0 {
		return nil, fmt.Errorf("%w: frame length must be even: %d", ErrBadParams, p.FrameLen)
	}

	if p.Units <= 0 || p.EncoderSize <= 0 {
		return nil, fmt.Errorf("%w: units=%d encoderSize=%d", ErrBadParams, p.Units, p.EncoderSize)
	}

	bins := p.Bins()

	if p.LogMagNorm {
		if p.Spectral.Norm == nil {
			return nil, fmt.Errorf("%w: log-magnitude normalization enabled but no norm weights", ErrBadParams)
		}
		if err := checkNorm("spectral norm", p.Spectral.Norm, bins); err != nil {
			return nil, err
		}
	} else if p.Spectral.Norm != nil {
		return nil, fmt.Errorf("%w: norm weights present but log-magnitude normalization disabled", ErrBadParams)
	}

	if err := checkLSTM("spectral lstm 1", &p.Spectral.LSTM[0], bins, p.Units); err != nil {
		return nil, err
	}
	if err := checkLSTM("spectral lstm 2", &p.Spectral.LSTM[1], p.Units, p.Units); err != nil {
		return nil, err
	}
	if err := checkDense("spectral mask", &p.Spectral.Mask, p.Units, bins, true); err != nil {
		return nil, err
	}

	if err := checkDense("temporal encoder", &p.Temporal.Encoder, p.FrameLen, p.EncoderSize, false); err != nil {
		return nil, err
	}
	if err := checkNorm("temporal norm", &p.Temporal.Norm, p.EncoderSize); err != nil {
		return nil, err
	}
	if err := checkLSTM("temporal lstm 1", &p.Temporal.LSTM[0], p.EncoderSize, p.Units); err != nil {
		return nil, err
	}
	if err := checkLSTM("temporal lstm 2", &p.Temporal.LSTM[1], p.Units, p.Units); err != nil {
		return nil, err
	}
	if err := checkDense("temporal mask", &p.Temporal.Mask, p.Units, p.EncoderSize, true); err != nil {
		return nil, err
	}
	if err := checkDense("temporal decoder", &p.Temporal.Decoder, p.EncoderSize, p.FrameLen, false); err != nil {
		return nil, err
	}

	return &Model{p: p}, nil
}

func checkDense(name string, d *Dense, in, out int, withBias bool) error {
	if d.In != in || d.Out != out {
		return fmt.Errorf("%w: %s shape %dx%d, want %dx%d", ErrBadParams, name, d.In, d.Out, in, out)
	}

	if len(d.W) != in*out {
		return fmt.Errorf("%w: %s kernel has %d weights, want %d", ErrBadParams, name, len(d.W), in*out)
	}

	if withBias && len(d.B) != out {
		return fmt.Errorf("%w: %s bias has %d weights, want %d", ErrBadParams, name, len(d.B), out)
	}

	if !withBias && d.B != nil {
		return fmt.Errorf("%w: %s must not carry a bias", ErrBadParams, name)
	}

	return nil
}

func checkLSTM(name string, l *LSTM, in, units int) error {
	if l.In != in || l.Units != units {
		return fmt.Errorf("%w: %s shape in=%d units=%d, want in=%d units=%d", ErrBadParams, name, l.In, l.Units, in, units)
	}

	if len(l.Wx) != in*4*units || len(l.Wh) != units*4*units || len(l.B) != 4*units {
		return fmt.Errorf("%w: %s tensor sizes %d/%d/%d, want %d/%d/%d",
			ErrBadParams, name, len(l.Wx), len(l.Wh), len(l.B), in*4*units, units*4*units, 4*units)
	}

	return nil
}

func checkNorm(name string, n *LayerNorm, size int) error {
	if len(n.Gamma) != size || len(n.Beta) != size {
		return fmt.Errorf("%w: %s has %d/%d weights, want %d", ErrBadParams, name, len(n.Gamma), len(n.Beta), size)
	}

	return nil
}

// Info summarizes a loaded model.
type Info struct {
	SampleRate  int
	FrameLen    int
	Hop         int
	Bins        int
	Units       int
	EncoderSize int
	LogMagNorm  bool
	Weights     int
}

// Info returns the model's hyperparameters and total weight count.
func (m *Model) Info() Info {
	p := &m.p

	weights := len(p.Spectral.Mask.W) + len(p.Spectral.Mask.B) +
		len(p.Temporal.Encoder.W) + len(p.Temporal.Decoder.W) +
		len(p.Temporal.Mask.W) + len(p.Temporal.Mask.B) +
		len(p.Temporal.Norm.Gamma) + len(p.Temporal.Norm.Beta)

	if p.Spectral.Norm != nil {
		weights += len(p.Spectral.Norm.Gamma) + len(p.Spectral.Norm.Beta)
	}

	for i := range p.Spectral.LSTM {
		weights += len(p.Spectral.LSTM[i].Wx) + len(p.Spectral.LSTM[i].Wh) + len(p.Spectral.LSTM[i].B)
		weights += len(p.Temporal.LSTM[i].Wx) + len(p.Temporal.LSTM[i].Wh) + len(p.Temporal.LSTM[i].B)
	}

	return Info{
		SampleRate:  p.SampleRate,
		FrameLen:    p.FrameLen,
		Hop:         p.Hop,
		Bins:        p.Bins(),
		Units:       p.Units,
		EncoderSize: p.EncoderSize,
		LogMagNorm:  p.LogMagNorm,
		Weights:     weights,
	}
}
