// Package resample converts waveforms between sample rates using a
// Kaiser-windowed polyphase FIR, as required to bring arbitrary capture
// rates to a model's trained rate before frame processing.
package resample

import (
	"errors"
	"math"
)

var (
	// ErrInvalidRatio indicates an invalid up/down ratio.
	ErrInvalidRatio = errors.New("resample: invalid ratio")
	// ErrInvalidRate indicates an invalid input/output sample rate.
	ErrInvalidRate = errors.New("resample: invalid sample rate")
)

type config struct {
	tapsPerPhase int
	cutoffScale  float64
	kaiserBeta   float64
	maxDen       int
}

func defaultConfig() config {
	return config{
		tapsPerPhase: 32,
		cutoffScale:  0.92,
		kaiserBeta:   7.5,
		maxDen:       4096,
	}
}

// Option configures the resampler.
type Option func(*config)

// WithTapsPerPhase overrides taps per polyphase branch.
func WithTapsPerPhase(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.tapsPerPhase = n
		}
	}
}

// WithCutoffScale overrides normalized cutoff scaling in range (0, 1].
// 1.0 equals the theoretical anti-aliasing cutoff.
func WithCutoffScale(v float64) Option {
	return func(cfg *config) {
		if v > 0 && v <= 1 {
			cfg.cutoffScale = v
		}
	}
}

// WithKaiserBeta overrides the Kaiser window beta parameter.
func WithKaiserBeta(beta float64) Option {
	return func(cfg *config) {
		if beta >= 0 {
			cfg.kaiserBeta = beta
		}
	}
}

// WithMaxDenominator caps denominator size for rate-ratio approximation.
func WithMaxDenominator(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.maxDen = n
		}
	}
}

// ToRate converts input from inRate to outRate in one shot. Equal rates
// return a copy of the input.
func ToRate(input []float64, inRate, outRate float64, opts ...Option) ([]float64, error) {
	if inRate <= 0 || outRate <= 0 ||
		math.IsNaN(inRate) || math.IsNaN(outRate) ||
		math.IsInf(inRate, 0) || math.IsInf(outRate, 0) {
		return nil, ErrInvalidRate
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	up, down := approximateRatio(outRate/inRate, cfg.maxDen)

	return rational(input, up, down, cfg)
}

// Rational converts input using the exact ratio up/down in one shot.
func Rational(input []float64, up, down int, opts ...Option) ([]float64, error) {
	if up <= 0 || down <= 0 {
		return nil, ErrInvalidRatio
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return rational(input, up, down, cfg)
}

func rational(input []float64, up, down int, cfg config) ([]float64, error) {
	g := gcd(up, down)
	up /= g
	down /= g

	if up == 1 && down == 1 {
		out := make([]float64, len(input))
		copy(out, input)
		return out, nil
	}

	if len(input) == 0 {
		return nil, nil
	}

	phases, err := designPolyphaseFIR(up, down, cfg)
	if err != nil {
		return nil, err
	}

	nOut := outputLen(len(input), up, down)
	out := make([]float64, 0, nOut)

	phase := 0
	inputIndex := 0
	last := len(input) - 1

	for inputIndex <= last {
		taps := phases[phase]

		var y float64
		for k, c := range taps {
			idx := inputIndex - k
			if idx < 0 || idx > last {
				continue
			}
			y += c * input[idx]
		}

		out = append(out, y)

		phase += down
		inputIndex += phase / up
		phase %= up
	}

	return out, nil
}

func outputLen(n, up, down int) int {
	phase := 0
	i := 0
	count := 0
	for i <= n-1 {
		count++
		phase += down
		i += phase / up
		phase %= up
	}
	return count
}
