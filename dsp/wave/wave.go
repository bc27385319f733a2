// Package wave defines the waveform value type handed to frame processing
// and the ingestion/normalization step that produces it: channel downmix,
// sample-rate conversion to the model's trained rate, and PCM scaling.
package wave

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-denoise/dsp/core"
	"github.com/cwbudde/algo-denoise/dsp/resample"
)

var (
	// ErrEmpty indicates a waveform with no samples.
	ErrEmpty = errors.New("wave: empty waveform")
	// ErrChannelCount indicates an invalid or inconsistent channel count.
	ErrChannelCount = errors.New("wave: invalid channel count")
	// ErrRate indicates an invalid sample rate.
	ErrRate = errors.New("wave: invalid sample rate")
	// ErrNonFinite indicates NaN or Inf input samples.
	ErrNonFinite = errors.New("wave: non-finite samples")
)

// Waveform is a mono, normalized ([-1, 1]) sequence of samples tagged with
// its sample rate. Each processing request owns its Waveform exclusively.
type Waveform struct {
	Samples []float64
	Rate    int
}

// Len returns the number of samples.
func (w Waveform) Len() int { return len(w.Samples) }

// Ingest validates interleaved multi-channel samples and normalizes them to
// the mono target rate: channels are downmixed by arithmetic mean, then the
// result is resampled from rate to targetRate.
func Ingest(interleaved []float64, channels, rate, targetRate int) (Waveform, error) {
	if len(interleaved) == 0 {
		return Waveform{}, ErrEmpty
	}

	if channels <= 0 {
		return Waveform{}, fmt.Errorf("%w: %d", ErrChannelCount, channels)
	}

	if len(interleaved)%channels != 0 {
		return Waveform{}, fmt.Errorf("%w: %d samples not divisible by %d channels", ErrChannelCount, len(interleaved), channels)
	}

	if rate <= 0 || targetRate <= 0 {
		return Waveform{}, fmt.Errorf("%w: %d -> %d", ErrRate, rate, targetRate)
	}

	if !core.AllFinite(interleaved) {
		return Waveform{}, fmt.Errorf("%w at index %d", ErrNonFinite, core.FirstNonFinite(interleaved))
	}

	mono := Downmix(interleaved, channels)

	if rate != targetRate {
		converted, err := resample.ToRate(mono, float64(rate), float64(targetRate))
		if err != nil {
			return Waveform{}, fmt.Errorf("wave: resample %d -> %d: %w", rate, targetRate, err)
		}

		if len(converted) == 0 {
			return Waveform{}, ErrEmpty
		}

		mono = converted
	}

	return Waveform{Samples: mono, Rate: targetRate}, nil
}

// Downmix averages interleaved channels into a mono signal. A mono input is
// copied unchanged.
func Downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		out := make([]float64, len(interleaved))
		copy(out, interleaved)
		return out
	}

	frames := len(interleaved) / channels
	out := make([]float64, frames)
	inv := 1 / float64(channels)

	for i := range frames {
		var sum float64
		base := i * channels
		for c := range channels {
			sum += interleaved[base+c]
		}
		out[i] = sum * inv
	}

	return out
}

// Clipped returns a copy of w with every sample clamped to [-1, 1], the
// final normalization applied before re-encoding.
func (w Waveform) Clipped() Waveform {
	out := make([]float64, len(w.Samples))
	for i, v := range w.Samples {
		out[i] = core.Clamp(v, -1, 1)
	}

	return Waveform{Samples: out, Rate: w.Rate}
}

// FromPCM scales raw integer PCM samples to [-1, 1] floats for the given
// bit depth.
func FromPCM(pcm []int, bitDepth int) ([]float64, error) {
	if bitDepth <= 1 || bitDepth > 32 {
		return nil, fmt.Errorf("wave: unsupported bit depth %d", bitDepth)
	}

	scale := 1 / float64(int64(1)<<(bitDepth-1))
	out := make([]float64, len(pcm))
	for i, v := range pcm {
		out[i] = float64(v) * scale
	}

	return out, nil
}

// ToPCM16 converts normalized samples to 16-bit integer PCM, clamping to
// the representable range.
func ToPCM16(samples []float64) []int {
	out := make([]int, len(samples))
	for i, v := range samples {
		s := core.Clamp(v, -1, 1) * 32767
		if s >= 0 {
			out[i] = int(s + 0.5)
		} else {
			out[i] = int(s - 0.5)
		}
	}

	return out
}
