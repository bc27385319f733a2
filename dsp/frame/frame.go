// Package frame provides deterministic segmentation of waveforms into
// overlapping fixed-size frames and the inverse weighted overlap-add
// accumulation.
//
// The framing contract is strict: frames start at offsets 0, hop, 2*hop, ...
// and the final frame(s) are zero-padded so every input sample is covered by
// at least one frame. Waveforms shorter than one frame produce exactly one
// zero-padded frame. Together with [Accumulator], an identity per-frame
// transform reconstructs the input to within floating-point rounding error
// for any analysis/synthesis window pair.
package frame

import (
	"fmt"

	"github.com/cwbudde/algo-denoise/dsp/core"
	"github.com/cwbudde/algo-vecmath"
)

// Framer extracts windowed, zero-padded frames from a waveform.
//
// A Framer is immutable after construction and safe for concurrent use.
type Framer struct {
	size   int
	hop    int
	window []float64
}

// NewFramer creates a framer with the given frame size and hop length.
// window is the analysis window applied to every extracted frame; nil means
// rectangular. hop must be in [1, size].
func NewFramer(size, hop int, window []float64) (*Framer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("frame size must be > 0: %d", size)
	}

	if hop <= 0 || hop > size {
		return nil, fmt.Errorf("hop must be in [1, %d]: %d", size, hop)
	}

	if window != nil && len(window) != size {
		return nil, fmt.Errorf("analysis window length %d does not match frame size %d", len(window), size)
	}

	var coeffs []float64
	if window != nil {
		coeffs = append([]float64(nil), window...)
	}

	return &Framer{size: size, hop: hop, window: coeffs}, nil
}

// Size returns the frame length in samples.
func (f *Framer) Size() int { return f.size }

// Hop returns the stride between consecutive frame offsets in samples.
func (f *Framer) Hop() int { return f.hop }

// Count returns the number of frames covering a waveform of n samples.
// Every sample is covered by at least one frame; sub-frame waveforms still
// produce one frame.
func (f *Framer) Count(n int) int {
	if n <= 0 {
		return 0
	}

	if n <= f.size {
		return 1
	}

	// First offset o with o+size >= n, offsets on the hop grid.
	return 1 + (n-f.size+f.hop-1)/f.hop
}

// Offset returns the starting sample offset of frame index i.
func (f *Framer) Offset(i int) int {
	return i * f.hop
}

// Extract writes the windowed frame with index i of src into dst.
// Samples beyond the end of src are zero. dst must have length Size.
func (f *Framer) Extract(dst, src []float64, i int) error {
	if len(dst) != f.size {
		return fmt.Errorf("frame destination length %d does not match frame size %d", len(dst), f.size)
	}

	if i < 0 || i >= f.Count(len(src)) {
		return fmt.Errorf("frame index %d out of range [0, %d)", i, f.Count(len(src)))
	}

	pos := f.Offset(i)

	var avail []float64
	if pos < len(src) {
		avail = src[pos:]
	}

	core.CopyPadded(dst, avail)

	if f.window != nil {
		vecmath.MulBlockInPlace(dst, f.window)
	}

	return nil
}
