package frame

import (
	"fmt"

	"github.com/cwbudde/algo-vecmath"
)

// normFloor guards the per-sample normalization divide. Samples whose
// accumulated window overlap falls below the floor (possible only at the
// very edges of tapered window pairs) are passed through unnormalized.
const normFloor = 1e-12

// Accumulator reconstructs a waveform from synthesized frames by weighted
// overlap-add.
//
// Frames must be added in strictly increasing index order. The per-sample
// normalization against the summed analysis*synthesis window overlap is
// precomputed at construction, so any prefix whose frames have all been
// added can be read back immediately via ReadFinal.
type Accumulator struct {
	size      int
	hop       int
	length    int
	frames    int
	added     int
	synthesis []float64
	wet       []float64
	norm      []float64
}

// NewAccumulator creates an overlap-add accumulator matching the framing of
// f for a waveform of the given length. synthesis is the window applied to
// each frame before accumulation; nil means rectangular.
func NewAccumulator(f *Framer, synthesis []float64, length int) (*Accumulator, error) {
	if f == nil {
		return nil, fmt.Errorf("accumulator requires a framer")
	}

	if length <= 0 {
		return nil, fmt.Errorf("accumulator length must be > 0: %d", length)
	}

	if synthesis != nil && len(synthesis) != f.size {
		return nil, fmt.Errorf("synthesis window length %d does not match frame size %d", len(synthesis), f.size)
	}

	frames := f.Count(length)
	total := (frames-1)*f.hop + f.size

	a := &Accumulator{
		size:   f.size,
		hop:    f.hop,
		length: length,
		frames: frames,
		wet:    make([]float64, total),
		norm:   make([]float64, total),
	}

	if synthesis != nil {
		a.synthesis = append([]float64(nil), synthesis...)
	}

	// The full overlap profile is known up front: every frame contributes
	// analysis[j]*synthesis[j] at its offset.
	for i := range frames {
		pos := i * f.hop
		for j := range f.size {
			w := 1.0
			if f.window != nil {
				w = f.window[j]
			}
			if a.synthesis != nil {
				w *= a.synthesis[j]
			}
			a.norm[pos+j] += w
		}
	}

	return a, nil
}

// Frames returns the total number of frames the accumulator expects.
func (a *Accumulator) Frames() int { return a.frames }

// Added returns the number of frames accumulated so far.
func (a *Accumulator) Added() int { return a.added }

// Add accumulates the synthesized frame with index i at offset i*hop.
// Frames must arrive in order: i must equal Added.
func (a *Accumulator) Add(frame []float64, i int) error {
	if len(frame) != a.size {
		return fmt.Errorf("frame length %d does not match frame size %d", len(frame), a.size)
	}

	if i != a.added {
		return fmt.Errorf("frame index %d out of order, want %d", i, a.added)
	}

	if i >= a.frames {
		return fmt.Errorf("frame index %d beyond expected count %d", i, a.frames)
	}

	pos := i * a.hop
	dst := a.wet[pos : pos+a.size]

	if a.synthesis != nil {
		windowed := make([]float64, a.size)
		vecmath.MulBlock(windowed, frame, a.synthesis)
		vecmath.AddBlockInPlace(dst, windowed)
	} else {
		vecmath.AddBlockInPlace(dst, frame)
	}

	a.added++

	return nil
}

// FinalizedLen returns the number of leading samples that no future frame
// can still modify, clamped to the waveform length.
func (a *Accumulator) FinalizedLen() int {
	var n int
	if a.added >= a.frames {
		n = a.length
	} else {
		n = a.added * a.hop
	}

	if n > a.length {
		n = a.length
	}

	return n
}

// ReadFinal copies normalized samples starting at pos into dst. The
// requested range must lie entirely within the finalized prefix.
func (a *Accumulator) ReadFinal(dst []float64, pos int) error {
	if pos < 0 || pos+len(dst) > a.FinalizedLen() {
		return fmt.Errorf("read [%d, %d) outside finalized prefix of %d samples", pos, pos+len(dst), a.FinalizedLen())
	}

	for i := range dst {
		dst[i] = a.sampleAt(pos + i)
	}

	return nil
}

// Output returns the normalized waveform trimmed to the original length.
// All frames must have been added.
func (a *Accumulator) Output() ([]float64, error) {
	if a.added != a.frames {
		return nil, fmt.Errorf("accumulator incomplete: %d of %d frames added", a.added, a.frames)
	}

	out := make([]float64, a.length)
	for i := range out {
		out[i] = a.sampleAt(i)
	}

	return out, nil
}

func (a *Accumulator) sampleAt(i int) float64 {
	v := a.wet[i]
	if n := a.norm[i]; n > normFloor {
		v /= n
	}

	return v
}
