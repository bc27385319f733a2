package spectrum

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/cwbudde/algo-denoise/dsp/core"
	"github.com/cwbudde/algo-vecmath"
)

// scratchBuf holds pooled scratch memory for complex-to-real unpacking.
type scratchBuf struct {
	data []float64
}

var scratchPool = sync.Pool{
	New: func() any { return &scratchBuf{} },
}

func getScratch(n int) (re, im []float64, buf *scratchBuf) {
	buf = scratchPool.Get().(*scratchBuf)
	need := 2 * n
	buf.data = core.EnsureLen(buf.data, need)
	return buf.data[:n], buf.data[n:need], buf
}

func putScratch(buf *scratchBuf) {
	scratchPool.Put(buf)
}

// Magnitude returns |X[k]| for each complex spectrum bin.
//
// Scratch buffers are pooled internally, so in steady state this allocates
// only the output slice.
func Magnitude(in []complex128) []float64 {
	if len(in) == 0 {
		return nil
	}

	out := make([]float64, len(in))
	re, im, buf := getScratch(len(in))

	for i, c := range in {
		re[i] = real(c)
		im[i] = imag(c)
	}

	vecmath.Magnitude(out, re, im)
	putScratch(buf)
	return out
}

// Phase returns arg(X[k]) for each complex spectrum bin in radians.
func Phase(in []complex128) []float64 {
	if len(in) == 0 {
		return nil
	}
	out := make([]float64, len(in))
	for i, c := range in {
		out[i] = cmplx.Phase(c)
	}
	return out
}

// SplitPolar writes |X[k]| and arg(X[k]) of the leading len(mag) bins of
// spec into mag and phase. This is the zero-allocation path for per-frame
// analysis loops. mag and phase must have equal length, not exceeding
// len(spec).
func SplitPolar(mag, phase []float64, spec []complex128) error {
	if len(mag) != len(phase) {
		return fmt.Errorf("magnitude/phase length mismatch: %d != %d", len(mag), len(phase))
	}

	if len(mag) > len(spec) {
		return fmt.Errorf("requested %d bins from spectrum of %d", len(mag), len(spec))
	}

	for i := range mag {
		re := real(spec[i])
		im := imag(spec[i])
		mag[i] = math.Hypot(re, im)
		phase[i] = math.Atan2(im, re)
	}

	return nil
}

// FromPolar writes mag[k]*e^(i*phase[k]) into the leading bins of dst.
func FromPolar(dst []complex128, mag, phase []float64) error {
	if len(mag) != len(phase) {
		return fmt.Errorf("magnitude/phase length mismatch: %d != %d", len(mag), len(phase))
	}

	if len(mag) > len(dst) {
		return fmt.Errorf("writing %d bins into spectrum of %d", len(mag), len(dst))
	}

	for i := range mag {
		dst[i] = complex(mag[i]*math.Cos(phase[i]), mag[i]*math.Sin(phase[i]))
	}

	return nil
}

// MirrorHermitian fills the upper half of a full-length spectrum with the
// complex conjugates of the lower half, so the inverse transform of a real
// signal's rFFT bins comes out real. spec has the full FFT length n; bins
// must equal n/2+1 with n even. The DC and Nyquist bins are forced real.
func MirrorHermitian(spec []complex128, bins int) error {
	n := len(spec)
	if n == 0 || n%2 != 0 || bins != n/2+1 {
		return fmt.Errorf("hermitian mirror requires bins == n/2+1 with even n: n=%d bins=%d", n, bins)
	}

	half := n / 2
	spec[0] = complex(real(spec[0]), 0)
	spec[half] = complex(real(spec[half]), 0)

	for k := 1; k < half; k++ {
		spec[n-k] = cmplx.Conj(spec[k])
	}

	return nil
}
