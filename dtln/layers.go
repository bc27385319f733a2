package dtln

import (
	"math"

	"github.com/cwbudde/algo-denoise/dsp/core"
)

// Dense is a fully connected layer with a row-major kernel of shape
// [In][Out]. Bias may be nil.
type Dense struct {
	In  int
	Out int
	W   []float64
	B   []float64
}

// apply computes dst = W^T x (+ B). dst must have length Out.
func (d *Dense) apply(dst, x []float64) {
	if d.B != nil {
		copy(dst, d.B)
	} else {
		core.Zero(dst)
	}

	for i, xi := range x {
		if xi == 0 {
			continue
		}
		row := d.W[i*d.Out : (i+1)*d.Out]
		for j, w := range row {
			dst[j] += xi * w
		}
	}
}

// LSTM holds the weights of one recurrent layer. Kernels are row-major with
// the four gates concatenated along the output axis in the order input,
// forget, cell, output.
type LSTM struct {
	In    int
	Units int
	Wx    []float64 // [In][4*Units]
	Wh    []float64 // [Units][4*Units]
	B     []float64 // [4*Units]
}

// lstmState is the recurrent memory of one layer.
type lstmState struct {
	h []float64
	c []float64
}

func newLSTMState(units int) lstmState {
	return lstmState{h: make([]float64, units), c: make([]float64, units)}
}

// step advances the layer by one frame, updating st in place. gates is
// caller-owned scratch of length 4*Units.
func (l *LSTM) step(st *lstmState, x, gates []float64) {
	stride := 4 * l.Units
	copy(gates, l.B)

	for i, xi := range x {
		if xi == 0 {
			continue
		}
		row := l.Wx[i*stride : (i+1)*stride]
		for j, w := range row {
			gates[j] += xi * w
		}
	}

	for i, hi := range st.h {
		if hi == 0 {
			continue
		}
		row := l.Wh[i*stride : (i+1)*stride]
		for j, w := range row {
			gates[j] += hi * w
		}
	}

	u := l.Units
	for j := range u {
		in := sigmoid(gates[j])
		forget := sigmoid(gates[u+j])
		cand := math.Tanh(gates[2*u+j])
		out := sigmoid(gates[3*u+j])

		st.c[j] = forget*st.c[j] + in*cand
		st.h[j] = out * math.Tanh(st.c[j])
	}
}

// LayerNorm normalizes each frame across its feature axis with learned
// per-feature scale and shift. The statistics are instantaneous: each frame
// is normalized on its own, keeping the layer causal.
type LayerNorm struct {
	Gamma []float64
	Beta  []float64
}

// normEps matches the epsilon the layers were trained with.
const normEps = 1e-7

// apply normalizes x into dst. dst and x may alias.
func (n *LayerNorm) apply(dst, x []float64) {
	var mean float64
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))

	var variance float64
	for _, v := range x {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(x))

	inv := 1 / math.Sqrt(variance+normEps)
	for i, v := range x {
		dst[i] = (v-mean)*inv*n.Gamma[i] + n.Beta[i]
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
