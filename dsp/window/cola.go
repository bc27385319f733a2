package window

import (
	"fmt"
	"math"
)

// VerifyCOLA checks the weighted overlap-add completeness condition for an
// analysis/synthesis window pair at the given hop length: the sum of
// analysis[n]*synthesis[n] over all hop-shifted copies must be constant in
// the steady-state region. A pair that satisfies this reconstructs any
// signal exactly (up to the constant gain) when the per-frame processing is
// the identity.
//
// Returns the steady-state overlap gain, or an error with the worst relative
// deviation if the condition does not hold within eps.
func VerifyCOLA(analysis, synthesis []float64, hop int, eps float64) (float64, error) {
	n := len(analysis)
	if n == 0 || len(synthesis) != n {
		return 0, fmt.Errorf("window pair lengths invalid: %d, %d", n, len(synthesis))
	}

	if hop <= 0 || hop > n {
		return 0, fmt.Errorf("hop must be in [1, %d]: %d", n, hop)
	}

	if eps <= 0 {
		eps = 1e-9
	}

	// Overlap sum for each position in one hop period of the steady state.
	// Position p receives contributions from every shift where p + k*hop
	// falls inside the window.
	sums := make([]float64, hop)
	for p := range sums {
		for i := p; i < n; i += hop {
			sums[p] += analysis[i] * synthesis[i]
		}
	}

	gain := 0.0
	for _, s := range sums {
		gain += s
	}

	gain /= float64(hop)
	if gain == 0 {
		return 0, fmt.Errorf("window pair has zero overlap gain")
	}

	worst := 0.0
	for _, s := range sums {
		dev := math.Abs(s-gain) / math.Abs(gain)
		if dev > worst {
			worst = dev
		}
	}

	if worst > eps {
		return gain, fmt.Errorf("overlap-add condition violated: relative deviation %.3e > %.3e", worst, eps)
	}

	return gain, nil
}
