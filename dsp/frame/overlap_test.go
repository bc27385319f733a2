package frame

import (
	"testing"

	"github.com/cwbudde/algo-denoise/dsp/window"
	"github.com/cwbudde/algo-denoise/internal/testutil"
)

// roundTrip extracts every frame of src and adds it straight back.
func roundTrip(t *testing.T, f *Framer, synthesis []float64, src []float64) []float64 {
	t.Helper()

	acc, err := NewAccumulator(f, synthesis, len(src))
	if err != nil {
		t.Fatalf("accumulator: %v", err)
	}

	buf := make([]float64, f.Size())
	for i := range f.Count(len(src)) {
		if err := f.Extract(buf, src, i); err != nil {
			t.Fatalf("extract %d: %v", i, err)
		}
		if err := acc.Add(buf, i); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}

	out, err := acc.Output()
	if err != nil {
		t.Fatalf("output: %v", err)
	}

	return out
}

func TestPerfectReconstructionRectangular(t *testing.T) {
	f, err := NewFramer(512, 128, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, n := range []int{100, 511, 512, 513, 1000, 4096, 51200} {
		src := testutil.NoisySine(440, 16000, 0.4, 0.1, 7, n)
		out := roundTrip(t, f, nil, src)

		if len(out) != n {
			t.Fatalf("n=%d: output length %d", n, len(out))
		}
		testutil.RequireSliceNearlyEqual(t, out, src, 1e-12)
	}
}

func TestPerfectReconstructionSqrtHannPair(t *testing.T) {
	coeffs := window.Generate(window.TypeSqrtHann, 512, window.WithPeriodic())

	f, err := NewFramer(512, 128, coeffs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	src := testutil.NoisySine(220, 16000, 0.4, 0.1, 11, 4096)
	out := roundTrip(t, f, coeffs, src)

	// Sample 0 carries zero window weight in the periodic sqrt-hann pair and
	// cannot be reconstructed; everything else must match.
	testutil.RequireSliceNearlyEqual(t, out[1:], src[1:], 1e-10)
}

func TestAccumulatorEnforcesCausalOrder(t *testing.T) {
	f, err := NewFramer(8, 4, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acc, err := NewAccumulator(f, nil, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	buf := make([]float64, 8)
	if err := acc.Add(buf, 1); err == nil {
		t.Fatal("expected out-of-order rejection")
	}
	if err := acc.Add(buf, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := acc.Add(buf, 0); err == nil {
		t.Fatal("expected duplicate-index rejection")
	}
	if err := acc.Add(buf[:4], 1); err == nil {
		t.Fatal("expected frame length rejection")
	}
}

func TestFinalizedPrefixGrowsWithFrames(t *testing.T) {
	f, err := NewFramer(8, 4, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	src := testutil.DeterministicNoise(3, 0.5, 20)

	acc, err := NewAccumulator(f, nil, len(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	buf := make([]float64, 8)
	frames := f.Count(len(src))

	for i := range frames {
		if err := f.Extract(buf, src, i); err != nil {
			t.Fatalf("extract %d: %v", i, err)
		}
		if err := acc.Add(buf, i); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}

		want := (i + 1) * 4
		if i == frames-1 {
			want = len(src)
		}
		if want > len(src) {
			want = len(src)
		}

		if got := acc.FinalizedLen(); got != want {
			t.Fatalf("after frame %d: finalized %d, want %d", i, got, want)
		}
	}

	// Finalized samples must already equal the reconstructed output.
	dst := make([]float64, len(src))
	if err := acc.ReadFinal(dst, 0); err != nil {
		t.Fatalf("read final: %v", err)
	}
	testutil.RequireSliceNearlyEqual(t, dst, src, 1e-12)
}

func TestReadFinalRejectsUnfinalizedRange(t *testing.T) {
	f, err := NewFramer(8, 4, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acc, err := NewAccumulator(f, nil, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	buf := make([]float64, 8)
	if err := acc.Add(buf, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// One frame added: 4 samples final.
	if err := acc.ReadFinal(make([]float64, 4), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := acc.ReadFinal(make([]float64, 5), 0); err == nil {
		t.Fatal("expected rejection beyond finalized prefix")
	}
	if err := acc.ReadFinal(make([]float64, 2), -1); err == nil {
		t.Fatal("expected rejection for negative offset")
	}

	if _, err := acc.Output(); err == nil {
		t.Fatal("expected incomplete-output rejection")
	}
}

func TestAccumulatorValidation(t *testing.T) {
	f, err := NewFramer(8, 4, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := NewAccumulator(nil, nil, 10); err == nil {
		t.Fatal("expected error for nil framer")
	}
	if _, err := NewAccumulator(f, nil, 0); err == nil {
		t.Fatal("expected error for zero length")
	}
	if _, err := NewAccumulator(f, make([]float64, 3), 10); err == nil {
		t.Fatal("expected error for synthesis window length mismatch")
	}
}
