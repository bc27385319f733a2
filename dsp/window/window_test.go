package window

import (
	"math"
	"testing"
)

func TestGenerateAllTypes(t *testing.T) {
	types := []Type{
		TypeRectangular,
		TypeHann,
		TypeSqrtHann,
		TypeHamming,
		TypeBlackman,
	}

	for _, typ := range types {
		t.Run(Name(typ), func(t *testing.T) {
			w := Generate(typ, 64)
			if len(w) != 64 {
				t.Fatalf("len=%d, want 64", len(w))
			}

			for i, v := range w {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Fatalf("coefficient[%d] invalid: %v", i, v)
				}
				if v < 0 || v > 1+1e-12 {
					t.Fatalf("coefficient[%d] out of range: %v", i, v)
				}
			}
		})
	}
}

func TestGenerateDegenerateLengths(t *testing.T) {
	if w := Generate(TypeHann, 0); w != nil {
		t.Fatalf("length 0 should return nil, got %v", w)
	}
	if w := Generate(TypeHann, -3); w != nil {
		t.Fatalf("negative length should return nil, got %v", w)
	}

	w := Generate(TypeHann, 1)
	if len(w) != 1 {
		t.Fatalf("len=%d, want 1", len(w))
	}
}

func TestSqrtHannSquaresToHann(t *testing.T) {
	const n = 128

	sq := Generate(TypeSqrtHann, n, WithPeriodic())
	hann := Generate(TypeHann, n, WithPeriodic())

	for i := range sq {
		if diff := math.Abs(sq[i]*sq[i] - hann[i]); diff > 1e-12 {
			t.Fatalf("index %d: sqrt-hann^2=%v, hann=%v", i, sq[i]*sq[i], hann[i])
		}
	}
}

func TestPeriodicFormStartsAtZeroForHann(t *testing.T) {
	w := Generate(TypeHann, 16, WithPeriodic())
	if w[0] != 0 {
		t.Fatalf("periodic hann w[0]=%v, want 0", w[0])
	}
	// Symmetric form ends at zero as well; periodic form must not.
	if w[len(w)-1] == 0 {
		t.Fatal("periodic hann should not end at zero")
	}
}

func TestApplyCoefficients(t *testing.T) {
	samples := []float64{1, 2, 3}
	coeffs := []float64{0.5, 0.5, 0.5}

	out, err := ApplyCoefficients(samples, coeffs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []float64{0.5, 1, 1.5}
	for i := range out {
		if out[i] != want[i] {
			t.Fatalf("out[%d]=%v, want %v", i, out[i], want[i])
		}
	}

	if _, err := ApplyCoefficients(samples, coeffs[:2]); err == nil {
		t.Fatal("expected length mismatch error")
	}

	if err := ApplyCoefficientsInPlace(samples, coeffs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range samples {
		if samples[i] != want[i] {
			t.Fatalf("in-place samples[%d]=%v, want %v", i, samples[i], want[i])
		}
	}
}
