package denoise

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/cwbudde/algo-denoise/dsp/wave"
	"github.com/cwbudde/algo-denoise/dsp/window"
	"github.com/cwbudde/algo-denoise/internal/testutil"
)

// constMask is a stateless spectral stub emitting the same gain in every bin.
type constMask struct {
	bins int
	gain float64
}

func (m *constMask) FrameLen() int  { return m.bins }
func (m *constMask) NewState() State { return nil }

func (m *constMask) Step(dst, src []float64, st State) (State, error) {
	if len(dst) != m.bins || len(src) != m.bins {
		return st, fmt.Errorf("mask stub: got %d/%d bins, want %d", len(src), len(dst), m.bins)
	}
	for i := range dst {
		dst[i] = m.gain
	}
	return st, nil
}

// passThrough is a stateless temporal stub copying its input frame.
type passThrough struct {
	frameLen int
}

func (p *passThrough) FrameLen() int  { return p.frameLen }
func (p *passThrough) NewState() State { return nil }

func (p *passThrough) Step(dst, src []float64, st State) (State, error) {
	if len(dst) != p.frameLen || len(src) != p.frameLen {
		return st, fmt.Errorf("pass-through stub: got %d/%d samples, want %d", len(src), len(dst), p.frameLen)
	}
	copy(dst, src)
	return st, nil
}

// countingMask emits a gain that depends on how many frames its state has
// seen, so any state leakage between requests changes the output.
type countingMask struct {
	bins int
}

func (m *countingMask) FrameLen() int  { return m.bins }
func (m *countingMask) NewState() State { return new(int) }

func (m *countingMask) Step(dst, src []float64, st State) (State, error) {
	n := st.(*int)
	gain := 1.0 / float64(*n+1)
	for i := range dst {
		dst[i] = gain
	}
	*n++
	return n, nil
}

// poisonMask writes a NaN into one mask bin.
type poisonMask struct {
	bins int
}

func (m *poisonMask) FrameLen() int  { return m.bins }
func (m *poisonMask) NewState() State { return nil }

func (m *poisonMask) Step(dst, src []float64, st State) (State, error) {
	for i := range dst {
		dst[i] = 1
	}
	dst[m.bins/2] = nan()
	return st, nil
}

var errModelBroken = errors.New("model broken")

// failingMask fails on the given frame index.
type failingMask struct {
	bins    int
	failAt  int
	current int
}

func (m *failingMask) FrameLen() int  { return m.bins }
func (m *failingMask) NewState() State { return nil }

func (m *failingMask) Step(dst, src []float64, st State) (State, error) {
	if m.current == m.failAt {
		return st, errModelBroken
	}
	m.current++
	for i := range dst {
		dst[i] = 1
	}
	return st, nil
}

func nan() float64 { return math.NaN() }

func identityPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(&constMask{bins: 257, gain: 1}, &passThrough{frameLen: 512}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestPipelineIdentityReconstruction(t *testing.T) {
	p := identityPipeline(t)

	for _, n := range []int{100, 511, 512, 513, 1000, 4096, 51200} {
		in := wave.Waveform{
			Samples: testutil.NoisyTone(440, 7, n),
			Rate:    16000,
		}

		out, err := p.Process(in)
		if err != nil {
			t.Fatalf("length %d: Process: %v", n, err)
		}

		if out.Len() != n {
			t.Fatalf("length %d: output has %d samples", n, out.Len())
		}

		if out.Rate != 16000 {
			t.Fatalf("length %d: output rate %d", n, out.Rate)
		}

		testutil.RequireSliceNearlyEqual(t, out.Samples, in.Samples, 1e-9)
	}
}

func TestPipelineSqrtHannIdentity(t *testing.T) {
	p := identityPipeline(t,
		WithStage1Framing(512, 128, window.TypeSqrtHann),
		WithStage2Framing(512, 128, window.TypeSqrtHann),
	)

	in := wave.Waveform{
		Samples: testutil.NoisyTone(440, 11, 8192),
		Rate:    16000,
	}

	out, err := p.Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	// The periodic sqrt-Hann pair has zero weight at sample 0, so the very
	// first sample is not reconstructible.
	testutil.RequireSliceNearlyEqual(t, out.Samples[1:], in.Samples[1:], 1e-9)
}

func TestPipelineZeroMaskSilence(t *testing.T) {
	p, err := New(&constMask{bins: 257, gain: 0}, &passThrough{frameLen: 512})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	in := wave.Waveform{
		Samples: testutil.NoisyTone(440, 3, 51200),
		Rate:    16000,
	}

	out, err := p.Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if out.Len() != in.Len() {
		t.Fatalf("output has %d samples, want %d", out.Len(), in.Len())
	}

	testutil.RequireAllZero(t, out.Samples)
}

func TestPipelineInputNotModified(t *testing.T) {
	p, err := New(&constMask{bins: 257, gain: 0.5}, &passThrough{frameLen: 512})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	in := wave.Waveform{
		Samples: testutil.DeterministicSine(440, 16000, 0.5, 2048),
		Rate:    16000,
	}
	backup := append([]float64(nil), in.Samples...)

	if _, err := p.Process(in); err != nil {
		t.Fatalf("Process: %v", err)
	}

	testutil.RequireSliceNearlyEqual(t, in.Samples, backup, 0)
}

func TestPipelineFreshStatePerRequest(t *testing.T) {
	p, err := New(&countingMask{bins: 257}, &passThrough{frameLen: 512})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	in := wave.Waveform{
		Samples: testutil.NoisySine(200, 16000, 0.4, 0.05, 19, 4096),
		Rate:    16000,
	}

	first, err := p.Process(in)
	if err != nil {
		t.Fatalf("first Process: %v", err)
	}

	second, err := p.Process(in)
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}

	// The counting stub decays its gain per frame of its state; leaked state
	// across requests would make the runs diverge.
	testutil.RequireSliceNearlyEqual(t, second.Samples, first.Samples, 0)
}

func TestPipelineConcurrentRequests(t *testing.T) {
	p, err := New(&countingMask{bins: 257}, &passThrough{frameLen: 512})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	in := wave.Waveform{
		Samples: testutil.NoisySine(300, 16000, 0.4, 0.05, 23, 8192),
		Rate:    16000,
	}

	want, err := p.Process(in)
	if err != nil {
		t.Fatalf("reference Process: %v", err)
	}

	const workers = 8
	results := make([]wave.Waveform, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[w], errs[w] = p.Process(in)
		}()
	}
	wg.Wait()

	for w := range workers {
		if errs[w] != nil {
			t.Fatalf("worker %d: %v", w, errs[w])
		}
		testutil.RequireSliceNearlyEqual(t, results[w].Samples, want.Samples, 0)
	}
}

func TestPipelineRejectsUnsupportedWaveform(t *testing.T) {
	p := identityPipeline(t)

	cases := []struct {
		name string
		in   wave.Waveform
	}{
		{"rate mismatch", wave.Waveform{Samples: testutil.Ones(512), Rate: 48000}},
		{"empty", wave.Waveform{Rate: 16000}},
		{"non-finite", wave.Waveform{Samples: []float64{0, nan(), 0}, Rate: 16000}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := p.Process(tc.in); !errors.Is(err, ErrUnsupportedWaveform) {
				t.Fatalf("got %v, want ErrUnsupportedWaveform", err)
			}
		})
	}
}

func TestPipelineNonFiniteMask(t *testing.T) {
	p, err := New(&poisonMask{bins: 257}, &passThrough{frameLen: 512})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	in := wave.Waveform{Samples: testutil.Ones(2048), Rate: 16000}

	if _, err := p.Process(in); !errors.Is(err, ErrNonFiniteResult) {
		t.Fatalf("got %v, want ErrNonFiniteResult", err)
	}
}

func TestPipelineInferenceErrorPropagates(t *testing.T) {
	p, err := New(&failingMask{bins: 257, failAt: 3}, &passThrough{frameLen: 512})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	in := wave.Waveform{Samples: testutil.Ones(2048), Rate: 16000}

	if _, err := p.Process(in); !errors.Is(err, errModelBroken) {
		t.Fatalf("got %v, want the model error", err)
	}
}

func TestNewSpectralFilterValidation(t *testing.T) {
	if _, err := NewSpectralFilter(512, nil); !errors.Is(err, ErrInferenceUnavailable) {
		t.Fatalf("nil inference: got %v", err)
	}

	if _, err := NewSpectralFilter(500, &constMask{bins: 251, gain: 1}); !errors.Is(err, ErrInvalidInputShape) {
		t.Fatalf("non-power-of-two frame: got %v", err)
	}

	if _, err := NewSpectralFilter(512, &constMask{bins: 128, gain: 1}); !errors.Is(err, ErrInvalidInputShape) {
		t.Fatalf("bin mismatch: got %v", err)
	}
}

func TestNewTemporalRefinerValidation(t *testing.T) {
	if _, err := NewTemporalRefiner(512, nil); !errors.Is(err, ErrInferenceUnavailable) {
		t.Fatalf("nil inference: got %v", err)
	}

	if _, err := NewTemporalRefiner(512, &passThrough{frameLen: 256}); !errors.Is(err, ErrInvalidInputShape) {
		t.Fatalf("frame mismatch: got %v", err)
	}

	if _, err := NewTemporalRefiner(0, &passThrough{frameLen: 512}); !errors.Is(err, ErrInvalidInputShape) {
		t.Fatalf("zero frame length: got %v", err)
	}
}

func TestNewValidatesFraming(t *testing.T) {
	_, err := New(&constMask{bins: 257, gain: 1}, &passThrough{frameLen: 512},
		WithStage1Framing(512, 0, window.TypeRectangular))
	if !errors.Is(err, ErrInvalidInputShape) {
		t.Fatalf("zero hop: got %v", err)
	}

	_, err = New(&constMask{bins: 257, gain: 1}, &passThrough{frameLen: 512},
		WithSampleRate(0))
	if !errors.Is(err, ErrUnsupportedWaveform) {
		t.Fatalf("zero sample rate: got %v", err)
	}
}
