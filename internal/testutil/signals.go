package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// DefaultRate is the sample rate the bundled models are trained for.
const DefaultRate = 16000

// NoisySine mixes a deterministic tone with seeded white noise, the standard
// stationary-tone-plus-broadband-noise test input.
func NoisySine(freqHz, sampleRate, toneAmp, noiseAmp float64, seed int64, length int) []float64 {
	out := DeterministicSine(freqHz, sampleRate, toneAmp, length)
	noise := DeterministicNoise(seed, noiseAmp, length)
	for i := range out {
		out[i] += noise[i]
	}
	return out
}

// NoisyTone is NoisySine at the 16 kHz model rate with the usual -6 dBFS
// tone over -20 dBFS noise, the default clip for pipeline tests.
func NoisyTone(freqHz float64, seed int64, length int) []float64 {
	return NoisySine(freqHz, DefaultRate, 0.5, 0.1, seed, length)
}

// Impulse generates a unit impulse at the given position.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}
	return out
}

// Ones returns a slice of length n filled with 1.0.
func Ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
