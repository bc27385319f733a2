// Package spectrum provides polar-form helpers for complex spectrum bins.
//
// The package intentionally does not implement FFT itself. It operates on
// complex spectrum bins produced by external FFT backends and provides the
// magnitude/phase split, polar recombination, and Hermitian mirroring used
// by magnitude-domain frame processing.
package spectrum
