// Package denoise implements a two-stage frame-recurrent speech denoiser.
//
// Stage one transforms each overlapping input frame to the frequency domain,
// asks a recurrent model for a per-bin suppression mask, applies the mask to
// the magnitudes and resynthesizes with the noisy phase. Stage two reframes
// the spectrally filtered signal and lets a second recurrent model rewrite
// each frame directly in the time domain. Both stages reconstruct via
// normalized weighted overlap-add, so with identity models the pipeline
// reproduces its input to within rounding error.
//
// Models plug in through the [Inference] interface; the bundled DTLN weights
// live in the dtln package. A [Pipeline] is immutable after construction and
// safe for concurrent use, with all recurrent state scoped to a single
// Process call.
package denoise
