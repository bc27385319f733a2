package denoise

import "errors"

var (
	// ErrInvalidInputShape indicates a frame or vector length that does not
	// match the model's fixed dimensions.
	ErrInvalidInputShape = errors.New("denoise: invalid input shape")
	// ErrNonFiniteResult indicates NaN or Inf in a mask or reconstructed frame.
	ErrNonFiniteResult = errors.New("denoise: non-finite result")
	// ErrInferenceUnavailable indicates the inference capability could not be
	// invoked, e.g. no model is loaded.
	ErrInferenceUnavailable = errors.New("denoise: inference unavailable")
	// ErrUnsupportedWaveform indicates a waveform that does not meet the
	// pipeline's channel/rate/length preconditions.
	ErrUnsupportedWaveform = errors.New("denoise: unsupported waveform")
)
