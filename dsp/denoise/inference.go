package denoise

// State is the opaque recurrent state a frame-sequential model carries from
// one frame to the next within a single request. States are created fresh
// per request, threaded explicitly through consecutive Step calls, and
// discarded when the request completes; they are never shared between
// concurrent requests.
type State any

// Inference is the trained per-frame filtering capability. Implementations
// map a fixed-length vector and the current recurrent state to an output
// vector of fixed length and the successor state.
//
// Step must be deterministic given identical input and state, and must be
// safe for concurrent invocation with distinct states: trained parameters
// are read-only, all mutable data lives in the state.
type Inference interface {
	// FrameLen returns the fixed input/output vector length dictated by the
	// trained weights. It never varies per call.
	FrameLen() int

	// NewState returns a fresh recurrent state for one request.
	NewState() State

	// Step writes the output vector for src into dst and returns the
	// successor state. dst and src both have length FrameLen.
	Step(dst, src []float64, st State) (State, error)
}
