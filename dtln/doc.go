// Package dtln provides pure-Go inference for dual-signal transformation
// LSTM network speech denoising models and a compact binary container for
// their weights.
//
// A [Model] exposes its two sub-networks as pipeline stages via Stage1 (the
// spectral mask estimator) and Stage2 (the time-domain refiner). The model
// itself is immutable; recurrent memory and scratch buffers live in the
// per-request states, so one model serves any number of concurrent streams.
package dtln
